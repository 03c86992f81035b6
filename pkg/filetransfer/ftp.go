package filetransfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPClient implements Client over plain FTP.
type FTPClient struct {
	cfg  *ClientConfig
	conn *ftp.ServerConn
}

// NewFTPClient creates an FTP client. Connect must be called before use.
func NewFTPClient(opts ...ClientOption) *FTPClient {
	cfg := &ClientConfig{
		Port:           21,
		ConnectTimeout: 20 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &FTPClient{cfg: cfg}
}

// Connect dials and logs in.
func (c *FTPClient) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(c.cfg.ConnectTimeout))
	if err != nil {
		return fmt.Errorf("ftp dial %s: %w", addr, err)
	}
	if err := conn.Login(c.cfg.Username, c.cfg.Password); err != nil {
		_ = conn.Quit()
		return fmt.Errorf("ftp login: %w", err)
	}
	c.conn = conn
	return nil
}

// List returns file entries in a remote directory.
func (c *FTPClient) List(ctx context.Context, dir string) ([]RemoteFile, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("ftp not connected")
	}
	entries, err := c.conn.List(dir)
	if err != nil {
		return nil, fmt.Errorf("ftp list %s: %w", dir, err)
	}
	files := make([]RemoteFile, 0, len(entries))
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		files = append(files, RemoteFile{Name: e.Name, Size: int64(e.Size), ModTime: e.Time})
	}
	return files, nil
}

// Download reads a remote file fully into memory.
func (c *FTPClient) Download(ctx context.Context, path string) ([]byte, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("ftp not connected")
	}
	resp, err := c.conn.Retr(path)
	if err != nil {
		return nil, fmt.Errorf("ftp retr %s: %w", path, err)
	}
	defer resp.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp); err != nil {
		return nil, fmt.Errorf("ftp read %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// Close quits the control connection, best effort.
func (c *FTPClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Quit()
	c.conn = nil
	return err
}
