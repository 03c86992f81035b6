package filetransfer

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPClient implements Client over an SSH session.
type SFTPClient struct {
	cfg     *ClientConfig
	sshConn *ssh.Client
	client  *sftp.Client
}

// NewSFTPClient creates an SFTP client. Connect must be called before use.
func NewSFTPClient(opts ...ClientOption) *SFTPClient {
	cfg := &ClientConfig{
		Port:           22,
		ConnectTimeout: 20 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &SFTPClient{cfg: cfg}
}

// Connect dials the SSH server and opens an SFTP session.
func (c *SFTPClient) Connect(ctx context.Context) error {
	auth := []ssh.AuthMethod{}
	if len(c.cfg.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(c.cfg.PrivateKey)
		if err != nil {
			return fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.cfg.Password != "" {
		auth = append(auth, ssh.Password(c.cfg.Password))
	}

	sshCfg := &ssh.ClientConfig{
		User:            c.cfg.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.cfg.ConnectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	conn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return fmt.Errorf("sftp dial %s: %w", addr, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("sftp session: %w", err)
	}

	c.sshConn = conn
	c.client = client
	return nil
}

// List returns file entries in a remote directory (directories excluded).
func (c *SFTPClient) List(ctx context.Context, dir string) ([]RemoteFile, error) {
	if c.client == nil {
		return nil, fmt.Errorf("sftp not connected")
	}
	infos, err := c.client.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sftp list %s: %w", dir, err)
	}
	files := make([]RemoteFile, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		files = append(files, RemoteFile{Name: fi.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}
	return files, nil
}

// Download reads a remote file fully into memory.
func (c *SFTPClient) Download(ctx context.Context, p string) ([]byte, error) {
	if c.client == nil {
		return nil, fmt.Errorf("sftp not connected")
	}
	f, err := c.client.Open(path.Clean(p))
	if err != nil {
		return nil, fmt.Errorf("sftp open %s: %w", p, err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("sftp read %s: %w", p, err)
	}
	return b, nil
}

// Close tears down session and connection, best effort.
func (c *SFTPClient) Close() error {
	var err error
	if c.client != nil {
		err = c.client.Close()
		c.client = nil
	}
	if c.sshConn != nil {
		if cerr := c.sshConn.Close(); err == nil {
			err = cerr
		}
		c.sshConn = nil
	}
	return err
}
