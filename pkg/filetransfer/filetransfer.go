package filetransfer

import (
	"context"
	"time"
)

// RemoteFile describes one file in a remote directory listing.
type RemoteFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Client is the minimal file-transfer surface the custodian adapters need.
type Client interface {
	Connect(ctx context.Context) error
	List(ctx context.Context, dir string) ([]RemoteFile, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Close() error
}
