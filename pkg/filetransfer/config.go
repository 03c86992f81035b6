package filetransfer

import "time"

// ClientOption configures SFTP/FTP clients.
type ClientOption func(*ClientConfig)

// ClientConfig holds file-transfer connection settings.
type ClientConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	PrivateKey     []byte
	ConnectTimeout time.Duration
}

// WithAddress sets host and port.
func WithAddress(host string, port int) ClientOption {
	return func(c *ClientConfig) {
		c.Host = host
		c.Port = port
	}
}

// WithCredentials sets username/password auth.
func WithCredentials(username, password string) ClientOption {
	return func(c *ClientConfig) {
		c.Username = username
		c.Password = password
	}
}

// WithPrivateKey sets key-based auth (SFTP only).
func WithPrivateKey(key []byte) ClientOption {
	return func(c *ClientConfig) {
		c.PrivateKey = key
	}
}

// WithConnectTimeout sets the connect-readiness timeout.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.ConnectTimeout = d
	}
}
