package cipher

import (
	"context"
	"fmt"
	"time"

	domrepo "CustodianSync/internal/domain/repository"
	xhttp "CustodianSync/pkg/http"
)

// Client implements FieldCipher against the external cipher service.
// Key material never enters this process; only the sealed envelope and
// the recovered plaintext cross the boundary.
type Client struct {
	baseURL string
	client  *xhttp.Client
}

// New creates a cipher service client.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type encryptRequest struct {
	Plaintext string `json:"plaintext"`
}

type decryptRequest struct {
	Field *domrepo.EncryptedField `json:"field"`
}

type decryptResponse struct {
	Plaintext string `json:"plaintext"`
}

func (c *Client) EncryptField(ctx context.Context, plaintext string) (*domrepo.EncryptedField, error) {
	var out domrepo.EncryptedField
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + "/v1/encrypt",
		Body:   encryptRequest{Plaintext: plaintext},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("cipher encrypt: %w", err)
	}
	return &out, nil
}

func (c *Client) DecryptField(ctx context.Context, field *domrepo.EncryptedField) (string, error) {
	var out decryptResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + "/v1/decrypt",
		Body:   decryptRequest{Field: field},
	}, &out)
	if err != nil {
		return "", fmt.Errorf("cipher decrypt: %w", err)
	}
	return out.Plaintext, nil
}
