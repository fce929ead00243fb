package identityhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ruteri/dice-device-identity/api"
	"github.com/ruteri/dice-device-identity/cryptoutils"
)

// Client talks to a device identity server.
type Client struct {
	// ServerAddr is the base URL of the server, e.g. http://127.0.0.1:8080.
	ServerAddr string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.ServerAddr, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read %s response: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned error %d: %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

// Identity fetches the public device identity.
func (c *Client) Identity(ctx context.Context) (*api.IdentityResponse, error) {
	body, err := c.do(ctx, http.MethodGet, api.IdentityPath, nil)
	if err != nil {
		return nil, err
	}

	var resp api.IdentityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("could not parse identity response: %w", err)
	}
	return &resp, nil
}

// Chain fetches the PEM certificate bundle, leaf first.
func (c *Client) Chain(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, api.ChainPath, nil)
}

// LeafCSR asks the device for a leaf CSR with the given subject common name.
func (c *Client) LeafCSR(ctx context.Context, commonName string) (cryptoutils.CSRPEM, error) {
	reqBody, err := json.Marshal(api.LeafCSRRequest{CommonName: commonName})
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, api.LeafCSRPath, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	return cryptoutils.NewCSRPEM(body)
}
