// Package kalshi provides a REST API client for the Kalshi trading platform.
// Market-data endpoints work unauthenticated; portfolio endpoints require an
// API key and RSA private key.
package kalshi

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// ProdBaseURL is the production API base URL.
	ProdBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

	// DemoBaseURL is the demo/sandbox API base URL.
	DemoBaseURL = "https://demo-api.kalshi.co/trade-api/v2"
)

// Client is a REST API client for Kalshi.
type Client struct {
	baseURL    string
	apiKey     string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithAuth sets credentials for authenticated endpoints.
func WithAuth(apiKey string, privateKey *rsa.PrivateKey) Option {
	return func(c *Client) {
		c.apiKey = apiKey
		c.privateKey = privateKey
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a new REST API client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    ProdBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request makes an API request, signing it when credentials are configured.
func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.privateKey != nil {
		// The signature covers the full path: /trade-api/v2/...
		signPath := "/trade-api/v2" + pathOnly(path)
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		signature, err := Sign(c.privateKey, timestamp, method, signPath)
		if err != nil {
			return nil, fmt.Errorf("generate signature: %w", err)
		}
		req.Header.Set("KALSHI-ACCESS-KEY", c.apiKey)
		req.Header.Set("KALSHI-ACCESS-TIMESTAMP", timestamp)
		req.Header.Set("KALSHI-ACCESS-SIGNATURE", signature)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Code:       errResp.Error.Code,
				Message:    errResp.Error.Message,
			}
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	return respBody, nil
}

// pathOnly strips the query string; the signature covers only the path.
func pathOnly(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// Get makes a GET request.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.request(ctx, http.MethodGet, path, nil)
}

// Sign produces the RSA-PSS signature Kalshi expects over
// timestamp + method + path.
func Sign(key *rsa.PrivateKey, timestamp, method, path string) (string, error) {
	msg := []byte(timestamp + method + path)
	hash := sha256.Sum256(msg)

	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError represents an API error.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("kalshi api error %d: [%s] %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("kalshi api error %d: %s", e.StatusCode, e.Message)
}
