// Package entityapi provides an HTTP client for a remote entity CRUD
// backend. The backend owns ledger processing: it purges the keys listed in
// deletedImages after persisting the entity.
package entityapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/khunglong92/staged-content/pkg/stagedcontent"
)

// Client implements stagedcontent.EntityAPI against a JSON REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

// Option represents a functional option for configuring the client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAuthToken sets a bearer token attached to every request
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Create(ctx context.Context, payload stagedcontent.Payload) (*stagedcontent.Entity, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, payload.Collection)
	return c.send(ctx, http.MethodPost, url, payload)
}

func (c *Client) Update(ctx context.Context, id string, payload stagedcontent.Payload) (*stagedcontent.Entity, error) {
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, payload.Collection, id)
	return c.send(ctx, http.MethodPut, url, payload)
}

func (c *Client) Get(ctx context.Context, collection, id string) (*stagedcontent.Entity, error) {
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, collection, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) send(ctx context.Context, method, url string, payload stagedcontent.Payload) (*stagedcontent.Entity, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*stagedcontent.Entity, error) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, stagedcontent.ErrEntityNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var entity stagedcontent.Entity
	if err := json.NewDecoder(resp.Body).Decode(&entity); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &entity, nil
}
