// Package rest is a typed client for Mango REST collections: RQL queries, single item CRUD and
// asynchronous bulk tasks.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mangoautomation/dashboard-data-apis/auth"
	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/log"
	"github.com/mangoautomation/dashboard-data-apis/query"
	e "github.com/mangoautomation/dashboard-data-apis/rest/errors"
	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
)

const (
	// APIPrefix is prepended to every collection path.
	APIPrefix = "/rest/latest"

	bulkSuffix = "/bulk"
)

type Option func(*options)

type options struct {
	httpClient *http.Client
	token      string
}

// WithHTTPClient replaces the http.Client used for requests, the logging transport is not added.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithToken authenticates every request with a Mango bearer token.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// Client talks to one collection, e.g. /rest/latest/published-points. T is the item model.
type Client[T any] struct {
	baseURL    string
	collection string
	httpClient *http.Client
	token      string
	logger     log.Logger
}

// NewClient creates a client for the collection at APIPrefix + "/" + collection.
func NewClient[T any](cfg config.Config, collection string, opts ...Option) *Client[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Transport: log.NewLoggingTransport(nil, cfg.Logger())}
	}

	return &Client[T]{
		baseURL:    strings.TrimSuffix(cfg.BaseURL(), "/"),
		collection: strings.Trim(collection, "/"),
		httpClient: o.httpClient,
		token:      o.token,
		logger:     cfg.Logger(),
	}
}

// Collection returns the collection name the client was created for.
func (c *Client[T]) Collection() string {
	return c.collection
}

// BasePath is the path of the collection relative to the server root.
func (c *Client[T]) BasePath() string {
	return APIPrefix + "/" + c.collection
}

// Query returns the items matching the RQL expression, along with the total count of matches
// ignoring the limit.
func (c *Client[T]) Query(ctx context.Context, expr query.Expression) (m.Page[T], error) {
	var page m.Page[T]
	target := c.BasePath()
	if expr.RQL != "" {
		target += "?" + expr.RQL
	}
	err := c.do(ctx, http.MethodGet, target, nil, &page)
	if page.Items == nil {
		page.Items = []T{}
	}
	return page, err
}

func (c *Client[T]) Get(ctx context.Context, xid string) (T, error) {
	var item T
	err := c.do(ctx, http.MethodGet, c.itemPath(xid), nil, &item)
	return item, err
}

func (c *Client[T]) Create(ctx context.Context, item T) (T, error) {
	var created T
	err := c.do(ctx, http.MethodPost, c.BasePath(), item, &created)
	return created, err
}

// Update saves item under xid, the item may carry a different XID when it is being renamed.
func (c *Client[T]) Update(ctx context.Context, xid string, item T) (T, error) {
	var updated T
	err := c.do(ctx, http.MethodPut, c.itemPath(xid), item, &updated)
	return updated, err
}

// Delete removes the item and returns it as it was before deletion.
func (c *Client[T]) Delete(ctx context.Context, xid string) (T, error) {
	var deleted T
	err := c.do(ctx, http.MethodDelete, c.itemPath(xid), nil, &deleted)
	return deleted, err
}

// DecodeBody decodes the body of an individual bulk response into the item model.
func (c *Client[T]) DecodeBody(raw json.RawMessage) (T, error) {
	var item T
	if len(raw) == 0 || string(raw) == "null" {
		return item, fmt.Errorf("empty body")
	}
	err := json.Unmarshal(raw, &item)
	return item, err
}

func (c *Client[T]) itemPath(xid string) string {
	return c.BasePath() + "/" + url.PathEscape(xid)
}

func (c *Client[T]) do(ctx context.Context, method, target string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("unable to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+target, body)
	if err != nil {
		return e.NewTransportError("unable to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := auth.BearerToken(ctx, c.token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return e.NewTransportError(fmt.Sprintf("%s %s failed", method, target), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return e.NewTransportError("unable to read response", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp.StatusCode, data)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unable to decode response of %s %s: %w", method, target, err)
	}
	return nil
}

func responseError(status int, body []byte) error {
	apiErr := e.NewAPIError(status, body)
	switch status {
	case http.StatusNotFound:
		return e.NewNotFoundError(apiErr.StatusText)
	case http.StatusConflict:
		return e.NewConflictError(apiErr.StatusText)
	default:
		return apiErr
	}
}
