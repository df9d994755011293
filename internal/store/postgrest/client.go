// Package postgrest implements store.Store over a PostgREST HTTP API, such as
// the one Supabase exposes under /rest/v1.
package postgrest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/spinzone-api/internal/store"
)

var _ store.Store = (*Client)(nil)

// Client talks to a PostgREST endpoint.
type Client struct {
	base   *url.URL
	prefix string
	apiKey string
	http   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithPathPrefix overrides the "/rest/v1" path under which relations are
// served. Use "" for a bare PostgREST deployment.
func WithPathPrefix(prefix string) Option {
	return func(cl *Client) { cl.prefix = strings.TrimRight(prefix, "/") }
}

// WithTracerProvider sets the tracer provider for the default transport.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cl *Client) {
		cl.http.Transport = otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tp))
	}
}

// New creates a client for baseURL authenticating with apiKey. The key is
// sent both as the apikey header and as a bearer token.
func New(baseURL, apiKey string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		base:   u,
		prefix: "/rest/v1",
		apiKey: apiKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) endpoint(relation string, filters []store.Filter) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + c.prefix + "/" + url.PathEscape(relation)
	q := url.Values{}
	for _, f := range filters {
		if f.Value == nil {
			q.Add(f.Column, "is.null")
			continue
		}
		q.Add(f.Column, "eq."+filterValue(f.Value))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, prefer string) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, store.Transient(errors.Wrap(err, "send request"))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, store.Transient(errors.Wrap(err, "read response"))
	}
	if resp.StatusCode >= 300 {
		err := fmt.Errorf("postgrest: %s: %s", resp.Status, decodeError(data))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, store.Transient(err)
		}
		return nil, err
	}
	return data, nil
}

// Find implements store.Store.
func (c *Client) Find(ctx context.Context, relation string, filters ...store.Filter) ([]store.Row, error) {
	data, err := c.do(ctx, http.MethodGet, c.endpoint(relation, filters), nil, "")
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", relation, err)
	}
	rows, err := decodeRows(data)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", relation, err)
	}
	return rows, nil
}

// Insert implements store.Store.
func (c *Client) Insert(ctx context.Context, relation string, rows []store.Row) ([]store.Row, error) {
	if len(rows) == 0 {
		return nil, errors.Errorf("insert %s: no rows", relation)
	}
	body, err := encodeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", relation, err)
	}
	data, err := c.do(ctx, http.MethodPost, c.endpoint(relation, nil), body, "return=representation")
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", relation, err)
	}
	out, err := decodeRows(data)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", relation, err)
	}
	return out, nil
}

// Update implements store.Store.
func (c *Client) Update(ctx context.Context, relation string, filters []store.Filter, patch store.Row) ([]store.Row, error) {
	if len(filters) == 0 {
		return nil, errors.Errorf("update %s: refusing to update without filters", relation)
	}
	body, err := encodePatch(patch)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", relation, err)
	}
	data, err := c.do(ctx, http.MethodPatch, c.endpoint(relation, filters), body, "return=representation")
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", relation, err)
	}
	out, err := decodeRows(data)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", relation, err)
	}
	return out, nil
}

// Delete implements store.Store.
func (c *Client) Delete(ctx context.Context, relation string, filters ...store.Filter) error {
	if len(filters) == 0 {
		return errors.Errorf("delete %s: refusing to delete without filters", relation)
	}
	if _, err := c.do(ctx, http.MethodDelete, c.endpoint(relation, filters), nil, "return=minimal"); err != nil {
		return fmt.Errorf("delete %s: %w", relation, err)
	}
	return nil
}

// Ping checks that the endpoint answers without a server error.
func (c *Client) Ping(ctx context.Context) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + c.prefix + "/"
	_, err := c.do(ctx, http.MethodGet, u.String(), nil, "")
	return err
}
