package elasticsearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/gavram/ckan-search/internal/config"
)

const DefaultTimeout = 10 * time.Second

// Options tune the connection built by NewClient.
type Options struct {
	// Timeout bounds dialing and waiting for response headers. Zero means DefaultTimeout.
	Timeout time.Duration
	// SkipTLSVerify disables TLS cert verification (dev only).
	SkipTLSVerify bool
}

// Client is an Elasticsearch client bound to one cluster.
type Client struct {
	es *es.Client
}

// NewClient builds a client from resolved settings. Credentials are applied
// only when URL, user and password are all set. Automatic retries are off.
func NewClient(settings *config.Settings, opts Options) (*Client, error) {
	url, user, password, err := settings.Get()
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.ResponseHeaderTimeout = timeout
	if opts.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for dev clusters
	}

	cfg := es.Config{
		Addresses:    []string{strings.TrimSuffix(url, "/")},
		Transport:    transport,
		DisableRetry: true,
	}
	if user != "" && password != "" {
		cfg.Username = user
		cfg.Password = password
	}

	client, err := es.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{es: client}, nil
}

// Ping checks the cluster answers its root endpoint.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	return exec(res, err, "info")
}

// IndexDocument stores doc under id, replacing any previous version.
func (c *Client) IndexDocument(ctx context.Context, index, id string, doc any) error {
	body, err := encode(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	res, err := c.es.Index(index, body,
		c.es.Index.WithDocumentID(id),
		c.es.Index.WithContext(ctx),
	)
	return exec(res, err, "index")
}

// UpdateDocument merges doc into the stored document. Returns ErrNotFound
// when no document has this id.
func (c *Client) UpdateDocument(ctx context.Context, index, id string, doc any) error {
	body, err := encode(map[string]any{"doc": doc})
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	res, err := c.es.Update(index, id, body, c.es.Update.WithContext(ctx))
	return exec(res, err, "update")
}

// DeleteDocument removes a document. Returns ErrNotFound when it is absent.
func (c *Client) DeleteDocument(ctx context.Context, index, id string) error {
	res, err := c.es.Delete(index, id, c.es.Delete.WithContext(ctx))
	return exec(res, err, "delete")
}

// GetDocument fetches a document by id. Returns ErrNotFound when it is absent.
func (c *Client) GetDocument(ctx context.Context, index, id string) (*GetResult, error) {
	res, err := c.es.Get(index, id, c.es.Get.WithContext(ctx))
	if err := check(res, err, "get"); err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var out GetResult
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// Search runs a full search request body against index.
func (c *Client) Search(ctx context.Context, index string, body map[string]any) (*SearchResponse, error) {
	r, err := encode(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(r),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err := check(res, err, "search"); err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var out SearchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// Refresh makes recent writes to index visible to search.
func (c *Client) Refresh(ctx context.Context, index string) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithIndex(index),
		c.es.Indices.Refresh.WithContext(ctx),
	)
	return exec(res, err, "refresh")
}

// CreateIndex creates index with the given settings/mappings body.
func (c *Client) CreateIndex(ctx context.Context, index string, mapping map[string]any) error {
	if mapping == nil {
		mapping = map[string]any{}
	}
	body, err := encode(mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	res, err := c.es.Indices.Create(index,
		c.es.Indices.Create.WithBody(body),
		c.es.Indices.Create.WithContext(ctx),
	)
	return exec(res, err, "create index")
}

// DeleteIndex drops index. Missing indices (404) and bad requests (400) are ignored.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	res, err := c.es.Indices.Delete([]string{index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete index: execute request: %w", err)
	}
	if res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusBadRequest {
		return res.Body.Close()
	}
	return exec(res, nil, "delete index")
}

// EnsureIndex creates an index if it doesn't exist
func (c *Client) EnsureIndex(ctx context.Context, index string, mapping map[string]any) error {
	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	return c.CreateIndex(ctx, index, mapping)
}

// Health returns cluster health scoped to index.
func (c *Client) Health(ctx context.Context, index string) (*HealthResponse, error) {
	res, err := c.es.Cluster.Health(
		c.es.Cluster.Health.WithIndex(index),
		c.es.Cluster.Health.WithContext(ctx),
	)
	if err := check(res, err, "cluster health"); err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var out HealthResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func encode(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

// check turns a transport error or an error status into a Go error. On
// success the body is left open for the caller; on failure it is closed.
func check(res *esapi.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: execute request: %w", op, err)
	}
	if !res.IsError() {
		return nil
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("%s: %w", op, &ResponseError{StatusCode: res.StatusCode, Body: string(body)})
}

// exec is check for calls whose response body is not needed.
func exec(res *esapi.Response, err error, op string) error {
	if err := check(res, err, op); err != nil {
		return err
	}
	return res.Body.Close()
}
