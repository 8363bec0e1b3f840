package elasticsearch

import "context"

// IndexSearcher abstracts Elasticsearch search/index operations for testing and swapping implementations.
type IndexSearcher interface {
	Ping(ctx context.Context) error
	IndexDocument(ctx context.Context, index, id string, doc any) error
	UpdateDocument(ctx context.Context, index, id string, doc any) error
	DeleteDocument(ctx context.Context, index, id string) error
	GetDocument(ctx context.Context, index, id string) (*GetResult, error)
	Search(ctx context.Context, index string, body map[string]any) (*SearchResponse, error)
	Refresh(ctx context.Context, index string) error
	CreateIndex(ctx context.Context, index string, mapping map[string]any) error
	DeleteIndex(ctx context.Context, index string) error
	EnsureIndex(ctx context.Context, index string, mapping map[string]any) error
	Health(ctx context.Context, index string) (*HealthResponse, error)
}

// Ensure *Client implements IndexSearcher at compile time.
var _ IndexSearcher = (*Client)(nil)
