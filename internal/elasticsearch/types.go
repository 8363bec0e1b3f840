package elasticsearch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches any ResponseError with status 404.
var ErrNotFound = errors.New("elasticsearch: not found")

// ResponseError is an error status returned by the cluster.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("elasticsearch error: %d %s - %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *ResponseError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// GetResult is the body of a document GET.
type GetResult struct {
	Index  string         `json:"_index"`
	ID     string         `json:"_id"`
	Found  bool           `json:"found"`
	Source map[string]any `json:"_source"`
}

// SearchResponse represents Elasticsearch search response
type SearchResponse struct {
	Took     int  `json:"took"`
	TimedOut bool `json:"timed_out"`
	Hits     struct {
		Total struct {
			Value    int64  `json:"value"`
			Relation string `json:"relation"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// HealthResponse is the subset of _cluster/health this service reports.
type HealthResponse struct {
	ClusterName         string `json:"cluster_name"`
	Status              string `json:"status"`
	TimedOut            bool   `json:"timed_out"`
	NumberOfNodes       int    `json:"number_of_nodes"`
	ActiveShards        int    `json:"active_shards"`
	UnassignedShards    int    `json:"unassigned_shards"`
	InitializingShards  int    `json:"initializing_shards"`
	RelocatingShards    int    `json:"relocating_shards"`
	ActivePrimaryShards int    `json:"active_primary_shards"`
}
