package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/document"
	"github.com/gavram/ckan-search/internal/elasticsearch"
	"github.com/gavram/ckan-search/internal/logger"
	"github.com/gavram/ckan-search/internal/metrics"
)

// SearchFields are the free-text fields with their static boosts.
var SearchFields = []string{"name^4", "title^4", "tags^2", "groups^2", "text"}

// Filter is an exact-match clause on one field.
type Filter struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Request is a dataset search.
type Request struct {
	Q       string   `json:"q,omitempty"`
	Filters []Filter `json:"fq,omitempty"`
	// Sort is "field [asc|desc]", comma separated for several keys.
	Sort  string `json:"sort,omitempty"`
	Start *int   `json:"start,omitempty"`
	Rows  *int   `json:"rows,omitempty"`
	Facet bool   `json:"facet,omitempty"`
	// DecodeDates turns RFC 3339 strings in results into time values.
	DecodeDates bool `json:"-"`
}

type Result struct {
	Results []document.Document `json:"results"`
	Count   int64               `json:"count"`
	Facets  map[string]any      `json:"facets"`
}

// QueryRunner runs dataset searches against one index.
type QueryRunner struct {
	es     elasticsearch.IndexSearcher
	index  string
	logger *zap.Logger
}

func NewQueryRunner(es elasticsearch.IndexSearcher, index string, log *zap.Logger) *QueryRunner {
	return &QueryRunner{
		es:     es,
		index:  index,
		logger: logger.OrNop(log).With(zap.String("index", index)),
	}
}

// Run executes req. A request with Facet set is refused with a QueryError
// wrapping ErrFacetsUnsupported instead of returning results with empty
// facets, as the host's own search layer did; Result.Facets is always empty.
func (q *QueryRunner) Run(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	defer func() { metrics.ObserveQuery(time.Since(start), err) }()

	if req.Facet {
		return nil, &QueryError{Err: ErrFacetsUnsupported}
	}
	body, err := buildSearchBody(req)
	if err != nil {
		return nil, &QueryError{Err: err}
	}

	resp, err := q.es.Search(ctx, q.index, body)
	if err != nil {
		q.logger.Error("search failed", zap.String("q", req.Q), zap.Error(err))
		return nil, &QueryError{Err: err}
	}

	results := make([]document.Document, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		doc := document.Document(h.Source)
		if doc == nil {
			doc = document.Document{}
		}
		if req.DecodeDates {
			doc = document.DecodeTimes(doc)
		}
		results = append(results, doc)
	}
	return &Result{
		Results: results,
		Count:   resp.Hits.Total.Value,
		Facets:  map[string]any{},
	}, nil
}

func buildSearchBody(req Request) (map[string]any, error) {
	var query map[string]any
	if strings.TrimSpace(req.Q) != "" {
		query = map[string]any{
			"multi_match": map[string]any{
				"query":  req.Q,
				"fields": SearchFields,
			},
		}
	} else {
		query = map[string]any{"match_all": map[string]any{}}
	}

	if len(req.Filters) > 0 {
		filter := make([]map[string]any, 0, len(req.Filters))
		for _, f := range req.Filters {
			if f.Field == "" {
				return nil, fmt.Errorf("filter without field")
			}
			filter = append(filter, map[string]any{
				"term": map[string]any{f.Field: f.Value},
			})
		}
		query = map[string]any{
			"bool": map[string]any{
				"must":   []map[string]any{query},
				"filter": filter,
			},
		}
	}

	body := map[string]any{"query": query}
	if req.Sort != "" {
		sort, err := parseSort(req.Sort)
		if err != nil {
			return nil, err
		}
		body["sort"] = sort
	}
	if req.Start != nil {
		body["from"] = *req.Start
	}
	if req.Rows != nil {
		body["size"] = *req.Rows
	}
	return body, nil
}

// parseSort turns "name asc, metadata_modified desc" into an ES sort array.
func parseSort(s string) ([]map[string]any, error) {
	var out []map[string]any
	for _, part := range strings.Split(s, ",") {
		fields := strings.Fields(part)
		switch len(fields) {
		case 0:
			continue
		case 1:
			out = append(out, map[string]any{fields[0]: map[string]any{"order": "asc"}})
		case 2:
			order := strings.ToLower(fields[1])
			if order != "asc" && order != "desc" {
				return nil, fmt.Errorf("invalid sort order %q", fields[1])
			}
			out = append(out, map[string]any{fields[0]: map[string]any{"order": order}})
		default:
			return nil, fmt.Errorf("invalid sort clause %q", strings.TrimSpace(part))
		}
	}
	return out, nil
}
