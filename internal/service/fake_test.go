package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gavram/ckan-search/internal/document"
	"github.com/gavram/ckan-search/internal/elasticsearch"
)

// fakeES is an in-memory IndexSearcher. Search honours bool.filter term
// clauses and from/size; the scoring clause is ignored.
type fakeES struct {
	mu      sync.Mutex
	indices map[string]map[string]map[string]any
	calls   []string

	// per-operation failures
	errs map[string]error
}

var _ elasticsearch.IndexSearcher = (*fakeES)(nil)

func newFakeES() *fakeES {
	return &fakeES{
		indices: map[string]map[string]map[string]any{},
		errs:    map[string]error{},
	}
}

func notFound() error {
	return fmt.Errorf("fake: %w", &elasticsearch.ResponseError{StatusCode: 404, Body: "{}"})
}

func (f *fakeES) record(op string) error {
	f.calls = append(f.calls, op)
	return f.errs[op]
}

func (f *fakeES) countCalls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeES) docs(index string) map[string]map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]map[string]any{}
	for id, d := range f.indices[index] {
		out[id] = d
	}
	return out
}

func (f *fakeES) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("ping")
}

func (f *fakeES) IndexDocument(_ context.Context, index, id string, doc any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("index"); err != nil {
		return err
	}
	if f.indices[index] == nil {
		f.indices[index] = map[string]map[string]any{}
	}
	f.indices[index][id] = copyDoc(doc)
	return nil
}

func (f *fakeES) UpdateDocument(_ context.Context, index, id string, doc any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("update"); err != nil {
		return err
	}
	stored, ok := f.indices[index][id]
	if !ok {
		return notFound()
	}
	for k, v := range copyDoc(doc) {
		stored[k] = v
	}
	return nil
}

func (f *fakeES) DeleteDocument(_ context.Context, index, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete"); err != nil {
		return err
	}
	if _, ok := f.indices[index][id]; !ok {
		return notFound()
	}
	delete(f.indices[index], id)
	return nil
}

func (f *fakeES) GetDocument(_ context.Context, index, id string) (*elasticsearch.GetResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("get"); err != nil {
		return nil, err
	}
	d, ok := f.indices[index][id]
	if !ok {
		return nil, notFound()
	}
	return &elasticsearch.GetResult{Index: index, ID: id, Found: true, Source: copyDoc(d)}, nil
}

func (f *fakeES) Search(_ context.Context, index string, body map[string]any) (*elasticsearch.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("search"); err != nil {
		return nil, err
	}

	terms := termFilters(body)
	ids := make([]string, 0, len(f.indices[index]))
	for id, d := range f.indices[index] {
		if matches(d, terms) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	from, size := 0, 10
	if v, ok := body["from"].(int); ok {
		from = v
	}
	if v, ok := body["size"].(int); ok {
		size = v
	}

	resp := &elasticsearch.SearchResponse{}
	resp.Hits.Total.Value = int64(len(ids))
	for i := from; i < len(ids) && i < from+size; i++ {
		resp.Hits.Hits = append(resp.Hits.Hits, struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		}{ID: ids[i], Score: 1, Source: copyDoc(f.indices[index][ids[i]])})
	}
	return resp, nil
}

func (f *fakeES) Refresh(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("refresh")
}

func (f *fakeES) CreateIndex(_ context.Context, index string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("create_index"); err != nil {
		return err
	}
	f.indices[index] = map[string]map[string]any{}
	return nil
}

func (f *fakeES) DeleteIndex(_ context.Context, index string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete_index"); err != nil {
		return err
	}
	delete(f.indices, index)
	return nil
}

func (f *fakeES) EnsureIndex(_ context.Context, index string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ensure_index"); err != nil {
		return err
	}
	if f.indices[index] == nil {
		f.indices[index] = map[string]map[string]any{}
	}
	return nil
}

func (f *fakeES) Health(context.Context, string) (*elasticsearch.HealthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("health"); err != nil {
		return nil, err
	}
	return &elasticsearch.HealthResponse{ClusterName: "fake", Status: "green", NumberOfNodes: 1, ActiveShards: 1}, nil
}

func copyDoc(doc any) map[string]any {
	var src map[string]any
	switch d := doc.(type) {
	case document.Document:
		src = d
	case map[string]any:
		src = d
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func termFilters(body map[string]any) map[string]any {
	out := map[string]any{}
	q, _ := body["query"].(map[string]any)
	b, _ := q["bool"].(map[string]any)
	filters, _ := b["filter"].([]map[string]any)
	for _, f := range filters {
		term, _ := f["term"].(map[string]any)
		for k, v := range term {
			out[k] = v
		}
	}
	return out
}

func matches(doc map[string]any, terms map[string]any) bool {
	for k, v := range terms {
		if fmt.Sprint(doc[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}
