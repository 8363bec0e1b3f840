package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gavram/ckan-search/internal/service"
)

// cluster answers the few Elasticsearch endpoints the commands touch.
type cluster struct {
	mu     sync.Mutex
	bodies map[string]string
}

func (c *cluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	c.bodies[r.Method+" "+r.URL.Path] = string(body)
	c.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/ckan/_search":
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":1,"relation":"eq"},"hits":[
			{"_id":"ds-1","_score":1.5,"_source":{"id":"ds-1","title":"Bus stops"}}]}}`)
	case r.URL.Path == "/ckan/_doc/ds-1" && r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `{"_index":"ckan","_id":"ds-1","found":true,"_source":{"id":"ds-1","title":"Bus stops"}}`)
	case r.URL.Path == "/ckan/_refresh":
		_, _ = io.WriteString(w, `{"_shards":{"total":1,"successful":1,"failed":0}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"not found"}`)
	}
}

func (c *cluster) body(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bodies[key]
}

func execute(t *testing.T, args ...string) (string, *cluster, error) {
	t.Helper()
	es := &cluster{bodies: map[string]string{}}
	srv := httptest.NewServer(es)
	t.Cleanup(srv.Close)

	t.Setenv("ELASTICSEARCH_URL", srv.URL)
	t.Setenv("ELASTICSEARCH_INDEX", "ckan")
	t.Setenv("LOG_LEVEL", "error")

	queryFlags.q, queryFlags.fq, queryFlags.sort = "", nil, ""
	queryFlags.start, queryFlags.rows = -1, -1
	queryFlags.facet, queryFlags.decodeT = false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), es, err
}

func TestQueryCommand(t *testing.T) {
	out, es, err := execute(t, "query", "-q", "bus", "--fq", "organization:city", "--rows", "5", "--sort", "title asc")
	require.NoError(t, err)

	var res service.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.EqualValues(t, 1, res.Count)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "Bus stops", res.Results[0]["title"])
	assert.NotNil(t, res.Facets)

	sent := es.body("POST /ckan/_search")
	assert.Contains(t, sent, `"multi_match"`)
	assert.Contains(t, sent, `"organization":"city"`)
	assert.Contains(t, sent, `"size":5`)
	assert.Contains(t, sent, `"title":{"order":"asc"}`)
}

func TestQueryCommand_FacetsRefused(t *testing.T) {
	_, es, err := execute(t, "query", "--facet")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrFacetsUnsupported)
	assert.Empty(t, es.body("POST /ckan/_search"))
}

func TestQueryCommand_BadFilter(t *testing.T) {
	_, _, err := execute(t, "query", "--fq", "nocolon")
	assert.Error(t, err)
}

func TestIndexShowCommand(t *testing.T) {
	out, _, err := execute(t, "index", "show", "ds-1")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `"title": "Bus stops"`), out)
}

func TestIndexCommitCommand(t *testing.T) {
	_, es, err := execute(t, "index", "commit")
	require.NoError(t, err)
	assert.Contains(t, es.bodies, "POST /ckan/_refresh")
}
