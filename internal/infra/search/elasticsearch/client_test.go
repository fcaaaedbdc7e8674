package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/webtaxon/internal/domain/classification"
)

type fakeES struct {
	mu       sync.Mutex
	indexed  map[string]json.RawMessage
	lastBody map[string]any
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_ = json.Unmarshal(body, &f.lastBody)
		var hits []map[string]any
		for _, doc := range f.indexed {
			hits = append(hits, map[string]any{"_source": doc})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hits": map[string]any{"total": map[string]any{"value": len(hits)}, "hits": hits},
		})
	case strings.Contains(r.URL.Path, "/_doc/"):
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		f.indexed[id] = body
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func newClient(t *testing.T) (*Client, *fakeES) {
	t.Helper()
	fake := &fakeES{indexed: map[string]json.RawMessage{}}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	c, err := New(ts.URL, "classifications", nil)
	require.NoError(t, err)
	return c, fake
}

func TestIndexAndSearch(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()
	created := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.Index(ctx, &domain.HistoryEntry{
		ID:  "e1",
		URL: "https://a.example",
		Classification: &domain.Classification{
			URLType:              "Blog",
			ContentTypeHierarchy: []string{"Tech"},
			Keywords:             []string{"go"},
		},
		CreatedAt: created,
	}))
	// failures are not searchable
	require.NoError(t, c.Index(ctx, &domain.HistoryEntry{ID: "e2", URL: "https://b.example", Error: "boom"}))

	fake.mu.Lock()
	require.Len(t, fake.indexed, 1)
	var doc document
	require.NoError(t, json.Unmarshal(fake.indexed["e1"], &doc))
	fake.mu.Unlock()
	require.Equal(t, domain.UnknownFormat, doc.ContentFormat)
	require.Equal(t, "Low", doc.Confidence)

	res, err := c.Search(ctx, "blog", 0, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	require.Equal(t, "e1", res.Items[0].ID)
	require.Equal(t, "Blog", res.Items[0].Classification.URLType)
	require.Equal(t, created, res.Items[0].CreatedAt)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Contains(t, fake.lastBody["query"], "multi_match")
}

func TestSearchBody(t *testing.T) {
	b := searchBody("", -5, 1000)
	require.Equal(t, 0, b["from"])
	require.Equal(t, maxPageSize, b["size"])
	require.Contains(t, b["query"], "match_all")

	b = searchBody("news", 10, 0)
	require.Equal(t, 20, b["size"])
	require.Contains(t, b["query"], "multi_match")
}
