package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	domain "github.com/bryanwahyu/webtaxon/internal/domain/classification"
)

const maxPageSize = 200

// Client indexes classified history entries for keyword search.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *zap.Logger
}

// document is the indexed shape; labels are flattened so they can be matched directly.
type document struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	URLType       string    `json:"url_type"`
	ContentFormat string    `json:"content_format"`
	Hierarchy     []string  `json:"hierarchy"`
	Language      string    `json:"language"`
	Confidence    string    `json:"confidence"`
	Keywords      []string  `json:"keywords"`
	CreatedAt     time.Time `json:"created_at"`
}

func New(addr, index string, logger *zap.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{es: es, index: index, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

// Index writes a classified entry; unclassified entries are ignored.
func (c *Client) Index(ctx context.Context, e *domain.HistoryEntry) error {
	if e == nil || !e.Classified() {
		return nil
	}
	payload, err := json.Marshal(toDocument(e))
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: e.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}
	c.log.Debug("indexed classification", zap.String("id", e.ID))
	return nil
}

// Search runs a multi_match over labels and keywords, newest first. An empty query matches all.
func (c *Client) Search(ctx context.Context, query string, from, size int) (*domain.SearchResult, error) {
	payload, err := json.Marshal(searchBody(query, from, size))
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]*domain.HistoryEntry, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, hit.Source.entry())
	}
	return &domain.SearchResult{Total: parsed.Hits.Total.Value, Items: items}, nil
}

func searchBody(query string, from, size int) map[string]any {
	if size <= 0 {
		size = 20
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if from < 0 {
		from = 0
	}

	q := map[string]any{"match_all": map[string]any{}}
	if query = strings.TrimSpace(query); query != "" {
		q = map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"url_type^2", "hierarchy^2", "keywords", "content_format", "language", "url"},
			},
		}
	}
	return map[string]any{
		"from":             from,
		"size":             size,
		"track_total_hits": true,
		"query":            q,
		"sort": []map[string]any{
			{"created_at": map[string]any{"order": "desc"}},
		},
	}
}

func toDocument(e *domain.HistoryEntry) document {
	c := e.Classification.WithDefaults()
	return document{
		ID:            e.ID,
		URL:           e.URL,
		URLType:       c.URLType,
		ContentFormat: c.ContentFormat,
		Hierarchy:     c.ContentTypeHierarchy,
		Language:      c.PrimaryLanguage,
		Confidence:    string(c.Confidence),
		Keywords:      c.Keywords,
		CreatedAt:     e.CreatedAt,
	}
}

func (d document) entry() *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:  d.ID,
		URL: d.URL,
		Classification: &domain.Classification{
			URLType:              d.URLType,
			ContentFormat:        d.ContentFormat,
			ContentTypeHierarchy: d.Hierarchy,
			PrimaryLanguage:      d.Language,
			Confidence:           domain.Confidence(d.Confidence),
			Keywords:             d.Keywords,
		},
		CreatedAt: d.CreatedAt,
	}
}
