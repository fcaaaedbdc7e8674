package classification

import "context"

// Document is the raw response of an origin fetch.
type Document struct {
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher port (retrieves markup for a URL)
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Document, error)
}

// Extractor port (markup -> plain text)
type Extractor interface {
	Extract(body []byte, contentType string) (string, error)
}

// Reply is what the oracle answered: candidate text, or a block reason instead of text.
type Reply struct {
	Text        string
	BlockReason string
}

// Oracle port (natural-language generation service)
type Oracle interface {
	Generate(ctx context.Context, prompt string) (Reply, error)
}

// HistoryRepository port (persistence for past analyses)
type HistoryRepository interface {
	Save(ctx context.Context, e *HistoryEntry) error
	Get(ctx context.Context, id string) (*HistoryEntry, error)
	Paginate(ctx context.Context, page, pageSize int) ([]*HistoryEntry, error)
	// All returns every entry ordered oldest first.
	All(ctx context.Context) ([]*HistoryEntry, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
}

// EventPublisher port (fan-out of completed classifications)
type EventPublisher interface {
	Publish(ctx context.Context, e *HistoryEntry) error
}

// SearchIndex port (keyword search over classified entries)
type SearchIndex interface {
	Index(ctx context.Context, e *HistoryEntry) error
	Search(ctx context.Context, query string, from, size int) (*SearchResult, error)
}

// SearchResult bundles hits and total count.
type SearchResult struct {
	Total int64           `json:"total"`
	Items []*HistoryEntry `json:"items"`
}
