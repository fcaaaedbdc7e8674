package classify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/webtaxon/internal/application"
	domain "github.com/bryanwahyu/webtaxon/internal/domain/classification"
	"github.com/bryanwahyu/webtaxon/internal/infra/ai/prompt"
)

const (
	DefaultMaxChars         = 10000
	DefaultBatchConcurrency = 4
)

// ErrHistoryDisabled is returned by history queries when no repository is configured.
var ErrHistoryDisabled = errors.New("history is not configured")

// Service runs the fetch → extract → oracle → sanitize pipeline for one URL at a time.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	Fetcher   domain.Fetcher
	Extractor domain.Extractor
	Oracle    domain.Oracle

	// optional collaborators, nil disables them
	History domain.HistoryRepository
	Events  domain.EventPublisher
	Search  domain.SearchIndex

	Clock  application.Clock
	Logger *zap.Logger

	MaxChars         int
	OracleTimeout    time.Duration
	BatchConcurrency int
}

type Command struct {
	URL string
}

type Result struct {
	ID             string                `json:"id"`
	URL            string                `json:"url"`
	FinalURL       string                `json:"final_url,omitempty"`
	Classification domain.Classification `json:"classification"`
	Raw            any                   `json:"raw,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// Outcome is one item of a batch run. Exactly one of Result and Err is set.
type Outcome struct {
	URL    string
	Result *Result
	Err    error
}

// Classify analyses one URL. It returns either a Result, a *domain.BlockedError, or another
// typed error; the analysis is recorded into history either way when History is set.
func (s *Service) Classify(ctx context.Context, cmd Command) (Result, error) {
	target, err := ParseTarget(cmd.URL)
	if err != nil {
		return Result{}, err
	}

	id := uuid.New().String()
	now := s.now()
	log := s.logger().With(zap.String("id", id), zap.String("url", target))

	res, err := s.analyze(ctx, id, target, now)
	if err != nil {
		log.Warn("classification failed", zap.Error(err))
		s.recordFailure(ctx, log, &domain.HistoryEntry{ID: id, URL: target, Error: err.Error(), CreatedAt: now})
		return Result{}, err
	}

	entry := &domain.HistoryEntry{ID: id, URL: target, Classification: &res.Classification, CreatedAt: now}
	if s.History != nil {
		if err := s.History.Save(ctx, entry); err != nil {
			return Result{}, fmt.Errorf("record history: %w", err)
		}
	}
	s.fanOut(ctx, log, entry)

	log.Info("classified", zap.String("url_type", res.Classification.URLType), zap.Strings("hierarchy", res.Classification.ContentTypeHierarchy))
	return res, nil
}

// ClassifyBatch classifies every url with bounded concurrency. Outcomes keep input order and
// one failing url never affects the others.
func (s *Service) ClassifyBatch(ctx context.Context, urls []string) []Outcome {
	out := make([]Outcome, len(urls))
	limit := s.BatchConcurrency
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, u := range urls {
		g.Go(func() error {
			// items still queued when the deadline passes are reported, not attempted
			if err := ctx.Err(); err != nil {
				out[i] = Outcome{URL: u, Err: err}
				return nil
			}
			res, err := s.Classify(ctx, Command{URL: u})
			if err != nil {
				out[i] = Outcome{URL: u, Err: err}
				return nil
			}
			out[i] = Outcome{URL: u, Result: &res}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// HistoryPage is one page of past analyses, newest first.
type HistoryPage struct {
	Items      []*domain.HistoryEntry `json:"items"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	Total      int64                  `json:"total"`
	TotalPages int                    `json:"total_pages"`
}

// ListHistory returns a page of recorded analyses.
func (s *Service) ListHistory(ctx context.Context, page, pageSize int) (HistoryPage, error) {
	if s.History == nil {
		return HistoryPage{}, ErrHistoryDisabled
	}
	items, err := s.History.Paginate(ctx, page, pageSize)
	if err != nil {
		return HistoryPage{}, err
	}
	total, err := s.History.Count(ctx)
	if err != nil {
		return HistoryPage{}, err
	}
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return HistoryPage{Items: items, Page: page, PageSize: pageSize, Total: total, TotalPages: pages}, nil
}

// Entry returns one recorded analysis or domain.ErrNotFound.
func (s *Service) Entry(ctx context.Context, id string) (*domain.HistoryEntry, error) {
	if s.History == nil {
		return nil, ErrHistoryDisabled
	}
	return s.History.Get(ctx, id)
}

// DeleteEntry forgets one analysis; the tree drops it on the next build.
func (s *Service) DeleteEntry(ctx context.Context, id string) error {
	if s.History == nil {
		return ErrHistoryDisabled
	}
	return s.History.Delete(ctx, id)
}

func (s *Service) analyze(ctx context.Context, id, target string, now time.Time) (Result, error) {
	doc, err := s.Fetcher.Fetch(ctx, target)
	if err != nil {
		var fe *domain.FetchError
		if errors.As(err, &fe) {
			return Result{}, err
		}
		return Result{}, &domain.FetchError{URL: target, Err: err}
	}

	text, err := s.Extractor.Extract(doc.Body, doc.ContentType)
	if err != nil {
		return Result{}, fmt.Errorf("%w: extract: %v", domain.ErrContentUnavailable, err)
	}
	text = Truncate(text, s.maxChars())
	if strings.TrimSpace(text) == "" {
		return Result{}, domain.ErrContentUnavailable
	}

	octx := ctx
	if s.OracleTimeout > 0 {
		var cancel context.CancelFunc
		octx, cancel = context.WithTimeout(ctx, s.OracleTimeout)
		defer cancel()
	}
	reply, err := s.Oracle.Generate(octx, prompt.Classification(target, text))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrOracleTransport, domain.Excerpt(err.Error(), domain.ExcerptLimit))
	}
	if reply.BlockReason != "" {
		return Result{}, &domain.BlockedError{Reason: reply.BlockReason}
	}

	c, raw, err := domain.Parse(domain.RawObservation{
		ResourceID:    id,
		URL:           target,
		RawOracleText: reply.Text,
		Timestamp:     now,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		ID:             id,
		URL:            target,
		FinalURL:       doc.FinalURL,
		Classification: c,
		Raw:            raw,
		CreatedAt:      now,
	}, nil
}

func (s *Service) recordFailure(ctx context.Context, log *zap.Logger, e *domain.HistoryEntry) {
	if s.History == nil {
		return
	}
	if err := s.History.Save(ctx, e); err != nil {
		log.Error("record failed analysis", zap.Error(err))
	}
}

// fanOut publishes and indexes a stored entry. Both are best effort.
func (s *Service) fanOut(ctx context.Context, log *zap.Logger, e *domain.HistoryEntry) {
	if s.Events != nil {
		if err := s.Events.Publish(ctx, e); err != nil {
			log.Warn("publish classification event", zap.Error(err))
		}
	}
	if s.Search != nil {
		if err := s.Search.Index(ctx, e); err != nil {
			log.Warn("index classification", zap.Error(err))
		}
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) maxChars() int {
	if s.MaxChars <= 0 {
		return DefaultMaxChars
	}
	return s.MaxChars
}

// ParseTarget accepts absolute http and https URLs only.
func ParseTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", domain.ErrValidation)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: malformed url", domain.ErrValidation)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: url scheme must be http or https", domain.ErrValidation)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: url must be absolute", domain.ErrValidation)
	}
	return u.String(), nil
}

// Truncate keeps at most max runes of text. A non-positive max disables truncation.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	return domain.Excerpt(text, max)
}
