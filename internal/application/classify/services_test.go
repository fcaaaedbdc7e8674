package classify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	domain "github.com/bryanwahyu/webtaxon/internal/domain/classification"
	"github.com/bryanwahyu/webtaxon/internal/infra/ai/prompt"
	"github.com/bryanwahyu/webtaxon/internal/infra/db/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const okReply = "Here you go:\n```json\n{\"urlType\":\"Blog\",\"contentFormat\":\"HTML\",\"contentTypeHierarchy\":[\"Tech\",\"Go\"],\"primaryLanguage\":\"English\",\"confidence\":\"High\",\"keywords\":[\"go\",\"concurrency\",\"channels\"]}\n```"

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeFetcher struct {
	calls atomic.Int32
	fn    func(url string) (domain.Document, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (domain.Document, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(url)
	}
	return domain.Document{FinalURL: url, StatusCode: 200, ContentType: "text/html", Body: []byte("<p>hi</p>")}, nil
}

type fakeExtractor struct{ text string }

func (f fakeExtractor) Extract(body []byte, contentType string) (string, error) { return f.text, nil }

type fakeOracle struct {
	mu      sync.Mutex
	prompts []string
	reply   domain.Reply
	err     error
}

func (o *fakeOracle) Generate(ctx context.Context, p string) (domain.Reply, error) {
	o.mu.Lock()
	o.prompts = append(o.prompts, p)
	o.mu.Unlock()
	return o.reply, o.err
}

func (o *fakeOracle) calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.prompts)
}

type recorder struct {
	mu      sync.Mutex
	entries []*domain.HistoryEntry
}

func (r *recorder) Publish(ctx context.Context, e *domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *recorder) Index(ctx context.Context, e *domain.HistoryEntry) error { return r.Publish(ctx, e) }

func (r *recorder) Search(ctx context.Context, q string, from, size int) (*domain.SearchResult, error) {
	return &domain.SearchResult{}, nil
}

type failingRepo struct{ *memory.HistoryRepository }

func (failingRepo) Save(ctx context.Context, e *domain.HistoryEntry) error { return errors.New("disk full") }

func newService(oracle *fakeOracle, text string) (*Service, *fakeFetcher, *memory.HistoryRepository) {
	fetcher := &fakeFetcher{}
	repo := memory.NewHistoryRepository()
	return &Service{
		Fetcher:   fetcher,
		Extractor: fakeExtractor{text: text},
		Oracle:    oracle,
		History:   repo,
		Clock:     fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}, fetcher, repo
}

func TestClassifySuccess(t *testing.T) {
	oracle := &fakeOracle{reply: domain.Reply{Text: okReply}}
	svc, _, repo := newService(oracle, "Go blog post about channels")
	events, index := &recorder{}, &recorder{}
	svc.Events, svc.Search = events, index

	res, err := svc.Classify(context.Background(), Command{URL: "https://blog.example/go"})
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)
	require.Equal(t, "Blog", res.Classification.URLType)
	require.Equal(t, []string{"Tech", "Go"}, res.Classification.ContentTypeHierarchy)
	require.Equal(t, domain.ConfidenceHigh, res.Classification.Confidence)
	require.IsType(t, map[string]any{}, res.Raw)

	stored, err := repo.Get(context.Background(), res.ID)
	require.NoError(t, err)
	require.True(t, stored.Classified())
	require.Equal(t, "https://blog.example/go", stored.URL)

	require.Len(t, events.entries, 1)
	require.Len(t, index.entries, 1)
}

func TestClassifyRejectsInvalidURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com/file", "/relative/path", "https://", "not a url"} {
		oracle := &fakeOracle{reply: domain.Reply{Text: okReply}}
		svc, fetcher, repo := newService(oracle, "text")

		_, err := svc.Classify(context.Background(), Command{URL: raw})
		require.ErrorIs(t, err, domain.ErrValidation, raw)
		require.Zero(t, fetcher.calls.Load(), raw)

		all, _ := repo.All(context.Background())
		require.Empty(t, all, raw)
	}
}

func TestClassifyFetchFailureIsRecorded(t *testing.T) {
	oracle := &fakeOracle{reply: domain.Reply{Text: okReply}}
	svc, fetcher, repo := newService(oracle, "text")
	fetcher.fn = func(url string) (domain.Document, error) {
		return domain.Document{}, errors.New("connection refused")
	}

	_, err := svc.Classify(context.Background(), Command{URL: "https://down.example"})
	require.ErrorIs(t, err, domain.ErrFetch)
	require.Zero(t, oracle.calls())

	all, err := repo.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.False(t, all[0].Classified())
	require.Contains(t, all[0].Error, "connection refused")
}

func TestClassifyEmptyContentSkipsOracle(t *testing.T) {
	for _, text := range []string{"", "  \n\t "} {
		oracle := &fakeOracle{reply: domain.Reply{Text: okReply}}
		svc, _, _ := newService(oracle, text)

		_, err := svc.Classify(context.Background(), Command{URL: "https://empty.example"})
		require.ErrorIs(t, err, domain.ErrContentUnavailable)
		require.Zero(t, oracle.calls())
	}
}

func TestClassifyTruncatesToMaxChars(t *testing.T) {
	oracle := &fakeOracle{reply: domain.Reply{Text: okReply}}
	svc, _, _ := newService(oracle, strings.Repeat("é", 25))
	svc.MaxChars = 10

	_, err := svc.Classify(context.Background(), Command{URL: "https://long.example"})
	require.NoError(t, err)

	_, text, ok := prompt.Fields(oracle.prompts[0])
	require.True(t, ok)
	require.Equal(t, 10, utf8.RuneCountInString(text))
	require.Equal(t, strings.Repeat("é", 10), text)
}

func TestClassifyBlocked(t *testing.T) {
	oracle := &fakeOracle{reply: domain.Reply{BlockReason: "SAFETY"}}
	svc, _, repo := newService(oracle, "text")
	events := &recorder{}
	svc.Events = events

	res, err := svc.Classify(context.Background(), Command{URL: "https://blocked.example"})
	require.ErrorIs(t, err, domain.ErrOracleBlocked)
	require.NotErrorIs(t, err, domain.ErrSanitize)
	require.Empty(t, res.ID)

	var be *domain.BlockedError
	require.ErrorAs(t, err, &be)
	require.Equal(t, "SAFETY", be.Reason)
	require.Empty(t, events.entries)

	all, _ := repo.All(context.Background())
	require.Len(t, all, 1)
	require.Nil(t, all[0].Classification)
}

func TestClassifyOracleTransportErrorIsBounded(t *testing.T) {
	oracle := &fakeOracle{err: errors.New(strings.Repeat("x", 5000))}
	svc, _, _ := newService(oracle, "text")

	_, err := svc.Classify(context.Background(), Command{URL: "https://a.example"})
	require.ErrorIs(t, err, domain.ErrOracleTransport)
	require.LessOrEqual(t, len(err.Error()), len(domain.ErrOracleTransport.Error())+2+domain.ExcerptLimit)
}

func TestClassifySanitizeFailure(t *testing.T) {
	oracle := &fakeOracle{reply: domain.Reply{Text: "I think this is a blog about Go."}}
	svc, _, _ := newService(oracle, "text")

	_, err := svc.Classify(context.Background(), Command{URL: "https://a.example"})
	require.ErrorIs(t, err, domain.ErrSanitize)

	var se *domain.SanitizeError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "I think this is a blog about Go.", se.Excerpt)
}

func TestClassifyHistoryFailureFailsRequest(t *testing.T) {
	oracle := &fakeOracle{reply: domain.Reply{Text: okReply}}
	svc, _, _ := newService(oracle, "text")
	svc.History = failingRepo{memory.NewHistoryRepository()}

	_, err := svc.Classify(context.Background(), Command{URL: "https://a.example"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
}

type gaugeFetcher struct {
	inFlight, peak atomic.Int32
}

func (g *gaugeFetcher) Fetch(ctx context.Context, url string) (domain.Document, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return domain.Document{FinalURL: url, StatusCode: 200, ContentType: "text/plain", Body: []byte("x")}, nil
}

func TestClassifyBatchKeepsOrderAndLimit(t *testing.T) {
	oracle := &fakeOracle{reply: domain.Reply{Text: okReply}}
	svc, _, repo := newService(oracle, "text")
	gauge := &gaugeFetcher{}
	svc.Fetcher = gauge
	svc.BatchConcurrency = 2

	urls := []string{"https://1.example", "nope", "https://3.example", "https://4.example", "https://5.example"}
	out := svc.ClassifyBatch(context.Background(), urls)
	require.Len(t, out, len(urls))

	for i, o := range out {
		require.Equal(t, urls[i], o.URL)
		if i == 1 {
			require.ErrorIs(t, o.Err, domain.ErrValidation)
			require.Nil(t, o.Result)
			continue
		}
		require.NoError(t, o.Err)
		require.NotNil(t, o.Result)
		require.Equal(t, urls[i], o.Result.URL)
	}
	require.LessOrEqual(t, gauge.peak.Load(), int32(2))

	all, _ := repo.All(context.Background())
	require.Len(t, all, 4)
}

func TestClassifyBatchSkipsQueuedItemsAfterDeadline(t *testing.T) {
	oracle := &fakeOracle{reply: domain.Reply{Text: okReply}}
	svc, fetcher, repo := newService(oracle, "text")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := svc.ClassifyBatch(ctx, []string{"https://1.example", "https://2.example"})
	require.Len(t, out, 2)
	for _, o := range out {
		require.ErrorIs(t, o.Err, context.Canceled)
		require.Nil(t, o.Result)
	}
	require.Zero(t, fetcher.calls.Load())

	all, _ := repo.All(context.Background())
	require.Empty(t, all)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "héllo", Truncate("héllo wörld", 5))
	require.Equal(t, "short", Truncate("short", 100))
	require.Equal(t, "as is", Truncate("as is", 0))
}

func TestParseTarget(t *testing.T) {
	got, err := ParseTarget("  HTTPS://Example.com/a?b=c ")
	require.NoError(t, err)
	require.Equal(t, "https://Example.com/a?b=c", got)
}

func TestHistoryQueries(t *testing.T) {
	oracle := &fakeOracle{reply: domain.Reply{Text: okReply}}
	svc, _, _ := newService(oracle, "text")
	ctx := context.Background()

	res, err := svc.Classify(ctx, Command{URL: "https://a.example"})
	require.NoError(t, err)

	page, err := svc.ListHistory(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, res.ID, page.Items[0].ID)

	e, err := svc.Entry(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, "https://a.example", e.URL)

	require.NoError(t, svc.DeleteEntry(ctx, res.ID))
	_, err = svc.Entry(ctx, res.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	svc.History = nil
	_, err = svc.ListHistory(ctx, 1, 10)
	require.ErrorIs(t, err, ErrHistoryDisabled)
}
