package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appclassify "github.com/bryanwahyu/webtaxon/internal/application/classify"
	apptaxonomy "github.com/bryanwahyu/webtaxon/internal/application/taxonomy"
	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
	"github.com/bryanwahyu/webtaxon/internal/domain/taxonomy"
	"github.com/bryanwahyu/webtaxon/internal/middleware"
)

const maxBodyBytes = 10 << 20

var errSearchDisabled = errors.New("search is not configured")

type Options struct {
	// AllowPrivate lets clients submit loopback and private-network URLs.
	AllowPrivate   bool
	MaxBatchURLs   int
	// BatchTimeout bounds one batch request so its response is written before the server's WriteTimeout.
	BatchTimeout   time.Duration
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
	HealthCheckers map[string]middleware.HealthChecker
}

type Router struct {
	classifySvc *appclassify.Service
	taxonomySvc *apptaxonomy.Service
	search      classification.SearchIndex
	metrics     *middleware.Metrics
	log         *zap.Logger
	opts        Options
}

func NewRouter(classifySvc *appclassify.Service, taxonomySvc *apptaxonomy.Service, search classification.SearchIndex,
	metrics *middleware.Metrics, log *zap.Logger, opts Options) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}
	if opts.MaxBatchURLs <= 0 {
		opts.MaxBatchURLs = 50
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	r := &Router{classifySvc: classifySvc, taxonomySvc: taxonomySvc, search: search, metrics: metrics, log: log, opts: opts}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.Logging(log))
	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	mux.Use(metrics.Middleware)
	if opts.RateLimiter != nil {
		mux.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
	}

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/classify", r.wrap(r.handleClassify))
		rt.Post("/classify/batch", r.wrap(r.handleClassifyBatch))
		rt.Get("/history", r.wrap(r.handleHistoryList))
		rt.Get("/history/{id}", r.wrap(r.handleHistoryGet))
		rt.Delete("/history/{id}", r.wrap(r.handleHistoryDelete))
		rt.Get("/tree", r.wrap(r.handleTree))
		rt.Post("/tree", r.wrap(r.handleTreeOf))
		rt.Post("/tree/snapshots", r.wrap(r.handleSnapshot))
		rt.Get("/search", r.wrap(r.handleSearch))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, msg := r.statusFor(err)
			if status >= http.StatusInternalServerError {
				r.log.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
			}
			writeJSON(w, status, map[string]string{"error": msg})
		}
	}
}

// statusFor maps domain errors onto HTTP.
func (r *Router) statusFor(err error) (int, string) {
	var blocked *classification.BlockedError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline exceeded before classification finished"
	case errors.As(err, &blocked):
		return http.StatusUnavailableForLegalReasons, "content blocked: " + blocked.Reason
	case errors.Is(err, classification.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, classification.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, classification.ErrContentUnavailable):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, classification.ErrFetch),
		errors.Is(err, classification.ErrOracleTransport),
		errors.Is(err, classification.ErrSanitize):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, taxonomy.ErrKindConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, apptaxonomy.ErrSnapshotsDisabled),
		errors.Is(err, appclassify.ErrHistoryDisabled),
		errors.Is(err, errSearchDisabled):
		return http.StatusNotImplemented, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// POST /v1/classify
// Body: {"url": "https://..."}
func (r *Router) handleClassify(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if err := r.checkURL(body.URL); err != nil {
		return err
	}

	res, err := r.classifySvc.Classify(req.Context(), appclassify.Command{URL: body.URL})
	r.metrics.ObserveClassification(err)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

type batchItem struct {
	URL            string                        `json:"url"`
	Status         int                           `json:"status"`
	ID             string                        `json:"id,omitempty"`
	Classification *classification.Classification `json:"classification,omitempty"`
	Error          string                        `json:"error,omitempty"`
}

// POST /v1/classify/batch
// Body: {"urls": ["https://...", ...]}
func (r *Router) handleClassifyBatch(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		URLs []string `json:"urls"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if len(body.URLs) == 0 {
		return fmt.Errorf("%w: urls is required", classification.ErrValidation)
	}
	if len(body.URLs) > r.opts.MaxBatchURLs {
		return fmt.Errorf("%w: at most %d urls per batch", classification.ErrValidation, r.opts.MaxBatchURLs)
	}

	// URLs refused here keep their slot but never reach the service.
	items := make([]batchItem, len(body.URLs))
	accepted := make([]string, 0, len(body.URLs))
	slots := make([]int, 0, len(body.URLs))
	for i, u := range body.URLs {
		if err := r.checkURL(u); err != nil {
			status, msg := r.statusFor(err)
			items[i] = batchItem{URL: u, Status: status, Error: msg}
			continue
		}
		accepted = append(accepted, u)
		slots = append(slots, i)
	}

	ctx := req.Context()
	if r.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.BatchTimeout)
		defer cancel()
	}
	for j, o := range r.classifySvc.ClassifyBatch(ctx, accepted) {
		r.metrics.ObserveClassification(o.Err)
		item := batchItem{URL: o.URL, Status: http.StatusOK}
		if o.Err != nil {
			item.Status, item.Error = r.statusFor(o.Err)
		} else {
			item.ID = o.Result.ID
			c := o.Result.Classification
			item.Classification = &c
		}
		items[slots[j]] = item
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": items})
	return nil
}

// GET /v1/history?page=&page_size=
func (r *Router) handleHistoryList(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.classifySvc.ListHistory(req.Context(), middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/history/{id}
func (r *Router) handleHistoryGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateEntryID(id); err != nil {
		return fmt.Errorf("%w: %v", classification.ErrValidation, err)
	}
	e, err := r.classifySvc.Entry(req.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, e)
	return nil
}

// DELETE /v1/history/{id}
func (r *Router) handleHistoryDelete(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateEntryID(id); err != nil {
		return fmt.Errorf("%w: %v", classification.ErrValidation, err)
	}
	if err := r.classifySvc.DeleteEntry(req.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/tree
func (r *Router) handleTree(w http.ResponseWriter, req *http.Request) error {
	tree, err := r.taxonomySvc.Tree(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, tree)
	return nil
}

// POST /v1/tree
// Body: {"entries": [{"id": "...", "url": "...", "classification": {...}}, ...]}
func (r *Router) handleTreeOf(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Entries []classification.HistoryEntry `json:"entries"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	tree, err := r.taxonomySvc.TreeOf(body.Entries)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, tree)
	return nil
}

// POST /v1/tree/snapshots
func (r *Router) handleSnapshot(w http.ResponseWriter, req *http.Request) error {
	snap, err := r.taxonomySvc.Snapshot(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, snap)
	return nil
}

// GET /v1/search?q=&from=&size=
func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) error {
	if r.search == nil {
		return errSearchDisabled
	}
	q := middleware.SanitizeString(req.URL.Query().Get("q"))
	from, _ := strconv.Atoi(req.URL.Query().Get("from"))
	size, _ := strconv.Atoi(req.URL.Query().Get("size"))

	res, err := r.search.Search(req.Context(), q, from, middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func (r *Router) checkURL(raw string) error {
	if _, err := appclassify.ParseTarget(raw); err != nil {
		return err
	}
	if r.opts.AllowPrivate {
		return nil
	}
	if err := middleware.ValidateURL(raw); err != nil {
		return fmt.Errorf("%w: %v", classification.ErrValidation, err)
	}
	return nil
}

func decode(w http.ResponseWriter, req *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", classification.ErrValidation, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
