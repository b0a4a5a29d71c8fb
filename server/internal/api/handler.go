package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/obsidianstack/funnelstack/pkg/types"
	"github.com/obsidianstack/funnelstack/server/internal/exposition"
	"github.com/obsidianstack/funnelstack/server/internal/funnel"
	"github.com/obsidianstack/funnelstack/server/internal/render"
	"github.com/obsidianstack/funnelstack/server/internal/source"
)

// errFetch is the only failure message clients see; details go to the log.
const errFetch = "Failed to fetch pipeline data"

const tracerName = "github.com/obsidianstack/funnelstack/server/internal/api"

// Handler is the HTTP handler for the pipeline endpoints.
type Handler struct {
	mu     sync.RWMutex
	active *activeSource
	// retiring tracks replaced sources still draining requests.
	retiring sync.WaitGroup

	corsOrigin string
	tracer     trace.Tracer
	mux        *http.ServeMux
}

// activeSource is a source plus the requests currently reading from it.
// closeFn runs once the source is replaced and inflight reaches zero.
type activeSource struct {
	src      source.Source
	closeFn  func() error
	inflight sync.WaitGroup
}

func (a *activeSource) retire() error {
	a.inflight.Wait()
	if a.closeFn == nil {
		return nil
	}
	return a.closeFn()
}

// Option configures a Handler.
type Option func(*Handler)

// WithCORSOrigin sets the Access-Control-Allow-Origin value. Empty disables
// the CORS headers.
func WithCORSOrigin(origin string) Option {
	return func(h *Handler) { h.corsOrigin = origin }
}

// WithSourceCloser sets the function that releases the initial source once it
// is replaced or the handler is closed.
func WithSourceCloser(fn func() error) Option {
	return func(h *Handler) { h.active.closeFn = fn }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Handler) { h.tracer = tp.Tracer(tracerName) }
}

// New creates a Handler reading from src and registers all routes.
func New(src source.Source, opts ...Option) *Handler {
	h := &Handler{
		active:     &activeSource{src: src},
		corsOrigin: "*",
		tracer:     otel.Tracer(tracerName),
		mux:        http.NewServeMux(),
	}
	for _, o := range opts {
		o(h)
	}

	h.mux.HandleFunc("/api/pipeline", h.pipeline)
	h.mux.HandleFunc("/api/pipeline/chart", h.chart)
	h.mux.HandleFunc("/api/pipeline/table", h.table)
	h.mux.HandleFunc("/metrics", h.metrics)
	h.mux.HandleFunc("/api/", h.notFound)

	return h
}

// SetSource swaps the source used by subsequent requests. The previous source
// is closed with its closer once the requests already reading it finish.
// closeFn may be nil.
func (h *Handler) SetSource(src source.Source, closeFn func() error) {
	h.mu.Lock()
	old := h.active
	h.active = &activeSource{src: src, closeFn: closeFn}
	h.retiring.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.retiring.Done()
		if err := old.retire(); err != nil {
			slog.Warn("api: closing previous data source", "err", err)
		}
	}()
}

// Close waits for replaced sources to drain, then closes the current one.
// Call it after the server has stopped accepting requests.
func (h *Handler) Close() error {
	h.mu.Lock()
	a := h.active
	h.mu.Unlock()

	h.retiring.Wait()
	return a.retire()
}

// acquire returns the current source and marks a request in flight on it.
// The caller must call release when done reading.
func (h *Handler) acquire() (src source.Source, release func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	a := h.active
	a.inflight.Add(1)
	return a.src, a.inflight.Done
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.corsOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", h.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// pipeline returns GET /api/pipeline - every stage with its derived metrics.
func (h *Handler) pipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp, err := h.load(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, errFetch)
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// chart returns GET /api/pipeline/chart - a bar chart of one measure.
func (h *Handler) chart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	m, err := render.ParseMeasure(q.Get("measure"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := render.ParseChartFormat(q.Get("format"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.load(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, errFetch)
		return
	}

	// Render fully before writing so a failure still gets a JSON error.
	var buf bytes.Buffer
	if err := render.Chart(&buf, resp, m, f); err != nil {
		slog.Error("api: render chart failed", "measure", m, "format", f, "err", err)
		jsonErr(w, http.StatusInternalServerError, errFetch)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// table returns GET /api/pipeline/table - the tabular view of one measure.
func (h *Handler) table(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	m, err := render.ParseMeasure(q.Get("measure"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	format := q.Get("format")
	switch format {
	case "", "tsv", "md", "html":
	default:
		jsonErr(w, http.StatusBadRequest, "unknown table format: want tsv|md|html")
		return
	}

	resp, err := h.load(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, errFetch)
		return
	}

	var body, contentType string
	switch format {
	case "md":
		body, contentType = render.Markdown(resp, m), "text/markdown; charset=utf-8"
	case "html":
		body, err = render.HTML(resp, m)
		if err != nil {
			slog.Error("api: render table failed", "measure", m, "err", err)
			jsonErr(w, http.StatusInternalServerError, errFetch)
			return
		}
		contentType = "text/html; charset=utf-8"
	default:
		body, contentType = render.TSV(resp, m), "text/tab-separated-values; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body)) //nolint:errcheck
}

// metrics returns GET /metrics - the derived pipeline as Prometheus gauges.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp, err := h.load(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, errFetch)
		return
	}

	var buf bytes.Buffer
	if err := exposition.Write(&buf, exposition.Families(resp)); err != nil {
		slog.Error("api: encode metrics failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, errFetch)
		return
	}
	w.Header().Set("Content-Type", string(exposition.Format))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// notFound answers unknown /api/ paths so API clients always get JSON.
func (h *Handler) notFound(w http.ResponseWriter, _ *http.Request) {
	jsonErr(w, http.StatusNotFound, "not found")
}

// --- helpers ----------------------------------------------------------------

// load reads the source and derives the pipeline. Errors are logged here.
func (h *Handler) load(ctx context.Context) (types.PipelineResponse, error) {
	ctx, span := h.tracer.Start(ctx, "pipeline.load")
	defer span.End()

	src, release := h.acquire()
	stages, err := src.Stages(ctx)
	release()
	if err != nil {
		slog.Error("api: read stages failed", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read stages")
		return types.PipelineResponse{}, err
	}
	span.SetAttributes(attribute.Int("funnel.stages", len(stages)))

	resp, err := funnel.Build(stages)
	if err != nil {
		slog.Error("api: derive metrics failed", "stages", len(stages), "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "derive metrics")
		return types.PipelineResponse{}, err
	}
	return resp, nil
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
