package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/obsidianstack/funnelstack/pkg/types"
	"github.com/obsidianstack/funnelstack/server/internal/api"
	"github.com/obsidianstack/funnelstack/server/internal/exposition"
	"github.com/obsidianstack/funnelstack/server/internal/source"
)

// --- test helpers -----------------------------------------------------------

// stubSource returns fixed stages or a fixed error, counting calls.
type stubSource struct {
	stages []types.StageRecord
	err    error
	calls  int
}

func (s *stubSource) Stages(context.Context) ([]types.StageRecord, error) {
	s.calls++
	return s.stages, s.err
}

func leadWon() *stubSource {
	return &stubSource{stages: []types.StageRecord{
		{Label: "Lead", Count: 100, ACV: 1000000},
		{Label: "Won", Count: 20, ACV: 200000},
	}}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/pipeline ----------------------------------------------------------

func TestPipeline_Derived(t *testing.T) {
	h := api.New(leadWon())
	rr := get(t, h, "/api/pipeline")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var resp types.PipelineResponse
	decode(t, rr, &resp)

	if len(resp.Stages) != 2 {
		t.Fatalf("stages: got %d, want 2", len(resp.Stages))
	}
	lead, won := resp.Stages[0], resp.Stages[1]
	if lead.WinRateByCount != "20%" || lead.LostCount != 80 || lead.MovedToNextCount != 20 {
		t.Errorf("Lead: got %+v", lead)
	}
	if won.WinRateByCount != "100%" || won.LostCount != 0 || won.MovedToNextCount != 0 {
		t.Errorf("Won: got %+v", won)
	}
	if resp.Summary.TotalLostCount != 80 {
		t.Errorf("totalLostCount: got %d, want 80", resp.Summary.TotalLostCount)
	}
	if resp.Summary.OverallWinRateByCount != "20%" {
		t.Errorf("overallWinRateByCount: got %q, want 20%%", resp.Summary.OverallWinRateByCount)
	}
}

func TestPipeline_JSONFieldNames(t *testing.T) {
	rr := get(t, api.New(leadWon()), "/api/pipeline")

	var resp map[string]interface{}
	decode(t, rr, &resp)

	stages, ok := resp["stages"].([]interface{})
	if !ok || len(stages) != 2 {
		t.Fatalf("stages: got %v", resp["stages"])
	}
	lead := stages[0].(map[string]interface{})
	for _, k := range []string{
		"label", "count", "acv", "winRateByCount", "winRateByACV",
		"lostCount", "lostACV", "movedToNextCount", "movedToNextACV",
	} {
		if _, ok := lead[k]; !ok {
			t.Errorf("stage field %q missing", k)
		}
	}
	summary := resp["summary"].(map[string]interface{})
	for _, k := range []string{"totalLostCount", "totalLostACV", "overallWinRateByCount", "overallWinRateByACV"} {
		if _, ok := summary[k]; !ok {
			t.Errorf("summary field %q missing", k)
		}
	}
}

func TestPipeline_RecomputesEveryRequest(t *testing.T) {
	src := leadWon()
	h := api.New(src)
	get(t, h, "/api/pipeline")
	get(t, h, "/api/pipeline")
	if src.calls != 2 {
		t.Errorf("source calls: got %d, want 2", src.calls)
	}
}

func TestPipeline_SourceError(t *testing.T) {
	h := api.New(&stubSource{err: errors.New("disk on fire")})
	rr := get(t, h, "/api/pipeline")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["error"] != "Failed to fetch pipeline data" {
		t.Errorf("error: got %v", resp["error"])
	}
	if _, ok := resp["stages"]; ok {
		t.Error("stages present in error response")
	}
}

func TestPipeline_EmptySource(t *testing.T) {
	rr := get(t, api.New(&stubSource{}), "/api/pipeline")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rr.Code)
	}
}

func TestPipeline_MethodNotAllowed(t *testing.T) {
	h := api.New(leadWon())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/pipeline", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

func TestPipeline_SetSource(t *testing.T) {
	h := api.New(&stubSource{err: errors.New("unavailable")})
	if rr := get(t, h, "/api/pipeline"); rr.Code != http.StatusInternalServerError {
		t.Fatalf("status before swap: got %d, want 500", rr.Code)
	}
	h.SetSource(leadWon(), nil)
	if rr := get(t, h, "/api/pipeline"); rr.Code != http.StatusOK {
		t.Errorf("status after swap: got %d, want 200", rr.Code)
	}
}

// blockingSource parks every read until release is closed.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingSource) Stages(context.Context) ([]types.StageRecord, error) {
	close(s.entered)
	<-s.release
	return leadWon().stages, nil
}

func TestPipeline_SetSourceDrainsInflight(t *testing.T) {
	old := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	closed := make(chan struct{})
	h := api.New(old, api.WithSourceCloser(func() error {
		close(closed)
		return nil
	}))

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- get(t, h, "/api/pipeline") }()
	<-old.entered

	h.SetSource(leadWon(), nil)
	if rr := get(t, h, "/api/pipeline"); rr.Code != http.StatusOK {
		t.Fatalf("status on new source: got %d, want 200", rr.Code)
	}

	select {
	case <-closed:
		t.Fatal("previous source closed while a request was still reading it")
	case <-time.After(100 * time.Millisecond):
	}

	close(old.release)
	if rr := <-done; rr.Code != http.StatusOK {
		t.Errorf("in-flight status: got %d, want 200", rr.Code)
	}
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("previous source never closed after its request finished")
	}
}

func TestHandler_Close(t *testing.T) {
	var order []string
	h := api.New(leadWon(), api.WithSourceCloser(func() error {
		order = append(order, "first")
		return nil
	}))
	h.SetSource(leadWon(), func() error {
		order = append(order, "second")
		return errors.New("close failed")
	})

	if err := h.Close(); err == nil || err.Error() != "close failed" {
		t.Errorf("Close: got %v, want close failed", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("close order: got %v, want [first second]", order)
	}
}

func TestPipeline_FileSource(t *testing.T) {
	h := api.New(source.NewFile("../../../data/pipeline.json"))
	rr := get(t, h, "/api/pipeline")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	var resp types.PipelineResponse
	decode(t, rr, &resp)
	if len(resp.Stages) == 0 {
		t.Fatal("no stages from shipped data file")
	}
	if last := resp.Stages[len(resp.Stages)-1]; last.WinRateByCount != "100%" {
		t.Errorf("terminal win rate: got %q, want 100%%", last.WinRateByCount)
	}
}

// --- CORS -------------------------------------------------------------------

func TestUnknownAPIPath_JSON404(t *testing.T) {
	h := api.New(leadWon())
	for _, path := range []string{"/api/pipeline/", "/api/unknown", "/api/pipeline/chart/x"} {
		rr := get(t, h, path)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s status: got %d, want 404", path, rr.Code)
			continue
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s Content-Type: got %q, want application/json", path, ct)
		}
		var body map[string]string
		decode(t, rr, &body)
		if body["error"] != "not found" {
			t.Errorf("%s error: got %q, want %q", path, body["error"], "not found")
		}
	}
}

func TestCORS_Headers(t *testing.T) {
	h := api.New(leadWon(), api.WithCORSOrigin("https://dash.example.com"))
	rr := get(t, h, "/api/pipeline")
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Errorf("Access-Control-Allow-Origin: got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := api.New(leadWon())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/pipeline", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin: got %q, want *", got)
	}
}

func TestCORS_Disabled(t *testing.T) {
	rr := get(t, api.New(leadWon(), api.WithCORSOrigin("")), "/api/pipeline")
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin: got %q, want none", got)
	}
}

// --- /api/pipeline/chart ----------------------------------------------------

func TestChart_SVGDefault(t *testing.T) {
	rr := get(t, api.New(leadWon()), "/api/pipeline/chart")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "image/svg") {
		t.Errorf("Content-Type: got %q, want image/svg+xml", ct)
	}
	if !strings.Contains(rr.Body.String(), "<svg") {
		t.Error("body is not SVG")
	}
}

func TestChart_PNG(t *testing.T) {
	rr := get(t, api.New(leadWon()), "/api/pipeline/chart?measure=acv&format=png")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if _, err := png.Decode(rr.Body); err != nil {
		t.Errorf("decode PNG: %v", err)
	}
}

func TestChart_BadParams(t *testing.T) {
	h := api.New(leadWon())
	for _, path := range []string{
		"/api/pipeline/chart?measure=revenue",
		"/api/pipeline/chart?format=gif",
	} {
		if rr := get(t, h, path); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", path, rr.Code)
		}
	}
}

// --- /api/pipeline/table ----------------------------------------------------

func TestTable_TSV(t *testing.T) {
	rr := get(t, api.New(leadWon()), "/api/pipeline/table?measure=acv")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	want := "Lead\t$1,000,000\t$800,000\t$200,000\t20%\nWon\t$200,000\t$0\t$0\t100%"
	if got := rr.Body.String(); got != want {
		t.Errorf("body:\ngot  %q\nwant %q", got, want)
	}
}

func TestTable_MarkdownAndHTML(t *testing.T) {
	h := api.New(leadWon())

	rr := get(t, h, "/api/pipeline/table?format=md")
	if !strings.Contains(rr.Body.String(), "| Total | - | 80 | - | - |") {
		t.Errorf("markdown missing totals row:\n%s", rr.Body.String())
	}

	rr = get(t, h, "/api/pipeline/table?format=html")
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	if !strings.Contains(rr.Body.String(), "<table>") {
		t.Errorf("html missing table:\n%s", rr.Body.String())
	}
}

func TestTable_BadFormat(t *testing.T) {
	if rr := get(t, api.New(leadWon()), "/api/pipeline/table?format=xlsx"); rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

// --- /metrics ---------------------------------------------------------------

func TestMetrics_Exposition(t *testing.T) {
	rr := get(t, api.New(leadWon()), "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mf, ok := mfs[exposition.TotalLostCount]
	if !ok {
		t.Fatalf("%s missing", exposition.TotalLostCount)
	}
	if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 80 {
		t.Errorf("%s: got %v, want 80", exposition.TotalLostCount, got)
	}
}

// --- tracing ----------------------------------------------------------------

func TestTracing_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	h := api.New(leadWon(), api.WithTracerProvider(tp))
	get(t, h, "/api/pipeline")

	bad := api.New(&stubSource{err: errors.New("gone")}, api.WithTracerProvider(tp))
	get(t, bad, "/api/pipeline")

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans: got %d, want 2", len(spans))
	}
	if spans[0].Name() != "pipeline.load" {
		t.Errorf("span name: got %q, want pipeline.load", spans[0].Name())
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("successful load recorded as error")
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("failed load status: got %v, want Error", spans[1].Status().Code)
	}
}
