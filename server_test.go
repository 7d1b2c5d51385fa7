package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nimdanitro/ubibot-scraper-go/pkg/telemetry"
	"github.com/nimdanitro/ubibot-scraper-go/pkg/ubibot"
)

// fakeUbiBot serves the two UbiBot endpoints from canned bodies.
func fakeUbiBot(t *testing.T, channelsStatus int, channels string, feeds map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/channels" {
			w.WriteHeader(channelsStatus)
			io.WriteString(w, channels)
			return
		}
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/channels/"), "/data")
		body, ok := feeds[id]
		if !ok {
			http.Error(w, "unknown channel", http.StatusNotFound)
			return
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestHandler(t *testing.T, upstream *httptest.Server) http.Handler {
	t.Helper()
	client, err := ubibot.NewClient(
		ubibot.WithAccountKey("k"),
		ubibot.WithBaseURL(upstream.URL),
		ubibot.WithHTTPClient(upstream.Client()),
		ubibot.WithLogger(zap.NewNop()),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return newHandler(telemetry.NewAggregator(client, telemetry.WithLogger(zap.NewNop())), zap.NewNop())
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestLatestEndpoint(t *testing.T) {
	upstream := fakeUbiBot(t, http.StatusOK, `{"channels":[
		{"channel_id":"1","name":"GS1-Outdoor","last_values":{"field1":25.3,"field2":60}},
		{"channel_id":"2","name":"Smart Plug 1","last_values":"{\"field1\": 1, \"field4\": 120.5}"}
	]}`, nil)

	rec := get(t, newTestHandler(t, upstream), "/api/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a request id header")
	}

	var body map[string]map[string]*float64
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if v := body["gs1_sensor"]["temperature"]; v == nil || *v != 25.3 {
		t.Fatalf("expected temperature 25.3, got %v", v)
	}
	if v := body["smart_plug"]["socket_power"]; v == nil || *v != 120.5 {
		t.Fatalf("expected socket_power 120.5, got %v", v)
	}
}

func TestUpstreamFailure(t *testing.T) {
	upstream := fakeUbiBot(t, http.StatusServiceUnavailable, `{}`, nil)
	h := newTestHandler(t, upstream)

	rec := get(t, h, "/api/latest")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Fatalf("expected an error body, got %s", rec.Body.String())
	}

	rec = get(t, h, "/api/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected history to degrade gracefully, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"gs1_sensor":[],"smart_plug":[]}` {
		t.Fatalf("unexpected history body %s", got)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	upstream := fakeUbiBot(t, http.StatusOK, `{"channels":[
		{"channel_id":"1","name":"gs1"},
		{"channel_id":"2","name":"plug"}
	]}`, map[string]string{
		"1": `{"feeds":[{"created_at":"t2","field1":2},{"created_at":"t1","field1":1},{"created_at":"t0","field1":0}]}`,
	})

	rec := get(t, newTestHandler(t, upstream), "/api/history?results=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string][]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body["gs1_sensor"]) != 2 || body["gs1_sensor"][0]["timestamp"] != "t2" {
		t.Fatalf("unexpected gs1 history %v", body["gs1_sensor"])
	}
	if body["smart_plug"] == nil || len(body["smart_plug"]) != 0 {
		t.Fatalf("expected empty smart plug history, got %v", body["smart_plug"])
	}
}

func TestHistoryLimit(t *testing.T) {
	cases := map[string]int{
		"":      telemetry.DefaultHistoryLimit,
		"abc":   telemetry.DefaultHistoryLimit,
		"-3":    telemetry.DefaultHistoryLimit,
		"25":    25,
		"50000": MaxHistoryLimit,
	}
	for raw, want := range cases {
		if got := historyLimit(raw); got != want {
			t.Fatalf("historyLimit(%q): expected %d, got %d", raw, want, got)
		}
	}
}

func TestIndexAndHealth(t *testing.T) {
	h := newHandler(stubEngine{}, zap.NewNop())

	rec := get(t, h, "/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "UbiBot Dashboard") {
		t.Fatalf("expected dashboard page, got %d", rec.Code)
	}
	if rec := get(t, h, "/healthz"); rec.Body.String() != "ok" {
		t.Fatalf("expected ok, got %q", rec.Body.String())
	}
	if rec := get(t, h, "/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLatestNonUpstreamError(t *testing.T) {
	h := newHandler(stubEngine{err: errors.New("bug")}, zap.NewNop())
	if rec := get(t, h, "/api/latest"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

type stubEngine struct {
	err error
}

func (s stubEngine) Latest(ctx context.Context) (telemetry.Snapshot, error) {
	return telemetry.Snapshot{}, s.err
}

func (s stubEngine) History(ctx context.Context, limit int) telemetry.History {
	return telemetry.History{}
}
