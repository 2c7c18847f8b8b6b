package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oceanbureau/goosd/controls"
	"github.com/oceanbureau/goosd/hub"
)

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *controls.Store, *hub.Hub) {
	t.Helper()
	store := controls.NewStore()
	h := hub.New()
	handler := NewHandler(store, h, opts...)
	r := chi.NewRouter()
	handler.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store, h
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestMutate_MergesAndReturns204(t *testing.T) {
	srv, store, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/controls",
		`{"filters":{"region":"wp","year":2070,"scenario":"expansion"},"variant":3,"theme":"light"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	snap := store.Current()
	if snap.Region != "wp" || snap.Year != 2070 || snap.Scenario != "expansion" {
		t.Errorf("filters = %+v", snap.Filters)
	}
	if snap.Variant != 3 {
		t.Errorf("variant = %d, want 3", snap.Variant)
	}
	if snap.Theme != controls.ThemeLight {
		t.Errorf("theme = %q, want light", snap.Theme)
	}
}

func TestMutate_PartialLeavesOtherFields(t *testing.T) {
	srv, store, _ := newTestServer(t)

	postJSON(t, srv.URL+"/api/controls", `{"filters":{"year":2099}}`)
	snap := store.Current()
	if snap.Year != 2099 {
		t.Errorf("year = %d, want 2099", snap.Year)
	}
	if snap.Region != "all" || snap.Scenario != "baseline" || snap.Theme != controls.ThemeDark {
		t.Errorf("untouched fields changed: %+v", snap)
	}
}

func TestMutate_MalformedJSONReturns400(t *testing.T) {
	srv, store, _ := newTestServer(t)
	before := store.Current()

	resp := postJSON(t, srv.URL+"/api/controls", `{"filters":{`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if got := store.Current(); got.Timestamp != before.Timestamp {
		t.Error("store changed on malformed payload")
	}
}

func TestMutate_EmptyBodyStillBroadcasts(t *testing.T) {
	srv, store, h := newTestServer(t)
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)
	before := store.Current()

	resp := postJSON(t, srv.URL+"/api/controls", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	select {
	case ev := <-sub.Events():
		if ev.Kind != hub.EventUpdate {
			t.Errorf("event kind = %q, want update", ev.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast for empty-body mutation")
	}
	if got := store.Current(); got.Region != before.Region || got.Year != before.Year {
		t.Errorf("empty mutation changed fields: %+v", got)
	}
}

func TestMutate_OversizedBodyDropsConnection(t *testing.T) {
	srv, store, _ := newTestServer(t, WithMaxBodyBytes(1024))
	before := store.Current()

	big := bytes.Repeat([]byte("x"), 4096)
	resp, err := http.Post(srv.URL+"/api/controls", "application/json", bytes.NewReader(big))
	if err == nil {
		resp.Body.Close()
		t.Fatalf("expected transport error for oversized body, got status %d", resp.StatusCode)
	}
	if got := store.Current(); got.Timestamp != before.Timestamp {
		t.Error("store changed on oversized payload")
	}
}

func TestCurrent_ReturnsSnapshot(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/controls")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var snap controls.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Region != "all" || snap.Year != 2041 || snap.Scenario != "baseline" {
		t.Errorf("unexpected default snapshot: %+v", snap)
	}
}

func TestStream_WithoutAcceptFallsThrough(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/stream")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 from fallthrough handler", resp.StatusCode)
	}
}

func TestStream_CustomNextHandler(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	srv, _, _ := newTestServer(t, WithNextHandler(next))

	resp, err := http.Get(srv.URL + "/api/stream")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want 418", resp.StatusCode)
	}
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	name    string
	data    string
	comment string
}

// readSSE reads frames until one terminated by a blank line is complete.
func readSSE(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if ev.name != "" || ev.data != "" || ev.comment != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, ":"):
			ev.comment = strings.TrimSpace(strings.TrimPrefix(line, ":"))
		}
	}
}

func openStream(t *testing.T, url string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url+"/api/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

func TestStream_SyncThenUpdate(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, r := openStream(t, srv.URL)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache, no-transform" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if ao := resp.Header.Get("Access-Control-Allow-Origin"); ao != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", ao)
	}

	sync := readSSE(t, r)
	if sync.name != "sync" {
		t.Fatalf("first event = %q, want sync", sync.name)
	}
	var snap controls.Snapshot
	if err := json.Unmarshal([]byte(sync.data), &snap); err != nil {
		t.Fatalf("sync payload: %v", err)
	}
	if snap.Region != "all" || snap.Year != 2041 {
		t.Errorf("sync snapshot = %+v", snap)
	}

	postJSON(t, srv.URL+"/api/controls",
		`{"filters":{"scenario":"mitigation"},"theme":"light"}`)

	update := readSSE(t, r)
	if update.name != "update" {
		t.Fatalf("second event = %q, want update", update.name)
	}
	if err := json.Unmarshal([]byte(update.data), &snap); err != nil {
		t.Fatalf("update payload: %v", err)
	}
	if snap.Scenario != "mitigation" || snap.Theme != controls.ThemeLight {
		t.Errorf("update snapshot = %+v", snap)
	}
	if snap.Region != "all" || snap.Year != 2041 {
		t.Errorf("untouched fields changed in broadcast: %+v", snap)
	}
}

func TestStream_HeartbeatComment(t *testing.T) {
	store := controls.NewStore()
	h := hub.New(hub.WithHeartbeatInterval(20 * time.Millisecond))
	handler := NewHandler(store, h)
	r := chi.NewRouter()
	handler.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	_, br := openStream(t, srv.URL)
	readSSE(t, br) // sync

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ev := readSSE(t, br)
		if ev.comment == "heartbeat" {
			return
		}
	}
	t.Fatal("no heartbeat comment observed")
}

func TestDashboard_ReflectsSnapshot(t *testing.T) {
	srv, _, _ := newTestServer(t)

	postJSON(t, srv.URL+"/api/controls", `{"filters":{"region":"na"}}`)

	resp, err := http.Get(srv.URL + "/api/dashboard")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var d struct {
		Watchlist []struct {
			Region string `json:"region"`
		} `json:"watchlist"`
		Temps struct {
			Surface []float64 `json:"surface"`
		} `json:"temps"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(d.Temps.Surface) != 12 {
		t.Errorf("surface temps length = %d, want 12", len(d.Temps.Surface))
	}
	for _, row := range d.Watchlist {
		if row.Region != "na" {
			t.Errorf("watchlist row region = %q, want na", row.Region)
		}
	}
}

func TestCatalog_ListsRegionsAndScenarios(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/catalog")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var catalog struct {
		Regions   []controls.RegionOption          `json:"regions"`
		Scenarios map[string]controls.ScenarioInfo `json:"scenarios"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(catalog.Regions) != len(controls.RegionOptions) {
		t.Errorf("regions = %d, want %d", len(catalog.Regions), len(controls.RegionOptions))
	}
	if _, ok := catalog.Scenarios["baseline"]; !ok {
		t.Error("scenarios missing baseline")
	}
}

func TestStatus_CountsSubscribers(t *testing.T) {
	srv, _, h := newTestServer(t)
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var status struct {
		Subscribers int `json:"subscribers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Subscribers != 1 {
		t.Errorf("subscribers = %d, want 1", status.Subscribers)
	}
}

func TestAcceptsEventStream(t *testing.T) {
	cases := []struct {
		accept string
		want   bool
	}{
		{"text/event-stream", true},
		{"text/event-stream; charset=utf-8", true},
		{"application/json, text/event-stream", true},
		{"TEXT/EVENT-STREAM", true},
		{"", false},
		{"*/*", false},
		{"application/json", false},
	}
	for _, tc := range cases {
		if got := acceptsEventStream(tc.accept); got != tc.want {
			t.Errorf("acceptsEventStream(%q) = %v, want %v", tc.accept, got, tc.want)
		}
	}
}
