// Package api exposes the goosd control-state endpoints: mutation intake,
// the live SSE stream, and read-only views of the snapshot and the derived
// dashboard dataset.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oceanbureau/goosd/controls"
	"github.com/oceanbureau/goosd/dataset"
	"github.com/oceanbureau/goosd/hub"
	"github.com/oceanbureau/goosd/observability"
)

// Handler serves the /api routes.
type Handler struct {
	store   *controls.Store
	hub     *hub.Hub
	events  *observability.EventLogger
	maxBody int64
	next    http.Handler
	logger  *slog.Logger
	started time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithEventLogger wires the observability event log. Nil is a valid logger.
func WithEventLogger(l *observability.EventLogger) Option {
	return func(h *Handler) { h.events = l }
}

// WithMaxBodyBytes sets the mutation body size ceiling.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithNextHandler sets the handler that receives stream requests lacking an
// event-stream Accept header. Defaults to http.NotFoundHandler.
func WithNextHandler(next http.Handler) Option {
	return func(h *Handler) {
		if next != nil {
			h.next = next
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates the API handler around a snapshot store and a broadcast
// hub.
func NewHandler(store *controls.Store, h *hub.Hub, opts ...Option) *Handler {
	handler := &Handler{
		store:   store,
		hub:     h,
		maxBody: 1_000_000,
		next:    http.NotFoundHandler(),
		logger:  slog.Default(),
		started: time.Now(),
	}
	for _, o := range opts {
		o(handler)
	}
	return handler
}

// Register mounts the API routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/controls", h.handleMutate)
	r.Get("/api/controls", h.handleCurrent)
	r.Get("/api/stream", h.handleStream)
	r.Get("/api/dashboard", h.handleDashboard)
	r.Get("/api/catalog", h.handleCatalog)
	r.Get("/api/status", h.handleStatus)
}

// handleMutate applies a partial control mutation and fans the merged
// snapshot out to every stream subscriber.
func (h *Handler) handleMutate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("mutation body over limit", "limit", tooLarge.Limit, "remote", r.RemoteAddr)
			h.events.LogEvent(r.Context(), observability.ControlEvent{
				Type:    observability.EventPayloadOversized,
				Details: fmt.Sprintf(`{"limit":%d}`, tooLarge.Limit),
			})
			// Drop the connection without writing a response. net/http
			// recovers http.ErrAbortHandler itself, suppresses the stack
			// trace, and closes the connection.
			panic(http.ErrAbortHandler)
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var m controls.Mutation
	if len(body) > 0 {
		if err := json.Unmarshal(body, &m); err != nil {
			h.logger.Warn("malformed mutation payload", "error", err, "remote", r.RemoteAddr)
			h.events.LogEvent(r.Context(), observability.ControlEvent{
				Type:    observability.EventMutationRejected,
				Details: fmt.Sprintf(`{"error":%q}`, err.Error()),
			})
			http.Error(w, "invalid JSON payload", http.StatusBadRequest)
			return
		}
	}

	snap := h.store.Merge(m)
	h.hub.Broadcast(hub.EventUpdate, snap)
	h.events.LogEvent(r.Context(), observability.ControlEvent{
		Type:    observability.EventMutationAccepted,
		Success: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleCurrent returns the current control snapshot.
func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Current())
}

// handleStream serves the SSE control-state stream. Requests that do not
// accept text/event-stream fall through to the next handler.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	if !acceptsEventStream(r.Header.Get("Accept")) {
		h.next.ServeHTTP(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	h.logger.Info("stream subscriber connected", "subscriber", sub.ID, "remote", r.RemoteAddr)
	h.events.LogEvent(r.Context(), observability.ControlEvent{
		Type:         observability.EventSubscriberConnected,
		SubscriberID: sub.ID,
		Success:      true,
	})

	if err := writeSSE(w, "sync", h.store.Current()); err != nil {
		return
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("stream subscriber closed", "subscriber", sub.ID)
			h.events.LogEvent(context.Background(), observability.ControlEvent{
				Type:         observability.EventSubscriberClosed,
				SubscriberID: sub.ID,
				Success:      true,
			})
			return
		case <-sub.Done():
			return
		case ev := <-sub.Events():
			switch ev.Kind {
			case hub.EventUpdate:
				if err := writeSSE(w, "update", ev.Snapshot); err != nil {
					return
				}
			case hub.EventHeartbeat:
				if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
					return
				}
			}
			flusher.Flush()
		}
	}
}

// handleDashboard derives the dashboard dataset from the current snapshot.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Current()
	d := dataset.Generate(snap)
	d.Watchlist = dataset.FilterWatchlist(d.Watchlist, snap.Region)
	h.writeJSON(w, http.StatusOK, d)
}

// handleCatalog returns the selectable regions and scenarios.
func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"regions":   controls.RegionOptions,
		"scenarios": controls.Scenarios,
	})
}

// handleStatus reports service liveness for dashboards and probes.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Current()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"subscribers":    h.hub.Len(),
		"last_update":    snap.Timestamp,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encode failed", "error", err)
	}
}

// acceptsEventStream reports whether an Accept header admits
// text/event-stream.
func acceptsEventStream(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(part)
		if i := strings.IndexByte(mediaType, ';'); i >= 0 {
			mediaType = strings.TrimSpace(mediaType[:i])
		}
		if strings.EqualFold(mediaType, "text/event-stream") {
			return true
		}
	}
	return false
}

// writeSSE writes one named server-sent event with a JSON payload.
func writeSSE(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
