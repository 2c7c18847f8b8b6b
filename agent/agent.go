// Package agent maintains a live local copy of the goosd control snapshot.
// It subscribes to the server's event stream, applies remote updates, and
// pushes local control changes back, suppressing the echo of its own writes.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oceanbureau/goosd/controls"
)

// Status is the agent connection state.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"

	// StatusUnsupported is terminal: the server answered the stream request
	// with something other than an event stream, so retrying cannot help.
	StatusUnsupported Status = "unsupported"
)

// ErrUnsupported reports that the server does not speak the event-stream
// protocol. Run returns it without retrying.
var ErrUnsupported = errors.New("server does not support event streams")

// Agent is a client-side mirror of the control snapshot.
type Agent struct {
	baseURL    string
	client     *http.Client
	retryDelay time.Duration
	logger     *slog.Logger

	onUpdate func(controls.Snapshot)
	onStatus func(Status)

	mu         sync.Mutex
	snap       controls.Snapshot
	status     Status
	suppress   bool
	hydrated   bool
	lastUpdate time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithHTTPClient sets the HTTP client used for both the stream and
// submissions.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Agent) {
		if c != nil {
			a.client = c
		}
	}
}

// WithRetryDelay sets the pause before reconnecting after a dropped stream.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.retryDelay = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithUpdateHandler registers a callback invoked after each remote snapshot
// is applied. Control setters called from inside the handler do not submit
// back to the server.
func WithUpdateHandler(fn func(controls.Snapshot)) Option {
	return func(a *Agent) { a.onUpdate = fn }
}

// WithStatusHandler registers a callback invoked on every status transition.
func WithStatusHandler(fn func(Status)) Option {
	return func(a *Agent) { a.onStatus = fn }
}

// New creates an agent pointed at a goosd base URL, e.g.
// "http://localhost:8090". The local snapshot starts at the defaults until
// the first sync event arrives.
func New(baseURL string, opts ...Option) *Agent {
	a := &Agent{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     http.DefaultClient,
		retryDelay: 5 * time.Second,
		logger:     slog.Default(),
		snap:       controls.DefaultSnapshot(),
		status:     StatusIdle,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run connects to the server stream and keeps the local snapshot current,
// reconnecting after retryDelay when the stream drops. It returns when the
// context is cancelled or when the server turns out not to support streams.
func (a *Agent) Run(ctx context.Context) error {
	for {
		a.setStatus(StatusConnecting)
		err := a.stream(ctx)
		if errors.Is(err, ErrUnsupported) {
			a.setStatus(StatusUnsupported)
			return err
		}
		if ctx.Err() != nil {
			a.setStatus(StatusDisconnected)
			return ctx.Err()
		}
		a.logger.Warn("stream dropped, retrying", "error", err, "delay", a.retryDelay)
		a.setStatus(StatusDisconnected)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.retryDelay):
		}
	}
}

// stream opens one stream connection and consumes events until it fails.
func (a *Agent) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(ct, "text/event-stream") {
		return fmt.Errorf("%w: status %d, content-type %q", ErrUnsupported, resp.StatusCode, ct)
	}
	a.setStatus(StatusConnected)

	r := bufio.NewReader(resp.Body)
	var event, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if event != "" {
				a.dispatch(event, data)
			}
			event, data = "", ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case strings.HasPrefix(line, ":"):
			// keep-alive comment
		}
	}
}

// dispatch applies one complete stream event. Malformed payloads are logged
// and skipped; the stream stays up.
func (a *Agent) dispatch(event, data string) {
	switch event {
	case "sync", "update":
		var snap controls.Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			a.logger.Warn("unparseable stream payload", "event", event, "error", err)
			return
		}
		a.applyRemote(snap)
	default:
		a.logger.Debug("ignoring unknown stream event", "event", event)
	}
}

// applyRemote installs a server snapshot and notifies the update handler.
// The suppress flag stays set for the whole update-and-notify cycle so that
// setters called from the handler do not echo the change back to the server.
func (a *Agent) applyRemote(snap controls.Snapshot) {
	a.mu.Lock()
	a.suppress = true
	a.hydrated = true
	a.snap = snap
	a.lastUpdate = time.Now()
	handler := a.onUpdate
	a.mu.Unlock()

	if handler != nil {
		handler(snap)
	}

	a.mu.Lock()
	a.suppress = false
	a.mu.Unlock()
}

// localChange applies a mutation to the local snapshot and submits the full
// state to the server, unless the change is an echo of a remote update or
// the very first local change after startup.
func (a *Agent) localChange(ctx context.Context, apply func(*controls.Snapshot)) error {
	a.mu.Lock()
	apply(&a.snap)
	if a.suppress {
		a.mu.Unlock()
		return nil
	}
	if !a.hydrated {
		// First local change restores persisted UI state; the server
		// already holds the authoritative snapshot, so nothing is sent.
		a.hydrated = true
		a.mu.Unlock()
		return nil
	}
	snap := a.snap
	a.mu.Unlock()
	return a.submit(ctx, snap)
}

// SetRegion selects a region filter.
func (a *Agent) SetRegion(ctx context.Context, code string) error {
	return a.localChange(ctx, func(s *controls.Snapshot) { s.Region = code })
}

// SetYear selects a projection year.
func (a *Agent) SetYear(ctx context.Context, year int) error {
	return a.localChange(ctx, func(s *controls.Snapshot) { s.Year = year })
}

// SetScenario selects a scenario.
func (a *Agent) SetScenario(ctx context.Context, name string) error {
	return a.localChange(ctx, func(s *controls.Snapshot) { s.Scenario = name })
}

// SetTheme selects a display theme.
func (a *Agent) SetTheme(ctx context.Context, theme string) error {
	return a.localChange(ctx, func(s *controls.Snapshot) { s.Theme = theme })
}

// RollVariant reseeds the dataset variant from the current wall clock.
func (a *Agent) RollVariant(ctx context.Context) error {
	variant := time.Now().UnixMilli()
	return a.localChange(ctx, func(s *controls.Snapshot) { s.Variant = variant })
}

// submit posts the full control state to the mutation endpoint.
func (a *Agent) submit(ctx context.Context, snap controls.Snapshot) error {
	payload := map[string]any{
		"filters": map[string]any{
			"region":   snap.Region,
			"year":     snap.Year,
			"scenario": snap.Scenario,
		},
		"variant": snap.Variant,
		"theme":   snap.Theme,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/api/controls", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn("control submit failed", "error", err)
		return fmt.Errorf("submit controls: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		a.logger.Warn("control submit rejected", "status", resp.StatusCode)
		return fmt.Errorf("submit controls: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Snapshot returns the current local snapshot.
func (a *Agent) Snapshot() controls.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// Status returns the current connection status.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// LastUpdate returns when the last remote snapshot was applied.
func (a *Agent) LastUpdate() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastUpdate
}

func (a *Agent) setStatus(s Status) {
	a.mu.Lock()
	if a.status == s {
		a.mu.Unlock()
		return
	}
	a.status = s
	handler := a.onStatus
	a.mu.Unlock()

	if handler != nil {
		handler(s)
	}
}
