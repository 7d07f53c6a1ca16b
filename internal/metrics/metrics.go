// Package metrics keeps process-local counters for the assist actions and the
// adapters, exposes them over HTTP and mirrors every increment to an
// OpenTelemetry counter of the same name.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counter names
const (
	ActionsTotal         = "assist_actions_total"
	ActionErrorsTotal    = "assist_action_errors_total"
	SpeechFilesCreated   = "speech_files_created_total"
	SpeechFilesDeleted   = "speech_files_deleted_total"
	SpeechBytesWritten   = "speech_bytes_written_total"
	SessionsCreated      = "sessions_created_total"
	SessionsEvicted      = "sessions_evicted_total"
	APIKeyUpdates        = "api_key_updates_total"
	HTTPRequestsTotal    = "http_requests_total"
	HTTPRequestErrors    = "http_requests_errors_total"
	DiscordCommandsTotal = "discord_commands_total"
)

// Registry stores counters for exposition and mirrors them to OTel counters.
// A nil *Registry is valid and records nothing.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
	meter    metric.Meter
	otelCtrs map[string]metric.Int64Counter
}

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*atomic.Int64),
		meter:    otel.GetMeterProvider().Meter("visionassist"),
		otelCtrs: make(map[string]metric.Int64Counter),
	}
}

// fullKey makes a deterministic key from name and labels
func fullKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// Inc increases a named counter by n
func (r *Registry) Inc(ctx context.Context, name string, labels map[string]string, n int64) {
	if r == nil {
		return
	}
	key := fullKey(name, labels)

	r.mu.RLock()
	c := r.counters[key]
	inst := r.otelCtrs[name]
	r.mu.RUnlock()

	if c == nil || inst == nil {
		r.mu.Lock()
		if c = r.counters[key]; c == nil {
			c = new(atomic.Int64)
			r.counters[key] = c
		}
		if inst = r.otelCtrs[name]; inst == nil {
			if ctr, err := r.meter.Int64Counter(name); err == nil {
				r.otelCtrs[name] = ctr
				inst = ctr
			}
		}
		r.mu.Unlock()
	}
	c.Add(n)

	if inst != nil {
		attrs := make([]attribute.KeyValue, 0, len(labels))
		for k, v := range labels {
			attrs = append(attrs, attribute.String(k, v))
		}
		inst.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}

// Action records one finished assist action. outcome is "ok" or an error kind.
func (r *Registry) Action(ctx context.Context, action, outcome string) {
	r.Inc(ctx, ActionsTotal, map[string]string{"action": action, "outcome": outcome}, 1)
	if outcome != "ok" {
		r.Inc(ctx, ActionErrorsTotal, map[string]string{"action": action}, 1)
	}
}

// Value returns the current value of a counter, 0 if it was never touched
func (r *Registry) Value(name string, labels map[string]string) int64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c := r.counters[fullKey(name, labels)]; c != nil {
		return c.Load()
	}
	return 0
}

// SnapshotLines returns sorted "key value" lines
func (r *Registry) SnapshotLines() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.counters))
	for k := range r.counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s %d", k, r.counters[k].Load()))
	}
	return lines
}

// SnapshotJSON returns a map of counter->value for JSON rendering
func (r *Registry) SnapshotJSON() map[string]int64 {
	out := make(map[string]int64)
	if r == nil {
		return out
	}
	r.mu.RLock()
	for k, v := range r.counters {
		out[k] = v.Load()
	}
	r.mu.RUnlock()
	return out
}

// EchoHandlerText writes counters in simple text format
func (r *Registry) EchoHandlerText(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	for _, line := range r.SnapshotLines() {
		if _, err := c.Response().Write([]byte(line + "\n")); err != nil {
			return err
		}
	}
	return nil
}

// EchoHandlerJSON writes counters as JSON
func (r *Registry) EchoHandlerJSON(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
	return json.NewEncoder(c.Response()).Encode(r.SnapshotJSON())
}
