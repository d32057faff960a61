// Package reporting forwards error-level log records to Rollbar.
package reporting

import (
	"context"
	"log/slog"
	"os"

	"github.com/rollbar/rollbar-go"

	"github.com/alem-hub/pace-notifier/config"
)

// sink is the part of the Rollbar client the handler uses.
type sink interface {
	MessageWithExtras(level string, msg string, extras map[string]interface{})
}

// Reporter owns the Rollbar client.
type Reporter struct {
	client *rollbar.Client
}

// NewReporter configures Rollbar. It returns nil when no token is set.
func NewReporter(app config.AppConfig, obs config.ObservabilityConfig) *Reporter {
	if obs.RollbarToken == "" {
		return nil
	}
	host, _ := os.Hostname()
	client := rollbar.New(obs.RollbarToken, string(app.Environment), app.Version, host, "")
	client.SetEnabled(true)
	return &Reporter{client: client}
}

// Handler wraps next so that records at ERROR and above are also reported.
// A nil Reporter returns next unchanged.
func (r *Reporter) Handler(next slog.Handler) slog.Handler {
	if r == nil {
		return next
	}
	return newHandler(next, r.client)
}

// Close flushes queued items.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	r.client.Wait()
	r.client.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// SLOG HANDLER
// ══════════════════════════════════════════════════════════════════════════════

type handler struct {
	next  slog.Handler
	sink  sink
	attrs []slog.Attr
	group string
}

func newHandler(next slog.Handler, s sink) *handler {
	return &handler{next: next, sink: s}
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *handler) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level >= slog.LevelError {
		extras := make(map[string]interface{}, len(h.attrs)+rec.NumAttrs())
		for _, a := range h.attrs {
			addExtra(extras, "", a)
		}
		rec.Attrs(func(a slog.Attr) bool {
			addExtra(extras, h.group, a)
			return true
		})
		level := rollbar.ERR
		if rec.Level > slog.LevelError {
			level = rollbar.CRIT
		}
		h.sink.MessageWithExtras(level, rec.Message, extras)
	}
	return h.next.Handle(ctx, rec)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.attrs = append(append([]slog.Attr{}, h.attrs...), prefixed(h.group, attrs)...)
	return &c
}

func (h *handler) WithGroup(name string) slog.Handler {
	c := *h
	c.next = h.next.WithGroup(name)
	if c.group != "" {
		c.group += "." + name
	} else {
		c.group = name
	}
	return &c
}

func prefixed(group string, attrs []slog.Attr) []slog.Attr {
	if group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: group + "." + a.Key, Value: a.Value}
	}
	return out
}

func addExtra(extras map[string]interface{}, group string, a slog.Attr) {
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			addExtra(extras, key, ga)
		}
		return
	}
	extras[key] = v.Any()
}
