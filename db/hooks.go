package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ─────────────────────────────────────────────────────────────────────────────
// Hook interface
// ─────────────────────────────────────────────────────────────────────────────

// Hook is called before and after every statement execution.
//
// Implementations MUST be goroutine-safe and SHOULD be non-blocking.
// Panics inside a hook are recovered by the hook chain and logged.
type Hook interface {
	// BeforeQuery is invoked immediately before the statement is sent to the
	// database driver.
	BeforeQuery(ctx context.Context, query string, args []any)

	// AfterQuery is invoked after the driver returns. duration is the
	// wall-clock time spent in the driver call. err is the (already mapped)
	// error returned to the caller — nil on success.
	AfterQuery(ctx context.Context, query string, args []any, duration time.Duration, err error)
}

// ─────────────────────────────────────────────────────────────────────────────
// hookChain — internal dispatcher
// ─────────────────────────────────────────────────────────────────────────────

type hookChain struct {
	hooks []Hook
}

func newHookChain(hooks []Hook) hookChain {
	filtered := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return hookChain{hooks: filtered}
}

func (c hookChain) Before(ctx context.Context, query string, args []any) {
	for _, h := range c.hooks {
		safeBeforeQuery(h, ctx, query, args)
	}
}

func (c hookChain) After(ctx context.Context, query string, args []any, d time.Duration, err error) {
	for _, h := range c.hooks {
		safeAfterQuery(h, ctx, query, args, d, err)
	}
}

func safeBeforeQuery(h Hook, ctx context.Context, query string, args []any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("pereval/db: hook panic in BeforeQuery")
		}
	}()
	h.BeforeQuery(ctx, query, args)
}

func safeAfterQuery(h Hook, ctx context.Context, query string, args []any, d time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("pereval/db: hook panic in AfterQuery")
		}
	}()
	h.AfterQuery(ctx, query, args, d, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Logging hook
// ─────────────────────────────────────────────────────────────────────────────

// LogHookConfig configures the structured logging hook.
type LogHookConfig struct {
	// Logger defaults to the global zerolog logger if nil.
	Logger *zerolog.Logger
	// SlowQueryThreshold logs a warning when duration exceeds this value.
	// Zero disables slow-query logging.
	SlowQueryThreshold time.Duration
	// LogArgs includes bound parameters in log entries. Submissions carry
	// submitter e-mail and phone, so keep it off outside development.
	LogArgs bool
}

// NewLogHook returns a Hook that emits zerolog entries for every statement.
func NewLogHook(cfg LogHookConfig) Hook {
	return &logHook{cfg: cfg}
}

type logHook struct {
	cfg LogHookConfig
}

func (h *logHook) logger() *zerolog.Logger {
	if h.cfg.Logger != nil {
		return h.cfg.Logger
	}
	return &log.Logger
}

func (h *logHook) BeforeQuery(_ context.Context, _ string, _ []any) {}

func (h *logHook) AfterQuery(_ context.Context, query string, args []any, d time.Duration, err error) {
	l := h.logger()

	var ev *zerolog.Event
	switch {
	case err != nil && !IsNotFound(err):
		ev = l.Error().Err(err)
	case h.cfg.SlowQueryThreshold > 0 && d > h.cfg.SlowQueryThreshold:
		ev = l.Warn().Bool("slow", true)
	default:
		ev = l.Debug()
	}
	if !ev.Enabled() {
		return
	}

	ev = ev.Str("query", trimQuery(query)).Dur("duration", d)
	if h.cfg.LogArgs && len(args) > 0 {
		ev = ev.Interface("args", args)
	}
	ev.Msg("pereval/db: query")
}

func trimQuery(q string) string {
	if len(q) > 500 {
		return q[:500] + "…"
	}
	return q
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics hook
// ─────────────────────────────────────────────────────────────────────────────

// MetricsCollector is the interface a metrics backend must implement.
type MetricsCollector interface {
	// RecordQuery is called after every statement.
	// success is false if err != nil.
	RecordQuery(query string, duration time.Duration, success bool)
}

// NewMetricsHook returns a Hook that delegates to a MetricsCollector.
func NewMetricsHook(collector MetricsCollector) Hook {
	return &metricsHook{c: collector}
}

type metricsHook struct{ c MetricsCollector }

func (h *metricsHook) BeforeQuery(_ context.Context, _ string, _ []any) {}
func (h *metricsHook) AfterQuery(_ context.Context, query string, _ []any, d time.Duration, err error) {
	h.c.RecordQuery(query, d, err == nil || IsNotFound(err))
}

// QueryStats is an in-process MetricsCollector. It keeps totals only; the
// health endpoint reports them next to the pool statistics.
type QueryStats struct {
	total   atomic.Int64
	failed  atomic.Int64
	mu      sync.Mutex
	slowest time.Duration
}

// RecordQuery implements MetricsCollector.
func (s *QueryStats) RecordQuery(_ string, d time.Duration, success bool) {
	s.total.Add(1)
	if !success {
		s.failed.Add(1)
	}
	s.mu.Lock()
	if d > s.slowest {
		s.slowest = d
	}
	s.mu.Unlock()
}

// QueryStatsSnapshot is a point-in-time copy of QueryStats.
type QueryStatsSnapshot struct {
	Total   int64         `json:"total"`
	Failed  int64         `json:"failed"`
	Slowest time.Duration `json:"slowest_ns"`
}

// Snapshot returns the current counters.
func (s *QueryStats) Snapshot() QueryStatsSnapshot {
	s.mu.Lock()
	slowest := s.slowest
	s.mu.Unlock()
	return QueryStatsSnapshot{
		Total:   s.total.Load(),
		Failed:  s.failed.Load(),
		Slowest: slowest,
	}
}
