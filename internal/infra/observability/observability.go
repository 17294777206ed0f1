// Package observability holds the ledger's Prometheus metrics and a small
// in-memory span recorder for mutating operations.
//
// Spans are kept in a bounded ring so an operator can see the most recent
// deposits, transfers and pool commits (with their outcome and duration)
// without an external tracing backend.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fueleu/cbledger/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// Operation Spans
// ═══════════════════════════════════════════════════════════════════════════

// SpanStatus indicates success or failure.
type SpanStatus string

const (
	SpanOK    SpanStatus = "ok"
	SpanError SpanStatus = "error"
)

// Span is one ledger operation.
type Span struct {
	TraceID   string            `json:"traceId"`
	SpanID    string            `json:"spanId"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"startTime"`
	EndTime   time.Time         `json:"endTime,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	ErrorKind string            `json:"errorKind,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer records finished spans in a ring buffer. A nil *Tracer is valid and
// records nothing.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
}

// DefaultMaxSpans is the ring size used when NewTracer gets a non-positive size.
const DefaultMaxSpans = 1_000

// NewTracer creates a tracer keeping at most maxSpans spans.
func NewTracer(maxSpans int) *Tracer {
	if maxSpans <= 0 {
		maxSpans = DefaultMaxSpans
	}
	return &Tracer{spans: make([]Span, 0, maxSpans), maxSpans: maxSpans}
}

// StartSpan begins a span. The caller must call EndSpan.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs map[string]string) *Span {
	return &Span{
		TraceID:   TraceIDFromContext(ctx),
		SpanID:    uuid.NewString(),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}
}

// EndSpan completes a span and records it.
func (t *Tracer) EndSpan(span *Span, err error) {
	if span == nil {
		return
	}
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if err != nil {
		span.Status = SpanError
		span.ErrorKind = domain.KindOf(err)
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
		OperationErrors.WithLabelValues(span.Operation, span.ErrorKind).Inc()
	}
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns up to limit of the most recent spans, oldest first.
func (t *Tracer) Spans(limit int) []Span {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}
	out := make([]Span, limit)
	copy(out, t.spans[len(t.spans)-limit:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const traceIDKey contextKey = "cbledger-trace-id"

// WithTraceID returns a context carrying traceID. The HTTP layer sets it to
// the request id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext returns the context's trace id, or a fresh one.
func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok && v != "" {
		return v
	}
	return uuid.NewString()
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Compliance Metrics ─────────────────────────────────────────────────────

// CBComputations counts compliance balances computed, by status.
var CBComputations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cbledger",
	Subsystem: "compliance",
	Name:      "computations_total",
	Help:      "Total compliance balances computed, by status.",
}, []string{"status"})

// ─── Banking Metrics ────────────────────────────────────────────────────────

// BankOperations counts bank operations by op (deposit, apply) and outcome.
var BankOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cbledger",
	Subsystem: "banking",
	Name:      "operations_total",
	Help:      "Total bank operations by op and outcome.",
}, []string{"op", "outcome"})

// BankedAmount observes the amounts moved by successful bank operations.
var BankedAmount = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "cbledger",
	Subsystem: "banking",
	Name:      "amount_gco2eq",
	Help:      "Amounts moved by bank operations in gCO2e.",
	Buckets:   prometheus.ExponentialBuckets(1_000, 10, 7),
}, []string{"op"})

// ─── Pool Metrics ───────────────────────────────────────────────────────────

// PoolCreations counts pool creation attempts by outcome.
var PoolCreations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cbledger",
	Subsystem: "pool",
	Name:      "creations_total",
	Help:      "Total pool creation attempts by outcome.",
}, []string{"outcome"})

// PoolSize observes the member count of committed pools.
var PoolSize = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "cbledger",
	Subsystem: "pool",
	Name:      "members",
	Help:      "Number of members in committed pools.",
	Buckets:   []float64{2, 3, 4, 5, 8, 12, 20, 50},
})

// ─── HTTP Metrics ───────────────────────────────────────────────────────────

// HTTPRequestDuration tracks request latency by route pattern and status.
var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "cbledger",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route and status code.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "code"})

// ─── Operation Metrics ──────────────────────────────────────────────────────

// OperationErrors counts failed spans by operation and error kind.
var OperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cbledger",
	Subsystem: "ops",
	Name:      "errors_total",
	Help:      "Failed ledger operations by operation and error kind.",
}, []string{"operation", "kind"})

// Outcome returns the metric label for err: "ok" or the domain error kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.KindOf(err)
}
