package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fueleu/cbledger/internal/domain"
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

func TestTracer_StartEnd_RecordsSpan(t *testing.T) {
	tr := NewTracer(10)
	ctx := WithTraceID(context.Background(), "req-1")

	span := tr.StartSpan(ctx, "banking.deposit", map[string]string{"ship_id": "S1"})
	tr.EndSpan(span, nil)

	if tr.SpanCount() != 1 {
		t.Fatalf("SpanCount() = %d, want 1", tr.SpanCount())
	}
	spans := tr.Spans(1)
	if spans[0].Operation != "banking.deposit" {
		t.Errorf("Operation = %q", spans[0].Operation)
	}
	if spans[0].TraceID != "req-1" {
		t.Errorf("TraceID = %q, want req-1", spans[0].TraceID)
	}
	if spans[0].Status != SpanOK {
		t.Errorf("Status = %q, want ok", spans[0].Status)
	}
	if spans[0].EndTime.Before(spans[0].StartTime) {
		t.Error("EndTime should not be before StartTime")
	}
	if spans[0].Attrs["ship_id"] != "S1" {
		t.Errorf("Attrs[ship_id] = %q", spans[0].Attrs["ship_id"])
	}
}

func TestTracer_EndSpan_RecordsErrorKind(t *testing.T) {
	tr := NewTracer(10)
	before := testutil.ToFloat64(OperationErrors.WithLabelValues("banking.apply", "insufficient_funds"))

	span := tr.StartSpan(context.Background(), "banking.apply", nil)
	tr.EndSpan(span, domain.InsufficientFundsf("Insufficient banked CB"))

	got := tr.Spans(1)[0]
	if got.Status != SpanError {
		t.Errorf("Status = %q, want error", got.Status)
	}
	if got.ErrorKind != "insufficient_funds" {
		t.Errorf("ErrorKind = %q", got.ErrorKind)
	}
	if got.Attrs["error"] != "Insufficient banked CB" {
		t.Errorf("error attr = %q", got.Attrs["error"])
	}
	after := testutil.ToFloat64(OperationErrors.WithLabelValues("banking.apply", "insufficient_funds"))
	if after != before+1 {
		t.Errorf("errors_total = %v, want %v", after, before+1)
	}
}

func TestTracer_RingBuffer(t *testing.T) {
	tr := NewTracer(3)
	for _, op := range []string{"a", "b", "c", "d", "e"} {
		tr.EndSpan(tr.StartSpan(context.Background(), op, nil), nil)
	}

	if tr.SpanCount() != 3 {
		t.Fatalf("SpanCount() = %d, want 3", tr.SpanCount())
	}
	spans := tr.Spans(0)
	if spans[0].Operation != "c" || spans[2].Operation != "e" {
		t.Errorf("ring kept %q..%q, want c..e", spans[0].Operation, spans[2].Operation)
	}
	if got := tr.Spans(2); len(got) != 2 || got[1].Operation != "e" {
		t.Errorf("Spans(2) = %+v", got)
	}
}

func TestTracer_Nil(t *testing.T) {
	var tr *Tracer
	span := tr.StartSpan(context.Background(), "pool.create", nil)
	tr.EndSpan(span, nil)
	if tr.SpanCount() != 0 || tr.Spans(5) != nil {
		t.Error("nil tracer should record nothing")
	}
}

func TestNewTracer_DefaultSize(t *testing.T) {
	if tr := NewTracer(0); tr.maxSpans != DefaultMaxSpans {
		t.Errorf("maxSpans = %d, want %d", tr.maxSpans, DefaultMaxSpans)
	}
}

func TestTraceIDFromContext_Generates(t *testing.T) {
	a := TraceIDFromContext(context.Background())
	b := TraceIDFromContext(context.Background())
	if a == "" || a == b {
		t.Errorf("expected distinct generated ids, got %q and %q", a, b)
	}
}

// ─── Metrics ────────────────────────────────────────────────────────────────

func TestOutcome(t *testing.T) {
	if Outcome(nil) != "ok" {
		t.Error("nil error should be ok")
	}
	if got := Outcome(domain.Bankingf("x")); got != "banking" {
		t.Errorf("Outcome() = %q, want banking", got)
	}
}

func TestMetrics_Registered(t *testing.T) {
	CBComputations.WithLabelValues(string(domain.StatusSurplus)).Inc()
	BankOperations.WithLabelValues("deposit", "ok").Inc()
	BankedAmount.WithLabelValues("deposit").Observe(50_000)
	PoolCreations.WithLabelValues("ok").Inc()
	PoolSize.Observe(3)
	HTTPRequestDuration.WithLabelValues("GET", "/health", "200").Observe(0.001)

	if n := testutil.CollectAndCount(BankOperations); n < 1 {
		t.Errorf("BankOperations series = %d", n)
	}
	if v := testutil.ToFloat64(PoolCreations.WithLabelValues("ok")); v < 1 {
		t.Errorf("PoolCreations{ok} = %v", v)
	}
}
