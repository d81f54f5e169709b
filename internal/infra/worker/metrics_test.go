package worker

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// promauto registers globally, so the package shares one instance.
var globalTestMetrics = NewWorkerMetrics()

func TestWorkerMetrics_RecordCycle(t *testing.T) {
	m := globalTestMetrics

	successBefore := testutil.ToFloat64(m.CycleRunsTotal.WithLabelValues(StatusSuccess))
	failureBefore := testutil.ToFloat64(m.CycleRunsTotal.WithLabelValues(StatusFailure))
	postedBefore := testutil.ToFloat64(m.PostsPublishedTotal)

	m.RecordCycle(StatusSuccess, 3*time.Second, 2)
	m.RecordCycle(StatusFailure, time.Second, 0)

	if got := testutil.ToFloat64(m.CycleRunsTotal.WithLabelValues(StatusSuccess)); got != successBefore+1 {
		t.Errorf("success runs = %v, want %v", got, successBefore+1)
	}
	if got := testutil.ToFloat64(m.CycleRunsTotal.WithLabelValues(StatusFailure)); got != failureBefore+1 {
		t.Errorf("failure runs = %v, want %v", got, failureBefore+1)
	}
	if got := testutil.ToFloat64(m.PostsPublishedTotal); got != postedBefore+2 {
		t.Errorf("posts published = %v, want %v", got, postedBefore+2)
	}
	if got := testutil.ToFloat64(m.LastSuccessTimestamp); got <= 0 {
		t.Errorf("last success timestamp = %v, want > 0", got)
	}
	if n := testutil.CollectAndCount(m.CycleDurationSeconds); n != 1 {
		t.Errorf("duration histogram series = %d, want 1", n)
	}
}

func TestWorkerMetrics_EmbedsConfigMetrics(t *testing.T) {
	m := globalTestMetrics

	before := testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("post_delay"))
	m.RecordFallback("post_delay")
	if got := testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("post_delay")); got != before+1 {
		t.Errorf("fallbacks = %v, want %v", got, before+1)
	}
}

type countingRecorder struct {
	calls  int
	posted int
}

func (c *countingRecorder) RecordCycle(_ string, _ time.Duration, posted int) {
	c.calls++
	c.posted += posted
}

func TestRecorders_FanOut(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	rs := Recorders{a, b}

	rs.RecordCycle(StatusSuccess, time.Second, 3)

	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", a.calls, b.calls)
	}
	if a.posted != 3 || b.posted != 3 {
		t.Errorf("posted = %d/%d, want 3/3", a.posted, b.posted)
	}
}
