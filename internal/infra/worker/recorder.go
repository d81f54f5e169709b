package worker

import "time"

// Cycle statuses reported by the monitor.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// CycleRecorder is implemented by WorkerMetrics and HealthServer.
type CycleRecorder interface {
	RecordCycle(status string, duration time.Duration, posted int)
}

// Recorders fans one cycle report out to several recorders.
type Recorders []CycleRecorder

// RecordCycle forwards to every recorder in order.
func (rs Recorders) RecordCycle(status string, duration time.Duration, posted int) {
	for _, r := range rs {
		r.RecordCycle(status, duration, posted)
	}
}
