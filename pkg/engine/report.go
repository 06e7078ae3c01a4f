package engine

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// CycleReport summarises one RunOnce.
type CycleReport struct {
	ID        string        `json:"id"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
	Assets    int           `json:"assets"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	// Skipped counts assets the collector reported as not configured.
	Skipped int `json:"skipped"`
	// NotDispatched counts assets left out when the cycle was cancelled.
	// Succeeded+Failed+Skipped+NotDispatched == Assets.
	NotDispatched int   `json:"not_dispatched"`
	Values        int   `json:"values"`
	Err           error `json:"-"`
}

// MarshalLogObject lets the report be logged with zap.Object.
func (r CycleReport) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", r.ID)
	enc.AddDuration("duration", r.Duration)
	enc.AddInt("assets", r.Assets)
	enc.AddInt("succeeded", r.Succeeded)
	enc.AddInt("failed", r.Failed)
	enc.AddInt("skipped", r.Skipped)
	if r.NotDispatched > 0 {
		enc.AddInt("not_dispatched", r.NotDispatched)
	}
	enc.AddInt("values", r.Values)
	return nil
}
