package history

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/gfiorelli/plantwatch/internal/model"
	"github.com/gfiorelli/plantwatch/pkg/sched"
)

// Series keeps the rolling raw samples for one plant slot and recomputes
// the averaged series after a quiet window. Each new sample cancels any
// pending recomputation and reschedules it, so a burst of N updates
// triggers exactly one recomputation DebounceWindow after the last.
type Series struct {
	sched    sched.Scheduler
	logger   zerolog.Logger
	onUpdate func([]model.AveragedDataPoint)

	mu      sync.Mutex
	raw     []model.RawPoint
	buckets []model.AveragedDataPoint
	pending sched.Timer
}

// NewSeries builds a series manager. onUpdate, if non-nil, is invoked with
// the fresh bucket series after every recomputation.
func NewSeries(s sched.Scheduler, logger zerolog.Logger, onUpdate func([]model.AveragedDataPoint)) *Series {
	return &Series{sched: s, logger: logger, onUpdate: onUpdate}
}

// Seed replaces the raw window with an initial batch (gateway snapshot)
// and recomputes immediately, without debouncing.
func (s *Series) Seed(points []model.RawPoint) {
	s.mu.Lock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.raw = append(s.raw[:0], points...)
	s.trimLocked()
	s.mu.Unlock()
	s.recompute()
}

// Append adds one live sample to the raw window and (re)starts the
// debounce timer.
func (s *Series) Append(p model.RawPoint) {
	s.mu.Lock()
	s.raw = append(s.raw, p)
	s.trimLocked()
	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = s.sched.After(DebounceWindow, s.recompute)
	s.mu.Unlock()
}

// Snapshot returns the last computed bucket series.
func (s *Series) Snapshot() []model.AveragedDataPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AveragedDataPoint, len(s.buckets))
	copy(out, s.buckets)
	return out
}

func (s *Series) recompute() {
	s.mu.Lock()
	s.pending = nil
	raw := make([]model.RawPoint, len(s.raw))
	copy(raw, s.raw)
	s.mu.Unlock()

	buckets := Aggregate(raw)

	s.mu.Lock()
	s.buckets = buckets
	s.mu.Unlock()

	s.logger.Debug().Int("raw", len(raw)).Int("buckets", len(buckets)).Msg("series recomputed")
	if s.onUpdate != nil {
		s.onUpdate(buckets)
	}
}

// trimLocked drops the oldest raw samples past the retention cap.
func (s *Series) trimLocked() {
	if n := len(s.raw); n > MaxRawSamples {
		s.raw = append(s.raw[:0], s.raw[n-MaxRawSamples:]...)
	}
}
