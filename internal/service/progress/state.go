package progress

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"
)

const (
	// BarWidth is the number of cells of the text progress bar.
	BarWidth = 20

	barFilled = "█"
	barEmpty  = "░"
)

// Func receives progress updates: a fraction in [0,1] and a status line.
type Func func(fraction float64, status string)

// State is the shared progress and completion state of one install run.
// The zero value is an idle state.
type State struct {
	fraction atomic.Uint64
	status   atomic.Pointer[string]
	busy     atomic.Bool
	finished atomic.Bool
	success  atomic.Bool
	errorMsg atomic.Pointer[string]
}

// Snapshot is a point-in-time copy of State for rendering.
type Snapshot struct {
	Fraction float64
	Status   string
	Busy     bool
}

// TryBegin marks the state busy and resets it for a new run.
// It returns false, leaving everything untouched, when a run is in progress.
func (s *State) TryBegin(status string) bool {
	if !s.busy.CompareAndSwap(false, true) {
		return false
	}

	s.finished.Store(false)
	s.success.Store(false)
	s.errorMsg.Store(nil)
	s.Update(0, status)

	return true
}

// Update records the latest fraction (clamped to [0,1]) and status line.
func (s *State) Update(fraction float64, status string) {
	s.fraction.Store(math.Float64bits(clamp(fraction)))
	s.status.Store(&status)
}

// Finish records the outcome of the run. The busy flag stays set until the
// foreground observes completion and calls Release.
func (s *State) Finish(success bool, errorMsg string) {
	s.success.Store(success)
	s.errorMsg.Store(&errorMsg)
	s.finished.Store(true)
}

// Release clears the busy flag after the foreground consumed the outcome.
func (s *State) Release() {
	s.busy.Store(false)
}

// Fraction returns the last reported fraction.
func (s *State) Fraction() float64 {
	return math.Float64frombits(s.fraction.Load())
}

// Status returns the last reported status line.
func (s *State) Status() string {
	if p := s.status.Load(); p != nil {
		return *p
	}

	return ""
}

// Busy reports whether a run is in progress.
func (s *State) Busy() bool {
	return s.busy.Load()
}

// Finished reports whether the worker has completed.
func (s *State) Finished() bool {
	return s.finished.Load()
}

// Succeeded reports whether the completed run succeeded.
func (s *State) Succeeded() bool {
	return s.success.Load()
}

// ErrorMessage returns the failure message of the completed run.
func (s *State) ErrorMessage() string {
	if p := s.errorMsg.Load(); p != nil {
		return *p
	}

	return ""
}

// Snapshot returns the fields needed to draw the status panel.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Fraction: s.Fraction(),
		Status:   s.Status(),
		Busy:     s.Busy(),
	}
}

// RenderBar draws a BarWidth-cell bar followed by the percentage,
// e.g. "[██████████░░░░░░░░░░] 50%".
func RenderBar(fraction float64) string {
	fraction = clamp(fraction)
	filled := int(fraction * BarWidth)

	var b strings.Builder

	b.WriteString("[")
	b.WriteString(strings.Repeat(barFilled, filled))
	b.WriteString(strings.Repeat(barEmpty, BarWidth-filled))
	b.WriteString("] ")
	b.WriteString(strconv.Itoa(int(fraction * 100)))
	b.WriteString("%")

	return b.String()
}

func clamp(fraction float64) float64 {
	switch {
	case math.IsNaN(fraction), fraction < 0:
		return 0
	case fraction > 1:
		return 1
	default:
		return fraction
	}
}
