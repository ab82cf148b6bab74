package app

import (
	"sync/atomic"
	"time"
)

// readinessState gates /readyz while the startup catalog import runs.
// The service becomes ready when markReady is called or once timeout has
// elapsed since construction, so a stuck import cannot keep it out of
// rotation forever. A nil state is always ready.
type readinessState struct {
	ready     atomic.Bool
	startTime time.Time
	timeout   time.Duration
}

// readinessStatus is the gate's view for the /readyz body.
type readinessStatus struct {
	Ready          bool   `json:"ready"`
	Reason         string `json:"reason,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

func newReadinessState(timeout time.Duration) *readinessState {
	return &readinessState{
		startTime: time.Now(),
		timeout:   timeout,
	}
}

func (s *readinessState) isReady() bool {
	if s == nil || s.ready.Load() {
		return true
	}
	return time.Since(s.startTime) >= s.timeout
}

func (s *readinessState) markReady() {
	if s != nil {
		s.ready.Store(true)
	}
}

func (s *readinessState) status() readinessStatus {
	if s == nil {
		return readinessStatus{Ready: true}
	}

	status := readinessStatus{
		Ready:          s.isReady(),
		ElapsedSeconds: int(time.Since(s.startTime).Seconds()),
		TimeoutSeconds: int(s.timeout.Seconds()),
	}
	switch {
	case !status.Ready:
		status.Reason = "catalog loading"
	case !s.ready.Load():
		status.Reason = "timeout reached (catalog import may still be running)"
	}
	return status
}
