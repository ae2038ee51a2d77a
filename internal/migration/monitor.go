package migration

import (
	"log/slog"
	"sync"
)

// Monitor fans status updates out to several callbacks and remembers the
// latest one, so a server can answer status queries while a run is in
// flight.
type Monitor struct {
	mu        sync.Mutex
	last      *Status
	logger    *slog.Logger
	callbacks []StatusCallback
}

// NewMonitor creates a monitor. Nil callbacks are skipped.
func NewMonitor(logger *slog.Logger, callbacks ...StatusCallback) *Monitor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Monitor{logger: logger}
	for _, cb := range callbacks {
		if cb != nil {
			m.callbacks = append(m.callbacks, cb)
		}
	}
	return m
}

// Callback returns the StatusCallback to hand to a Driver.
func (m *Monitor) Callback() StatusCallback {
	return func(status *Status) {
		snapshot := status.clone()

		m.mu.Lock()
		prevPhase := ""
		if m.last != nil {
			prevPhase = m.last.Phase
		}
		m.last = snapshot
		m.mu.Unlock()

		if snapshot.Phase != prevPhase {
			m.logger.Info("execution phase", "phase", snapshot.Phase,
				"done", snapshot.Overall.Done, "total", snapshot.Overall.Total)
		}
		for _, cb := range m.callbacks {
			cb(snapshot)
		}
	}
}

// Last returns a copy of the most recent status, or nil.
func (m *Monitor) Last() *Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	return m.last.clone()
}

func (s *Status) clone() *Status {
	c := *s
	c.Executed = append([]string(nil), s.Executed...)
	c.Remaining = append([]string(nil), s.Remaining...)
	c.Errors = append([]string(nil), s.Errors...)
	return &c
}
