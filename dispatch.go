package tinystore

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// dispatch runs one notification pass over a listener snapshot.
func (s *Store[T]) dispatch(state T, snapshot []registration[T]) {
	if len(snapshot) == 0 {
		return
	}

	start := time.Now()
	for _, reg := range snapshot {
		if s.policy == PropagatePanics {
			reg.fn(state)
			continue
		}
		s.invokeSafe(reg, state)
	}
	s.metrics.notified(len(snapshot), time.Since(start))
}

// invokeSafe calls a listener with panic recovery.
// Panics are logged with a correlation ID and do not propagate.
func (s *Store[T]) invokeSafe(reg registration[T], state T) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("listener panicked",
				"store", s.name,
				"listener_id", reg.id,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			s.metrics.panicked()
		}
	}()
	reg.fn(state)
}
