package scan

import (
	"sync"

	"classtrack/internal/attendance"
	"classtrack/internal/roster"
)

// Registry hands out one scan session per teacher, created on first use.
// Sessions are in-process only; each API instance serializes its own
// scanner, nothing more.
type Registry struct {
	guard   *roster.Guard
	ledgers *attendance.Manager

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds the per-teacher session registry.
func NewRegistry(guard *roster.Guard, ledgers *attendance.Manager) *Registry {
	return &Registry{
		guard:    guard,
		ledgers:  ledgers,
		sessions: make(map[string]*Session),
	}
}

// ForTeacher returns the teacher's session, creating it when absent.
func (r *Registry) ForTeacher(teacherID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[teacherID]; ok {
		return s
	}
	s := NewSession(r.guard, r.ledgers.ForTeacher(teacherID))
	r.sessions[teacherID] = s
	return s
}
