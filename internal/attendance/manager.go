package attendance

import (
	"context"
	"sync"
	"time"

	"classtrack/internal/auth"
	"classtrack/internal/store"
)

// Manager holds one Ledger per signed-in teacher. Ledgers are created on the
// signed-in auth event (which also triggers the initial LoadAll) or lazily on
// first request, and dropped on sign-out; the log is rebuilt wholesale at the
// next sign-in.
type Manager struct {
	docs store.Documents
	loc  *time.Location
	now  func() time.Time

	mu      sync.Mutex
	ledgers map[string]*Ledger
}

// NewManager builds the registry. now may be nil for the real clock.
func NewManager(docs store.Documents, loc *time.Location, now func() time.Time) *Manager {
	return &Manager{
		docs:    docs,
		loc:     loc,
		now:     now,
		ledgers: make(map[string]*Ledger),
	}
}

// ForTeacher returns the teacher's ledger, creating it when absent.
func (m *Manager) ForTeacher(teacherID string) *Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.ledgers[teacherID]; ok {
		return l
	}
	l := NewLedger(teacherID, m.docs, m.loc, m.now)
	m.ledgers[teacherID] = l
	return l
}

// Watch subscribes to auth-state transitions. Signing in builds the ledger
// and starts a background load of the teacher's records; signing out drops
// it. Returns the unsubscribe handle.
func (m *Manager) Watch(n *auth.Notifier) func() {
	return n.Subscribe(func(s auth.Session, signedIn bool) {
		if !signedIn {
			m.mu.Lock()
			delete(m.ledgers, s.UserID)
			m.mu.Unlock()
			return
		}
		ledger := m.ForTeacher(s.UserID)
		go ledger.LoadAll(context.Background())
	})
}
