// Package scan drives the per-scan workflow: parse the QR payload, verify
// roster ownership, classify by wall clock, let the teacher override the
// status, then commit through the ledger.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"classtrack/internal/attendance"
	"classtrack/internal/roster"
)

// State is the session's position in the scan workflow.
type State string

const (
	StateIdle                 State = "idle"
	StateScanning             State = "scanning"
	StateAwaitingConfirmation State = "awaiting_confirmation"
)

var (
	// ErrScanInProgress means a scan arrived while an earlier one still
	// awaits confirmation; rapid duplicate reads of the same code land here.
	ErrScanInProgress = errors.New("a scan is already awaiting confirmation")
	// ErrAccessDenied means the student is not in this teacher's roster.
	ErrAccessDenied = errors.New("access denied: student not in this teacher's roster")
	// ErrVerificationFailed means ownership could not be checked (store
	// failure). The scan is rejected rather than allowed through.
	ErrVerificationFailed = errors.New("could not verify student, try again")
	// ErrNoPendingScan means override/confirm/cancel arrived with nothing
	// scanned.
	ErrNoPendingScan = errors.New("no scan awaiting confirmation")
)

// Pending is the held decision for a scanned student. Only the status may
// change before confirmation; the period is fixed by the scan instant.
type Pending struct {
	Student  roster.Payload      `json:"student"`
	Decision attendance.Decision `json:"decision"`
	ScanTime string              `json:"scanTime"`
}

// Session is the state machine for one teacher's scanner. A single-scan
// latch serializes a physical scanner's duplicate or overlapping reads; it
// does not coordinate across teachers or devices.
type Session struct {
	guard  *roster.Guard
	ledger *attendance.Ledger

	mu      sync.Mutex
	state   State
	pending *Pending
}

// NewSession builds an idle session bound to a teacher's guard and ledger.
func NewSession(guard *roster.Guard, ledger *attendance.Ledger) *Session {
	return &Session{guard: guard, ledger: ledger, state: StateIdle}
}

// State returns the current workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns a copy of the held decision, if any.
func (s *Session) Pending() (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Pending{}, false
	}
	return *s.pending, true
}

// OnScan processes one decoded QR payload. Malformed payloads and roster
// misses return the session to idle with nothing recorded. On success the
// classifier's suggestion is held for confirmation and further scans are
// ignored until Confirm or Cancel.
func (s *Session) OnScan(ctx context.Context, raw []byte) (Pending, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return Pending{}, ErrScanInProgress
	}
	s.state = StateScanning
	s.mu.Unlock()

	payload, err := roster.ParsePayload(raw)
	if err != nil {
		s.reset()
		return Pending{}, err
	}

	owned, err := s.guard.VerifyOwnership(ctx, payload.StudentID, s.ledger.TeacherID())
	if err != nil {
		s.reset()
		return Pending{}, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if !owned {
		s.reset()
		return Pending{}, ErrAccessDenied
	}

	now := s.ledger.Now()
	pending := Pending{
		Student:  payload,
		Decision: attendance.Classify(now),
		ScanTime: now.Format("03:04:05 PM"),
	}

	s.mu.Lock()
	s.pending = &pending
	s.state = StateAwaitingConfirmation
	s.mu.Unlock()
	return pending, nil
}

// Override replaces the pending status. The period never changes here: the
// session is fixed by wall-clock time at the scan moment.
func (s *Session) Override(status attendance.Status) error {
	if !attendance.ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingConfirmation || s.pending == nil {
		return ErrNoPendingScan
	}
	s.pending.Decision.Status = status
	return nil
}

// Confirm commits the pending decision through the ledger. On a store
// failure the session stays in awaiting-confirmation so the teacher can
// retry without rescanning.
func (s *Session) Confirm(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.state != StateAwaitingConfirmation || s.pending == nil {
		s.mu.Unlock()
		return "", ErrNoPendingScan
	}
	pending := *s.pending
	s.mu.Unlock()

	id, err := s.ledger.Record(ctx, pending.Student.StudentID, pending.Decision.Period, pending.Decision.Status)
	if err != nil {
		return "", err
	}

	s.reset()
	return id, nil
}

// Cancel discards the pending decision without recording anything. Safe to
// call in any state.
func (s *Session) Cancel() {
	s.reset()
}

func (s *Session) reset() {
	s.mu.Lock()
	s.pending = nil
	s.state = StateIdle
	s.mu.Unlock()
}
