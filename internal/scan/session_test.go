package scan

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classtrack/internal/attendance"
	"classtrack/internal/roster"
	"classtrack/internal/store"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

type fixture struct {
	docs    *store.MemoryDocuments
	ledger  *attendance.Ledger
	session *Session
}

func newFixture(t *testing.T, teacherID string, now time.Time) *fixture {
	t.Helper()
	docs := store.NewMemoryDocuments()
	ledger := attendance.NewLedger(teacherID, docs, time.UTC, func() time.Time { return now })
	return &fixture{
		docs:    docs,
		ledger:  ledger,
		session: NewSession(roster.NewGuard(docs), ledger),
	}
}

func (f *fixture) enroll(t *testing.T, teacherID, name, studentID string) []byte {
	t.Helper()
	svc := roster.NewService(f.docs)
	st, err := svc.Add(context.Background(), teacherID, "Teacher", name, studentID, "A1")
	require.NoError(t, err)
	raw, err := svc.QRPayload(st)
	require.NoError(t, err)
	return raw
}

func TestScanConfirmRecordsAttendance(t *testing.T) {
	f := newFixture(t, "T1", at(7, 30))
	payload := f.enroll(t, "T1", "Maria Santos", "LRN001")
	ctx := context.Background()

	pending, err := f.session.OnScan(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingConfirmation, f.session.State())
	assert.Equal(t, attendance.PeriodMorning, pending.Decision.Period)
	assert.Equal(t, attendance.StatusPresent, pending.Decision.Status)
	assert.Equal(t, "Maria Santos", pending.Student.Name)

	id, err := f.session.Confirm(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, StateIdle, f.session.State())

	recs := f.ledger.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "LRN001", recs[0].StudentID)
	assert.Equal(t, "T1", recs[0].TeacherID)
	assert.Equal(t, attendance.PeriodMorning, recs[0].Period)
	assert.Equal(t, attendance.StatusPresent, recs[0].Status)

	stats := f.ledger.StatsForToday()
	assert.Equal(t, 1, stats.Morning.Present)
	assert.Equal(t, 1, stats.Total())
}

func TestScanDeniedForForeignStudent(t *testing.T) {
	f := newFixture(t, "T2", at(7, 30))
	// student enrolled under T1, scanned by T2
	payload := f.enroll(t, "T1", "Maria Santos", "LRN001")

	_, err := f.session.OnScan(context.Background(), payload)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, StateIdle, f.session.State())
	assert.Equal(t, 0, f.ledger.Len())
}

func TestScanRejectsMalformedPayload(t *testing.T) {
	f := newFixture(t, "T1", at(7, 30))

	_, err := f.session.OnScan(context.Background(), []byte("old format QR"))
	assert.ErrorIs(t, err, roster.ErrUnrecognizedPayload)
	assert.Equal(t, StateIdle, f.session.State())
	assert.Equal(t, 0, f.ledger.Len())
}

func TestScanLatchIgnoresSecondScan(t *testing.T) {
	f := newFixture(t, "T1", at(7, 30))
	payload := f.enroll(t, "T1", "Maria Santos", "LRN001")
	ctx := context.Background()

	_, err := f.session.OnScan(ctx, payload)
	require.NoError(t, err)

	_, err = f.session.OnScan(ctx, payload)
	assert.ErrorIs(t, err, ErrScanInProgress)

	// still exactly one pending decision; confirm releases the latch
	_, err = f.session.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.ledger.Len())

	_, err = f.session.OnScan(ctx, payload)
	require.NoError(t, err)
}

func TestOverrideChangesStatusOnly(t *testing.T) {
	f := newFixture(t, "T1", at(7, 0))
	payload := f.enroll(t, "T1", "Maria Santos", "LRN001")
	ctx := context.Background()

	pending, err := f.session.OnScan(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, pending.Decision.Status)

	require.NoError(t, f.session.Override(attendance.StatusAbsent))
	pending, ok := f.session.Pending()
	require.True(t, ok)
	assert.Equal(t, attendance.StatusAbsent, pending.Decision.Status)
	// period stays fixed by the scan instant
	assert.Equal(t, attendance.PeriodMorning, pending.Decision.Period)

	_, err = f.session.Confirm(ctx)
	require.NoError(t, err)
	recs := f.ledger.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, attendance.StatusAbsent, recs[0].Status)
	assert.Equal(t, attendance.PeriodMorning, recs[0].Period)
}

func TestOverrideRejectsInvalidStatusAndIdleState(t *testing.T) {
	f := newFixture(t, "T1", at(7, 0))
	assert.ErrorIs(t, f.session.Override(attendance.StatusLate), ErrNoPendingScan)
	assert.Error(t, f.session.Override(attendance.Status("excused")))
}

func TestConfirmFailureKeepsPendingForRetry(t *testing.T) {
	f := newFixture(t, "T1", at(7, 30))
	payload := f.enroll(t, "T1", "Maria Santos", "LRN001")
	ctx := context.Background()

	_, err := f.session.OnScan(ctx, payload)
	require.NoError(t, err)

	f.docs.FailWrites = errors.New("backend down")
	_, err = f.session.Confirm(ctx)
	require.Error(t, err)
	assert.Equal(t, StateAwaitingConfirmation, f.session.State())
	assert.Equal(t, 0, f.ledger.Len())

	// teacher re-taps confirm once the store is back
	f.docs.FailWrites = nil
	id, err := f.session.Confirm(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, f.ledger.Len())
	assert.Equal(t, StateIdle, f.session.State())
}

func TestVerificationFailureFailsClosed(t *testing.T) {
	f := newFixture(t, "T1", at(7, 30))
	payload := f.enroll(t, "T1", "Maria Santos", "LRN001")

	f.docs.FailReads = errors.New("backend down")
	_, err := f.session.OnScan(context.Background(), payload)
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, StateIdle, f.session.State())
	assert.Equal(t, 0, f.ledger.Len())
}

func TestCancelDiscardsPending(t *testing.T) {
	f := newFixture(t, "T1", at(7, 30))
	payload := f.enroll(t, "T1", "Maria Santos", "LRN001")
	ctx := context.Background()

	_, err := f.session.OnScan(ctx, payload)
	require.NoError(t, err)

	f.session.Cancel()
	assert.Equal(t, StateIdle, f.session.State())
	_, ok := f.session.Pending()
	assert.False(t, ok)
	assert.Equal(t, 0, f.ledger.Len())

	// cancel while idle is a no-op
	f.session.Cancel()
	assert.Equal(t, StateIdle, f.session.State())
}

func TestConfirmWithoutScan(t *testing.T) {
	f := newFixture(t, "T1", at(7, 30))
	_, err := f.session.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrNoPendingScan)
}

func TestScanTrustsStoreNotPayloadHints(t *testing.T) {
	f := newFixture(t, "T1", at(8, 30))
	f.enroll(t, "T1", "Maria Santos", "LRN001")

	// payload claims a different owner but the id is on T1's roster;
	// display hints differ too. Verification goes by the store.
	forged, err := json.Marshal(roster.Payload{
		Name:           "Someone Else",
		StudentID:      "LRN001",
		Section:        "Z9",
		OwnerTeacherID: "T9",
	})
	require.NoError(t, err)

	pending, scanErr := f.session.OnScan(context.Background(), forged)
	require.NoError(t, scanErr)
	assert.Equal(t, attendance.StatusLate, pending.Decision.Status)
	assert.Equal(t, attendance.PeriodMorning, pending.Decision.Period)
}

func TestRegistryReturnsOneSessionPerTeacher(t *testing.T) {
	docs := store.NewMemoryDocuments()
	ledgers := attendance.NewManager(docs, time.UTC, func() time.Time { return at(7, 30) })
	reg := NewRegistry(roster.NewGuard(docs), ledgers)

	s1 := reg.ForTeacher("T1")
	assert.Same(t, s1, reg.ForTeacher("T1"))
	assert.NotSame(t, s1, reg.ForTeacher("T2"))
}
