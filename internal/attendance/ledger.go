package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"classtrack/internal/store"
)

// Date and display-time layouts match the wire format the mobile clients
// already write: a numeric M/D/YYYY day string, a 12-hour clock time, and an
// ISO 8601 UTC timestamp whose fixed width keeps lexical order == time order.
const (
	dateLayout      = "1/2/2006"
	scanTimeLayout  = "03:04 PM"
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// ErrRecordFailed wraps store write failures; the caller may retry the
// confirm step, nothing was appended locally.
var ErrRecordFailed = errors.New("failed to record attendance")

// Record is one immutable attendance entry. Corrections append a new record
// for the same student/date/period; nothing is ever mutated or deleted.
type Record struct {
	ID        string `json:"id"`
	StudentID string `json:"studentId"`
	TeacherID string `json:"teacherId"`
	Date      string `json:"date"`
	Period    Period `json:"period"`
	Status    Status `json:"status"`
	ScanTime  string `json:"scanTime"`
	Timestamp string `json:"timestamp"`
}

// PeriodStats tallies one session of a day.
type PeriodStats struct {
	Present int `json:"present"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
}

// DailyStats is the per-day rollup derived from the log on demand.
type DailyStats struct {
	Morning   PeriodStats `json:"morning"`
	Afternoon PeriodStats `json:"afternoon"`
}

// Total returns the number of records behind the stats.
func (s DailyStats) Total() int {
	return s.Morning.Present + s.Morning.Late + s.Morning.Absent +
		s.Afternoon.Present + s.Afternoon.Late + s.Afternoon.Absent
}

// Ledger owns the attendance log for one signed-in teacher. The log is
// rebuilt wholesale by LoadAll and appended to optimistically by Record;
// no other component mutates it.
type Ledger struct {
	teacherID string
	docs      store.Documents
	loc       *time.Location
	now       func() time.Time

	mu      sync.Mutex
	records []Record // newest first
	loading bool
}

// NewLedger builds the ledger for a teacher. An empty teacher id is a
// programming error: every caller goes through authentication first.
func NewLedger(teacherID string, docs store.Documents, loc *time.Location, now func() time.Time) *Ledger {
	if teacherID == "" {
		panic("attendance: ledger requires an authenticated teacher id")
	}
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{teacherID: teacherID, docs: docs, loc: loc, now: now}
}

// TeacherID returns the owning teacher.
func (l *Ledger) TeacherID() string { return l.teacherID }

// Loading reports whether a LoadAll is in flight.
func (l *Ledger) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// LoadAll replaces the log with every stored record for this teacher,
// newest first. Fails soft: on a store error the previous log is kept and
// the error is only logged, so stale data stays visible instead of a wipe.
func (l *Ledger) LoadAll(ctx context.Context) {
	l.mu.Lock()
	l.loading = true
	l.mu.Unlock()

	docs, err := l.docs.Query(ctx, store.CollectionAttendance,
		[]store.Filter{{Field: "teacherId", Value: l.teacherID}},
		&store.Order{Field: "timestamp", Desc: true},
	)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	if err != nil {
		log.Printf("ledger: load attendance for %s failed: %v", l.teacherID, err)
		return
	}
	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, recordFromDocument(doc))
	}
	l.records = records
}

// Record appends a new attendance entry for the current instant and returns
// its id. The local log is updated only after the store write succeeds, so
// it never holds records that were not persisted. Duplicate-tolerant: two
// calls for the same student/date/period yield two records.
func (l *Ledger) Record(ctx context.Context, studentID string, period Period, status Status) (string, error) {
	if studentID == "" {
		return "", errors.New("student id required")
	}
	if period != PeriodMorning && period != PeriodAfternoon {
		return "", fmt.Errorf("invalid period %q", period)
	}
	if !ValidStatus(status) {
		return "", fmt.Errorf("invalid status %q", status)
	}

	now := l.now().In(l.loc)
	rec := Record{
		StudentID: studentID,
		TeacherID: l.teacherID,
		Date:      now.Format(dateLayout),
		Period:    period,
		Status:    status,
		ScanTime:  now.Format(scanTimeLayout),
		Timestamp: now.UTC().Format(timestampLayout),
	}

	id, err := l.docs.Create(ctx, store.CollectionAttendance, map[string]any{
		"studentId": rec.StudentID,
		"teacherId": rec.TeacherID,
		"date":      rec.Date,
		"period":    string(rec.Period),
		"status":    string(rec.Status),
		"scanTime":  rec.ScanTime,
		"timestamp": rec.Timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecordFailed, err)
	}
	rec.ID = id

	l.mu.Lock()
	l.records = append([]Record{rec}, l.records...)
	l.mu.Unlock()
	return id, nil
}

// StatsForToday tallies today's log entries per period and status. "Today"
// is string equality on the formatted date, matching how records are written.
func (l *Ledger) StatsForToday() DailyStats {
	return l.StatsForDate(l.now().In(l.loc))
}

// StatsForDate tallies entries for an arbitrary calendar day.
func (l *Ledger) StatsForDate(day time.Time) DailyStats {
	date := day.In(l.loc).Format(dateLayout)
	var stats DailyStats
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.records {
		if rec.Date != date {
			continue
		}
		var ps *PeriodStats
		switch rec.Period {
		case PeriodMorning:
			ps = &stats.Morning
		case PeriodAfternoon:
			ps = &stats.Afternoon
		default:
			continue
		}
		switch rec.Status {
		case StatusPresent:
			ps.Present++
		case StatusLate:
			ps.Late++
		default:
			ps.Absent++
		}
	}
	return stats
}

// RecordsForDate returns the log entries for one calendar day, newest first.
func (l *Ledger) RecordsForDate(day time.Time) []Record {
	date := day.In(l.loc).Format(dateLayout)
	l.mu.Lock()
	defer l.mu.Unlock()
	var res []Record
	for _, rec := range l.records {
		if rec.Date == date {
			res = append(res, rec)
		}
	}
	return res
}

// Records returns a copy of the full log, newest first.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := make([]Record, len(l.records))
	copy(res, l.records)
	return res
}

// Len returns the number of log entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// CurrentPeriod returns the default session for the current wall clock,
// without the present/late/absent judgment. Used for manual entries that do
// not go through a live scan.
func (l *Ledger) CurrentPeriod() Period {
	return PeriodAt(l.now().In(l.loc))
}

// Now returns the current instant in the ledger's time zone.
func (l *Ledger) Now() time.Time {
	return l.now().In(l.loc)
}

func recordFromDocument(doc store.Document) Record {
	return Record{
		ID:        doc.ID,
		StudentID: doc.String("studentId"),
		TeacherID: doc.String("teacherId"),
		Date:      doc.String("date"),
		Period:    Period(doc.String("period")),
		Status:    Status(doc.String("status")),
		ScanTime:  doc.String("scanTime"),
		Timestamp: doc.String("timestamp"),
	}
}
