package attendance

import "time"

// Period is the half-day session a record belongs to.
type Period string

// Status is the attendance judgment for a single scan.
type Status string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"

	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
)

// ValidStatus reports whether s is one of the three recordable statuses.
func ValidStatus(s Status) bool {
	return s == StatusPresent || s == StatusLate || s == StatusAbsent
}

// Decision is the classifier's verdict for a scan instant.
type Decision struct {
	Period Period `json:"period"`
	Status Status `json:"status"`
}

// Classify maps a local wall-clock instant to a session and status.
//
// Morning session: before 08:00 present, 08:00-09:59 late, 10:00-11:59 absent.
// Afternoon session: before 14:00 present, 14:00-14:59 late, from 15:00 absent.
// All thresholds are half-open; the boundary hour falls in the later bucket.
func Classify(t time.Time) Decision {
	h := t.Hour()
	if h < 12 {
		switch {
		case h < 8:
			return Decision{Period: PeriodMorning, Status: StatusPresent}
		case h < 10:
			return Decision{Period: PeriodMorning, Status: StatusLate}
		default:
			return Decision{Period: PeriodMorning, Status: StatusAbsent}
		}
	}
	switch {
	case h < 14:
		return Decision{Period: PeriodAfternoon, Status: StatusPresent}
	case h < 15:
		return Decision{Period: PeriodAfternoon, Status: StatusLate}
	default:
		return Decision{Period: PeriodAfternoon, Status: StatusAbsent}
	}
}

// PeriodAt returns only the session for an instant, without the status
// judgment. Used as the default period for manual entries.
func PeriodAt(t time.Time) Period {
	if t.Hour() < 12 {
		return PeriodMorning
	}
	return PeriodAfternoon
}
