package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestClassifyAllHours(t *testing.T) {
	expect := func(h int) Decision {
		switch {
		case h < 8:
			return Decision{PeriodMorning, StatusPresent}
		case h < 10:
			return Decision{PeriodMorning, StatusLate}
		case h < 12:
			return Decision{PeriodMorning, StatusAbsent}
		case h < 14:
			return Decision{PeriodAfternoon, StatusPresent}
		case h < 15:
			return Decision{PeriodAfternoon, StatusLate}
		default:
			return Decision{PeriodAfternoon, StatusAbsent}
		}
	}
	for h := 0; h < 24; h++ {
		assert.Equal(t, expect(h), Classify(at(h, 0)), "hour %d", h)
		assert.Equal(t, expect(h), Classify(at(h, 59)), "hour %d:59", h)
	}
}

func TestClassifyBoundariesGoToLaterBucket(t *testing.T) {
	assert.Equal(t, Decision{PeriodMorning, StatusLate}, Classify(at(8, 0)))
	assert.Equal(t, Decision{PeriodMorning, StatusAbsent}, Classify(at(10, 0)))
	assert.Equal(t, Decision{PeriodAfternoon, StatusPresent}, Classify(at(12, 0)))
	assert.Equal(t, Decision{PeriodAfternoon, StatusLate}, Classify(at(14, 0)))
	assert.Equal(t, Decision{PeriodAfternoon, StatusAbsent}, Classify(at(15, 0)))

	// and a minute before each threshold stays in the earlier bucket
	assert.Equal(t, Decision{PeriodMorning, StatusPresent}, Classify(at(7, 59)))
	assert.Equal(t, Decision{PeriodMorning, StatusLate}, Classify(at(9, 59)))
	assert.Equal(t, Decision{PeriodMorning, StatusAbsent}, Classify(at(11, 59)))
	assert.Equal(t, Decision{PeriodAfternoon, StatusPresent}, Classify(at(13, 59)))
	assert.Equal(t, Decision{PeriodAfternoon, StatusLate}, Classify(at(14, 59)))
}

func TestPeriodAt(t *testing.T) {
	for h := 0; h < 12; h++ {
		assert.Equal(t, PeriodMorning, PeriodAt(at(h, 30)))
	}
	for h := 12; h < 24; h++ {
		assert.Equal(t, PeriodAfternoon, PeriodAt(at(h, 30)))
	}
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusPresent))
	assert.True(t, ValidStatus(StatusLate))
	assert.True(t, ValidStatus(StatusAbsent))
	assert.False(t, ValidStatus(Status("excused")))
	assert.False(t, ValidStatus(Status("")))
}
