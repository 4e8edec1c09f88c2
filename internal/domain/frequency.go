package domain

import "time"

// Frequency is the cadence of a recurring obligation.
type Frequency string

const (
	FrequencyDaily      Frequency = "DAILY"
	FrequencyWeekly     Frequency = "WEEKLY"
	FrequencyBiweekly   Frequency = "BIWEEKLY"
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencySemiannual Frequency = "SEMIANNUAL"
	FrequencyYearly     Frequency = "YEARLY"
)

// IsValid reports whether the frequency is one of the known values.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencySemiannual, FrequencyYearly:
		return true
	}
	return false
}

// NextOccurrence returns the next scheduled date after anchor for the
// given frequency. Month and year steps clamp to the last day of the
// target month (Jan 31 + 1 month = Feb 29 on leap years, never Mar 2).
// Callers must always advance from the previous scheduled date, not
// from "now", so a delayed run does not compress the cadence.
func NextOccurrence(f Frequency, anchor time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return anchor.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return anchor.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return anchor.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return addMonthsClamped(anchor, 1)
	case FrequencyQuarterly:
		return addMonthsClamped(anchor, 3)
	case FrequencySemiannual:
		return addMonthsClamped(anchor, 6)
	case FrequencyYearly:
		return addMonthsClamped(anchor, 12)
	}
	// Unknown frequencies are rejected at the validation layer.
	return anchor.AddDate(0, 0, 1)
}

// addMonthsClamped steps forward whole calendar months, clamping the
// day-of-month to the last day of the target month instead of letting
// time.AddDate roll over into the following month.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
