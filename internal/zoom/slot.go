package zoom

import "time"

// interviewHour is the fixed local start time for interviews.
const interviewHour = 11

// NextSlot computes the interview slot for a given moment: the next calendar
// day at 11:00:00 local time, pushed forward to Monday when it lands on a
// weekend. The policy is fixed; there is no operator override.
func NextSlot(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	day := now.In(loc).AddDate(0, 0, 1)

	// Saturday jumps two days, Sunday one.
	switch day.Weekday() {
	case time.Saturday:
		day = day.AddDate(0, 0, 2)
	case time.Sunday:
		day = day.AddDate(0, 0, 1)
	}

	return time.Date(day.Year(), day.Month(), day.Day(), interviewHour, 0, 0, 0, loc)
}
