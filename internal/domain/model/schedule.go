package model

import (
	"time"

	"github.com/google/uuid"
)

// PerformanceSchedule re-runs the performance test for a user's answered questions.
type PerformanceSchedule struct {
	ID        string
	UserID    string
	Cadence   TestSchedule
	Providers []string
	NextRunAt time.Time
	// RunDay is the day of month monthly runs are anchored to, taken from the first run.
	RunDay    int
	LastRunAt *time.Time
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPerformanceSchedule(userID string, cadence TestSchedule, providers []string, firstRun time.Time) *PerformanceSchedule {
	now := time.Now()
	return &PerformanceSchedule{
		ID:        uuid.NewString(),
		UserID:    userID,
		Cadence:   cadence,
		Providers: providers,
		NextRunAt: firstRun,
		RunDay:    firstRun.Day(),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NextRun advances from by one cadence period. Monthly runs land on runDay,
// clamped to the month's last day, so Jan 31 goes to Feb 28 and then Mar 31.
// A runDay of zero anchors to from's own day. Manual schedules do not recur.
func NextRun(cadence TestSchedule, from time.Time, runDay int) (time.Time, bool) {
	switch cadence {
	case ScheduleWeekly:
		return from.AddDate(0, 0, 7), true
	case ScheduleMonthly:
		if runDay <= 0 {
			runDay = from.Day()
		}
		y, m, _ := from.Date()
		first := time.Date(y, m+1, 1, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
		if last := daysIn(first); runDay > last {
			runDay = last
		}
		return first.AddDate(0, 0, runDay-1), true
	default:
		return time.Time{}, false
	}
}

func daysIn(monthStart time.Time) int {
	return monthStart.AddDate(0, 1, -1).Day()
}

// Due reports whether the schedule should run at now.
func (s *PerformanceSchedule) Due(now time.Time) bool {
	return s.Active && !s.NextRunAt.After(now)
}

// Advance records a run at now and moves NextRunAt past now.
func (s *PerformanceSchedule) Advance(now time.Time) {
	s.LastRunAt = &now
	s.UpdatedAt = now
	next, ok := NextRun(s.Cadence, s.NextRunAt, s.RunDay)
	if !ok {
		s.Active = false
		return
	}
	for !next.After(now) {
		next, _ = NextRun(s.Cadence, next, s.RunDay)
	}
	s.NextRunAt = next
}
