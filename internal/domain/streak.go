package domain

import (
	"sort"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Snapshot holds the statistics derived from a set of sessions at a given instant.
type Snapshot struct {
	CurrentStreak    int `json:"currentStreak"`
	LongestStreak    int `json:"longestStreak"`
	SessionsThisWeek int `json:"sessionsThisWeek"`
	TotalSessions    int `json:"totalSessions"`
	TotalMinutes     int `json:"totalMinutes"`
}

// ComputeSnapshot derives streak statistics from sessions as observed at now.
// Calendar days are taken in now's location. The input slice is not modified.
func ComputeSnapshot(sessions []Session, now time.Time) Snapshot {
	if len(sessions) == 0 {
		return Snapshot{}
	}

	loc := now.Location()
	weekStart := now.AddDate(0, 0, -7)

	snap := Snapshot{TotalSessions: len(sessions)}
	seen := make(map[int64]struct{}, len(sessions))
	days := make([]int64, 0, len(sessions))

	for _, s := range sessions {
		day := dayNumber(s.CompletedAt, loc)
		if _, ok := seen[day]; !ok {
			seen[day] = struct{}{}
			days = append(days, day)
		}
		if !s.CompletedAt.Before(weekStart) && !s.CompletedAt.After(now) {
			snap.SessionsThisWeek++
		}
		snap.TotalMinutes += ParseDurationMinutes(s.Duration)
	}

	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })

	snap.CurrentStreak = currentStreak(days, dayNumber(now, loc))
	snap.LongestStreak = max(longestStreak(days), snap.CurrentStreak)
	return snap
}

// SnapshotValidUntil returns the first instant after now at which ComputeSnapshot
// over sessions can answer differently: the next local midnight, or earlier when a
// session enters or leaves the trailing week window.
func SnapshotValidUntil(sessions []Session, now time.Time) time.Time {
	y, m, d := now.Date()
	until := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	weekStart := now.AddDate(0, 0, -7)

	for _, s := range sessions {
		var change time.Time
		switch {
		case s.CompletedAt.After(now):
			change = s.CompletedAt
		case !s.CompletedAt.Before(weekStart):
			change = s.CompletedAt.AddDate(0, 0, 7).Add(time.Nanosecond)
		default:
			continue
		}
		if change.Before(until) {
			until = change
		}
	}
	return until
}

// ComputeSnapshotFromRaw validates raw records before computing the snapshot.
func ComputeSnapshotFromRaw(raw []RawSession, now time.Time) (Snapshot, error) {
	sessions, err := ParseSessions(raw)
	if err != nil {
		return Snapshot{}, err
	}
	return ComputeSnapshot(sessions, now), nil
}

// currentStreak expects distinct day numbers sorted newest first.
func currentStreak(days []int64, today int64) int {
	gap := today - days[0]
	if gap < 0 {
		gap = -gap
	}
	if gap > 1 {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if days[i-1]-days[i] != 1 {
			break
		}
		streak++
	}
	return streak
}

func longestStreak(days []int64) int {
	best, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i-1]-days[i] == 1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

// dayNumber maps an instant to its calendar date in loc, counted in days since the epoch.
func dayNumber(t time.Time, loc *time.Location) int64 {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}

// DayKey formats the calendar date of t in its own location.
func DayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
