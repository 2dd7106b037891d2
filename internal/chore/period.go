package chore

import (
	"time"

	"github.com/dukerupert/famboard/internal/model"
)

// PeriodStart returns the start of the completion period that contains now.
// A completion at or after this instant counts as done for the chore's
// current cycle. One-off chores have a single period covering all time.
func PeriodStart(freq model.Frequency, now time.Time) time.Time {
	today := startOfDay(now)
	switch freq {
	case model.FrequencyWeekly:
		// Weeks start on Monday.
		offset := (int(today.Weekday()) + 6) % 7
		return today.AddDate(0, 0, -offset)
	case model.FrequencyMonthly:
		return time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	case model.FrequencyOnce:
		return time.Time{}
	default:
		return today
	}
}

// EarliestPeriodStart is the oldest period start across the recurring
// frequencies; completions older than this only matter for one-off chores.
func EarliestPeriodStart(now time.Time) time.Time {
	week := PeriodStart(model.FrequencyWeekly, now)
	month := PeriodStart(model.FrequencyMonthly, now)
	if week.Before(month) {
		return week
	}
	return month
}

// CompletedIn reports whether a completion at completedAt counts for the
// chore's current period.
func CompletedIn(freq model.Frequency, completedAt, now time.Time) bool {
	return !completedAt.Before(PeriodStart(freq, now))
}

// ResolveCompleted sets IsCompleted on every chore from the given completion
// rows. Roster chores are per-member work, so only memberID's completions
// count for them; memberID == 0 means "by anybody". Chores outside rosters
// are shared and count as done once anybody has completed them.
func ResolveCompleted(chores []model.Chore, completions []model.ChoreCompletion, memberID int64, now time.Time) {
	byChore := make(map[int64][]model.ChoreCompletion, len(completions))
	for _, c := range completions {
		byChore[c.ChoreID] = append(byChore[c.ChoreID], c)
	}

	for i := range chores {
		c := &chores[i]
		c.IsCompleted = false
		for _, comp := range byChore[c.ID] {
			if c.RosterID != nil && memberID != 0 && comp.MemberID != memberID {
				continue
			}
			if CompletedIn(c.Frequency, comp.CompletedAt.In(now.Location()), now) {
				c.IsCompleted = true
				break
			}
		}
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
