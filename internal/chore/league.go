package chore

import (
	"sort"

	"github.com/dukerupert/famboard/internal/model"
)

// Tally is one completion row joined with its chore's bonus flag.
type Tally struct {
	MemberID     int64
	IsBonus      bool
	PointsEarned int
	MoneyEarned  float64
}

// League ranks members by standard completions, then bonus completions.
// spent maps member id to the total cost of rewards they redeemed.
func League(members []model.Member, tallies []Tally, spent map[int64]float64) []model.LeagueEntry {
	entries := make(map[int64]*model.LeagueEntry, len(members))
	out := make([]model.LeagueEntry, 0, len(members))
	for _, m := range members {
		entries[m.ID] = &model.LeagueEntry{MemberID: m.ID, Name: m.Name}
	}

	for _, t := range tallies {
		e, ok := entries[t.MemberID]
		if !ok {
			continue
		}
		if t.IsBonus {
			e.BonusCompleted++
		} else {
			e.StandardCompleted++
		}
		e.TotalPoints += t.PointsEarned
		e.TotalBalance += t.MoneyEarned
	}

	for _, m := range members {
		e := entries[m.ID]
		e.TotalBalance -= spent[m.ID]
		out = append(out, *e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StandardCompleted != out[j].StandardCompleted {
			return out[i].StandardCompleted > out[j].StandardCompleted
		}
		if out[i].BonusCompleted != out[j].BonusCompleted {
			return out[i].BonusCompleted > out[j].BonusCompleted
		}
		return out[i].Name < out[j].Name
	})
	return out
}
