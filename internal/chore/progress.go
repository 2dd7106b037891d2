package chore

import (
	"sort"

	"github.com/dukerupert/famboard/internal/model"
)

// Progress summarises a member's standard chore completion.
type Progress struct {
	CompletedStandard int  `json:"completed_standard"`
	TotalStandard     int  `json:"total_standard"`
	AllStandardDone   bool `json:"all_standard_done"`
	BonusUnlocked     bool `json:"bonus_unlocked"`
}

// ComputeProgress partitions chores into standard and bonus work and derives
// the bonus gate. A member with no standard chores has finished all of them,
// so their bonus chores are unlocked.
func ComputeProgress(chores []model.Chore) Progress {
	var p Progress
	for _, c := range chores {
		if c.IsBonus {
			continue
		}
		p.TotalStandard++
		if c.IsCompleted {
			p.CompletedStandard++
		}
	}
	p.AllStandardDone = p.CompletedStandard == p.TotalStandard
	p.BonusUnlocked = p.AllStandardDone
	return p
}

// RosterProgress is one roster as seen by a single member.
type RosterProgress struct {
	RosterID   int64         `json:"roster_id"`
	RosterName string        `json:"roster_name"`
	Chores     []model.Chore `json:"chores"`
	Completed  int           `json:"completed"`
	Total      int           `json:"total"`
}

// View is everything a member can act on, with the bonus gate applied.
type View struct {
	MemberID      int64            `json:"user_id"`
	Rosters       []RosterProgress `json:"rosters"`
	Unassigned    []model.Chore    `json:"unassigned"`
	BonusUnlocked bool             `json:"bonus_unlocked"`
	BonusChores   []model.Chore    `json:"bonus_chores"`
	Progress      Progress         `json:"progress"`
}

// Visible reports whether memberID may see a chore that is not in one of
// their rosters. Personal chores are only visible to their owner.
func Visible(c model.Chore, memberID int64) bool {
	if !c.Personal {
		return true
	}
	return c.OwnerID != nil && *c.OwnerID == memberID
}

// BuildView derives a member's chore view. rosters must be the rosters the
// member is assigned to with completion already resolved for that member;
// loose holds chores outside any roster.
func BuildView(memberID int64, rosters []model.Roster, loose []model.Chore) View {
	v := View{
		MemberID:    memberID,
		Rosters:     []RosterProgress{},
		Unassigned:  []model.Chore{},
		BonusChores: []model.Chore{},
	}

	sorted := append([]model.Roster(nil), rosters...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var visible []model.Chore
	for _, r := range sorted {
		rp := RosterProgress{RosterID: r.ID, RosterName: r.Name, Chores: []model.Chore{}}
		for _, c := range r.Chores {
			if c.IsBonus {
				v.BonusChores = append(v.BonusChores, c)
				continue
			}
			rp.Chores = append(rp.Chores, c)
			rp.Total++
			if c.IsCompleted {
				rp.Completed++
			}
		}
		visible = append(visible, rp.Chores...)
		v.Rosters = append(v.Rosters, rp)
	}

	for _, c := range loose {
		if c.RosterID != nil || !Visible(c, memberID) {
			continue
		}
		if c.IsBonus {
			v.BonusChores = append(v.BonusChores, c)
			continue
		}
		v.Unassigned = append(v.Unassigned, c)
		visible = append(visible, c)
	}

	v.Progress = ComputeProgress(visible)
	v.BonusUnlocked = v.Progress.BonusUnlocked
	return v
}

// ChildOverview is one child's row in a parent's family overview.
type ChildOverview struct {
	MemberID      int64            `json:"user_id"`
	Name          string           `json:"user_name"`
	Color         *string          `json:"color"`
	Rosters       []RosterProgress `json:"rosters"`
	Completed     int              `json:"completed"`
	Total         int              `json:"total"`
	BonusUnlocked bool             `json:"bonus_unlocked"`
}

// Overview builds a child's overview row from their own view. Each child's
// bonus gate depends only on that child's completions.
func Overview(child model.Member, v View) ChildOverview {
	return ChildOverview{
		MemberID:      child.ID,
		Name:          child.Name,
		Color:         child.Color,
		Rosters:       v.Rosters,
		Completed:     v.Progress.CompletedStandard,
		Total:         v.Progress.TotalStandard,
		BonusUnlocked: v.BonusUnlocked,
	}
}
