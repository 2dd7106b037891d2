// Package roster lays chores out as a drag-and-drop board and decides what a
// drop on that board means.
package roster

import (
	"errors"
	"sort"

	"github.com/dukerupert/famboard/internal/model"
)

var (
	ErrChoreNotFound  = errors.New("chore not found")
	ErrColumnNotFound = errors.New("member has no roster")
	ErrBonusChore     = errors.New("bonus chores cannot be dragged onto a roster")
	ErrImportManaged  = errors.New("imported chores stay in the pool")
)

// Chip is a chore as drawn on the board. Imported chores are shown but
// cannot be dragged.
type Chip struct {
	model.Chore
	Draggable bool `json:"draggable"`
}

func chip(c model.Chore) Chip {
	return Chip{Chore: c, Draggable: !c.Source.ImportManaged()}
}

// Column is one member's drop target. A member assigned to several rosters
// still gets one column, showing their primary roster.
type Column struct {
	MemberID int64   `json:"user_id"`
	Name     string  `json:"user_name"`
	Color    *string `json:"color"`
	RosterID int64   `json:"roster_id"`
	Roster   string  `json:"roster_name"`
	Chores   []Chip  `json:"chores"`
}

type Board struct {
	Pool    []Chip   `json:"pool"`
	Columns []Column `json:"columns"`

	chores map[int64]model.Chore
}

// PrimaryRoster returns the roster shown for memberID: the lowest roster id
// among the member's assignments.
func PrimaryRoster(rosters []model.Roster, memberID int64) (model.Roster, bool) {
	var best model.Roster
	found := false
	for _, r := range rosters {
		for _, a := range r.Assignments {
			if a.MemberID != memberID {
				continue
			}
			if !found || r.ID < best.ID {
				best, found = r, true
			}
		}
	}
	return best, found
}

// BuildBoard lays out the pool and one column per member that has at least
// one roster. loose holds every chore outside a roster, bonus chores
// included; only standard chores reach the pool.
func BuildBoard(rosters []model.Roster, loose []model.Chore, members []model.Member) Board {
	b := Board{
		Pool:    []Chip{},
		Columns: []Column{},
		chores:  make(map[int64]model.Chore),
	}

	for _, c := range loose {
		b.chores[c.ID] = c
		if c.InPool() {
			b.Pool = append(b.Pool, chip(c))
		}
	}
	for _, r := range rosters {
		for _, c := range r.Chores {
			b.chores[c.ID] = c
		}
	}
	sort.Slice(b.Pool, func(i, j int) bool { return b.Pool[i].ID < b.Pool[j].ID })

	for _, m := range members {
		r, ok := PrimaryRoster(rosters, m.ID)
		if !ok {
			continue
		}
		col := Column{
			MemberID: m.ID,
			Name:     m.Name,
			Color:    m.Color,
			RosterID: r.ID,
			Roster:   r.Name,
			Chores:   []Chip{},
		}
		for _, c := range r.Chores {
			if !c.IsBonus {
				col.Chores = append(col.Chores, chip(c))
			}
		}
		b.Columns = append(b.Columns, col)
	}
	return b
}

// Column returns the column for memberID.
func (b Board) Column(memberID int64) (Column, bool) {
	for _, c := range b.Columns {
		if c.MemberID == memberID {
			return c, true
		}
	}
	return Column{}, false
}

// Target is where a chore chip was dropped. A zero MemberID is the pool.
type Target struct {
	MemberID int64 `json:"user_id,omitempty"`
}

func (t Target) IsPool() bool { return t.MemberID == 0 }

type ActionKind string

const (
	ActionNoop         ActionKind = "noop"
	ActionMoveToPool   ActionKind = "move_to_pool"
	ActionMoveToRoster ActionKind = "move_to_roster"
)

type Action struct {
	Kind     ActionKind `json:"action"`
	ChoreID  int64      `json:"chore_id"`
	RosterID int64      `json:"roster_id,omitempty"`
}

// ResolveDrop decides which store operation a drop maps to. It never mutates
// the board; the caller applies the action and refetches.
func (b Board) ResolveDrop(choreID int64, target Target) (Action, error) {
	c, ok := b.chores[choreID]
	if !ok {
		return Action{}, ErrChoreNotFound
	}
	noop := Action{Kind: ActionNoop, ChoreID: choreID}

	if target.IsPool() {
		if c.RosterID == nil {
			return noop, nil
		}
		return Action{Kind: ActionMoveToPool, ChoreID: choreID}, nil
	}

	col, ok := b.Column(target.MemberID)
	if !ok {
		return Action{}, ErrColumnNotFound
	}
	if c.IsBonus {
		return Action{}, ErrBonusChore
	}
	if c.Source.ImportManaged() {
		return Action{}, ErrImportManaged
	}
	if c.RosterID != nil && *c.RosterID == col.RosterID {
		return noop, nil
	}
	return Action{Kind: ActionMoveToRoster, ChoreID: choreID, RosterID: col.RosterID}, nil
}
