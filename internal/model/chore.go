package model

import "time"

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyOnce    Frequency = "once"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyOnce:
		return true
	}
	return false
}

type Source string

const (
	SourceManual     Source = "manual"
	SourceAI         Source = "ai"
	SourceGo4Schools Source = "go4schools"
	SourceRoster     Source = "roster"
)

func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceAI, SourceGo4Schools, SourceRoster:
		return true
	}
	return false
}

// ImportManaged reports whether chores from this source are owned by an
// importer and may only be completed or uncompleted.
func (s Source) ImportManaged() bool {
	return s == SourceGo4Schools
}

type Chore struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Frequency   Frequency  `json:"frequency"`
	Points      int        `json:"points"`
	RewardMoney float64    `json:"reward_money"`
	IsBonus     bool       `json:"is_bonus"`
	IsCompleted bool       `json:"is_completed"`
	Source      Source     `json:"source"`
	SourceID    *string    `json:"source_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	RosterID    *int64     `json:"roster_id"`
	Personal    bool       `json:"personal"`
	OwnerID     *int64     `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// InPool reports whether the chore sits in the unassigned pool.
func (c Chore) InPool() bool {
	return c.RosterID == nil && !c.IsBonus
}

type ChoreCompletion struct {
	ID           int64     `json:"id"`
	ChoreID      int64     `json:"chore_id"`
	MemberID     int64     `json:"member_id"`
	PointsEarned int       `json:"points_earned"`
	MoneyEarned  float64   `json:"money_earned"`
	CompletedAt  time.Time `json:"completed_at"`
}
