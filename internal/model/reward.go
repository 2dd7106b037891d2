package model

import "time"

type Reward struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Cost        float64    `json:"cost"`
	IsRedeemed  bool       `json:"is_redeemed"`
	RedeemedBy  *int64     `json:"redeemed_by"`
	RedeemedAt  *time.Time `json:"redeemed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// LeagueEntry is recomputed from completion rows on every read.
type LeagueEntry struct {
	MemberID          int64   `json:"user_id"`
	Name              string  `json:"name"`
	StandardCompleted int     `json:"standard_completed"`
	BonusCompleted    int     `json:"bonus_completed"`
	TotalPoints       int     `json:"total_points"`
	TotalBalance      float64 `json:"total_balance"`
}
