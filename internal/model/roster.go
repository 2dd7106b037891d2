package model

import "time"

type Roster struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	CreatedBy   *int64       `json:"created_by"`
	Chores      []Chore      `json:"chores"`
	Assignments []Assignment `json:"assignments"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Assignment struct {
	ID         int64   `json:"id"`
	RosterID   int64   `json:"roster_id"`
	MemberID   int64   `json:"user_id"`
	MemberName string  `json:"user_name"`
	Color      *string `json:"color"`
}
