package model

import "time"

type Event struct {
	ID         int64     `json:"id"`
	ExternalID *string   `json:"external_id,omitempty"`
	Summary    string    `json:"summary"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Location   string    `json:"location"`
	MemberID   *int64    `json:"member_id"`
	MemberName string    `json:"user_name"`
}

type AlertType string

const (
	AlertWarning    AlertType = "warning"
	AlertSuggestion AlertType = "suggestion"
)

type Alert struct {
	ID          int64     `json:"id"`
	MemberID    int64     `json:"user_id"`
	Message     string    `json:"message"`
	Type        AlertType `json:"type"`
	IsDismissed bool      `json:"is_dismissed"`
	Feedback    *int      `json:"feedback"`
	CreatedAt   time.Time `json:"created_at"`
}
