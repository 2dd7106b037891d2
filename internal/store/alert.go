package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/famboard/internal/model"
)

// AlertStore holds per-member warnings and suggestions.
type AlertStore struct {
	db *sql.DB
}

func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

const alertCols = `id, member_id, message, type, is_dismissed, feedback, created_at`

func scanAlert(s scanner) (*model.Alert, error) {
	var a model.Alert
	var feedback sql.NullInt64
	if err := s.Scan(&a.ID, &a.MemberID, &a.Message, &a.Type, &a.IsDismissed, &feedback, &a.CreatedAt); err != nil {
		return nil, err
	}
	if feedback.Valid {
		v := int(feedback.Int64)
		a.Feedback = &v
	}
	return &a, nil
}

func (s *AlertStore) Create(ctx context.Context, memberID int64, message string, typ model.AlertType) (*model.Alert, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, validationf("message is required")
	}
	if typ == "" {
		typ = model.AlertWarning
	}
	if typ != model.AlertWarning && typ != model.AlertSuggestion {
		return nil, validationf("alert type must be warning or suggestion")
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (member_id, message, type) VALUES (?, ?, ?)`, memberID, message, typ)
	if err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *AlertStore) GetByID(ctx context.Context, id int64) (*model.Alert, error) {
	a, err := scanAlert(s.db.QueryRowContext(ctx, `SELECT `+alertCols+` FROM alerts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

// ListActive returns the member's undismissed alerts, newest first.
func (s *AlertStore) ListActive(ctx context.Context, memberID int64) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertCols+` FROM alerts WHERE member_id = ? AND is_dismissed = 0 ORDER BY created_at DESC, id DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []model.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// owned loads an alert and checks the actor may act on it.
func (s *AlertStore) owned(ctx context.Context, actor *model.Member, id int64) error {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a == nil {
		return notFoundf("alert not found")
	}
	if actor == nil || (a.MemberID != actor.ID && !actor.IsParent()) {
		return forbiddenf("this alert belongs to someone else")
	}
	return nil
}

func (s *AlertStore) Dismiss(ctx context.Context, actor *model.Member, id int64) error {
	if err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE alerts SET is_dismissed = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("dismiss alert: %w", err)
	}
	return nil
}

// Feedback records a thumbs up (+1) or down (-1) on an alert.
func (s *AlertStore) Feedback(ctx context.Context, actor *model.Member, id int64, value int) (*model.Alert, error) {
	if value != 1 && value != -1 {
		return nil, validationf("feedback must be 1 or -1")
	}
	if err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE alerts SET feedback = ? WHERE id = ?`, value, id); err != nil {
		return nil, fmt.Errorf("record feedback: %w", err)
	}
	return s.GetByID(ctx, id)
}
