package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/famboard/internal/model"
)

// EventStore holds calendar events pushed in by the calendar sync provider.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// EventInput is one event as returned by the calendar provider.
type EventInput struct {
	ExternalID *string
	Summary    string
	StartTime  time.Time
	EndTime    time.Time
	Location   string
	MemberID   *int64
}

const eventCols = `e.id, e.external_id, e.summary, e.start_time, e.end_time, e.location, e.member_id, COALESCE(m.name, '')`

func scanEvent(s scanner) (*model.Event, error) {
	var e model.Event
	var externalID sql.NullString
	var memberID sql.NullInt64
	if err := s.Scan(&e.ID, &externalID, &e.Summary, &e.StartTime, &e.EndTime, &e.Location, &memberID, &e.MemberName); err != nil {
		return nil, err
	}
	e.ExternalID = stringPtr(externalID)
	e.MemberID = int64Ptr(memberID)
	return &e, nil
}

// Upsert stores an event, replacing any earlier copy with the same
// external id.
func (s *EventStore) Upsert(ctx context.Context, in EventInput) (*model.Event, error) {
	in.Summary = strings.TrimSpace(in.Summary)
	if in.Summary == "" {
		return nil, validationf("summary is required")
	}
	if in.EndTime.Before(in.StartTime) {
		return nil, validationf("end_time must not be before start_time")
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO events (external_id, summary, start_time, end_time, location, member_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (external_id) DO UPDATE SET
		   summary = excluded.summary, start_time = excluded.start_time, end_time = excluded.end_time,
		   location = excluded.location, member_id = excluded.member_id
		 RETURNING id`,
		nullString(in.ExternalID), in.Summary, in.StartTime.UTC(), in.EndTime.UTC(), in.Location, nullInt64(in.MemberID),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("upsert event: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *EventStore) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM events e LEFT JOIN members m ON m.id = e.member_id WHERE e.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListUpcoming returns events that have not ended by from, soonest first.
func (s *EventStore) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventCols+` FROM events e LEFT JOIN members m ON m.id = e.member_id
		 WHERE e.end_time >= ? ORDER BY e.start_time ASC LIMIT ?`,
		from.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
