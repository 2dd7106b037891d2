package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/famboard/internal/chore"
	"github.com/dukerupert/famboard/internal/model"
)

type ChoreStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db, now: time.Now}
}

// ChoreInput carries the editable fields of a chore.
type ChoreInput struct {
	Title       string
	Description string
	Frequency   model.Frequency
	Points      int
	RewardMoney float64
	IsBonus     bool
	Source      model.Source
	SourceID    *string
	DueDate     *time.Time
	Personal    bool
	OwnerID     *int64
}

func (in *ChoreInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return validationf("title is required")
	}
	if in.Frequency == "" {
		in.Frequency = model.FrequencyDaily
	}
	if !in.Frequency.Valid() {
		return validationf("frequency must be daily, weekly, monthly or once")
	}
	if in.Source == "" {
		in.Source = model.SourceManual
	}
	if !in.Source.Valid() {
		return validationf("unknown chore source %q", in.Source)
	}
	if in.Points < 0 {
		return validationf("points must be >= 0")
	}
	if in.RewardMoney < 0 {
		return validationf("reward_money must be >= 0")
	}
	if in.Personal && in.OwnerID == nil {
		return validationf("personal chores need an owner")
	}
	return nil
}

const choreCols = `id, title, description, frequency, points, reward_money, is_bonus, source, source_id, due_date, roster_id, personal, owner_id, created_at, updated_at`

func scanChore(s scanner) (*model.Chore, error) {
	var c model.Chore
	var sourceID sql.NullString
	var dueDate sql.NullTime
	var rosterID, ownerID sql.NullInt64

	err := s.Scan(
		&c.ID, &c.Title, &c.Description, &c.Frequency, &c.Points, &c.RewardMoney,
		&c.IsBonus, &c.Source, &sourceID, &dueDate, &rosterID, &c.Personal, &ownerID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.SourceID = stringPtr(sourceID)
	c.DueDate = timePtr(dueDate)
	c.RosterID = int64Ptr(rosterID)
	c.OwnerID = int64Ptr(ownerID)
	return &c, nil
}

func listChores(ctx context.Context, q dbtx, where string, args ...any) ([]model.Chore, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+choreCols+` FROM chores `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	chores := []model.Chore{}
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func getChore(ctx context.Context, q dbtx, id int64) (*model.Chore, error) {
	c, err := scanChore(q.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

const completionCols = `cc.id, cc.chore_id, cc.member_id, cc.points_earned, cc.money_earned, cc.completed_at`

// loadCompletions returns every completion that can still count for a
// chore's current period.
func loadCompletions(ctx context.Context, q dbtx, now time.Time) ([]model.ChoreCompletion, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+completionCols+` FROM chore_completions cc
		 JOIN chores c ON c.id = cc.chore_id
		 WHERE cc.completed_at >= ? OR c.frequency = ?
		 ORDER BY cc.completed_at DESC`,
		chore.EarliestPeriodStart(now).UTC(), model.FrequencyOnce,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []model.ChoreCompletion
	for rows.Next() {
		var c model.ChoreCompletion
		if err := rows.Scan(&c.ID, &c.ChoreID, &c.MemberID, &c.PointsEarned, &c.MoneyEarned, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// memberView derives a member's chore view from raw rows. Nothing derived
// is cached; every call recomputes from the tables.
func memberView(ctx context.Context, q dbtx, memberID int64, now time.Time) (chore.View, error) {
	rosters, err := loadRosters(ctx, q,
		`WHERE r.id IN (SELECT roster_id FROM roster_assignments WHERE member_id = ?)`, memberID)
	if err != nil {
		return chore.View{}, err
	}
	loose, err := listChores(ctx, q, `WHERE roster_id IS NULL`)
	if err != nil {
		return chore.View{}, err
	}
	comps, err := loadCompletions(ctx, q, now)
	if err != nil {
		return chore.View{}, err
	}

	for i := range rosters {
		chore.ResolveCompleted(rosters[i].Chores, comps, memberID, now)
	}
	chore.ResolveCompleted(loose, comps, memberID, now)
	return chore.BuildView(memberID, rosters, loose), nil
}

func requireParent(actor *model.Member, action string) error {
	if !actor.IsParent() {
		return forbiddenf("only parents can %s", action)
	}
	return nil
}

func (s *ChoreStore) insert(ctx context.Context, q dbtx, in ChoreInput) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO chores (title, description, frequency, points, reward_money, is_bonus, source, source_id, due_date, personal, owner_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Title, in.Description, in.Frequency, in.Points, in.RewardMoney, boolInt(in.IsBonus),
		in.Source, nullString(in.SourceID), nullTime(in.DueDate), boolInt(in.Personal), nullInt64(in.OwnerID),
	)
	if err != nil {
		return 0, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Create adds a chore to the unassigned pool.
func (s *ChoreStore) Create(ctx context.Context, actor *model.Member, in ChoreInput) (*model.Chore, error) {
	if err := requireParent(actor, "create chores"); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	id, err := s.insert(ctx, s.db, in)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Import creates or refreshes an importer-owned chore keyed by SourceID.
// Completion state is untouched when an existing chore is refreshed.
func (s *ChoreStore) Import(ctx context.Context, in ChoreInput) (*model.Chore, bool, error) {
	if in.SourceID == nil || *in.SourceID == "" {
		return nil, false, validationf("imported chores need a source_id")
	}
	if err := in.normalize(); err != nil {
		return nil, false, err
	}

	var id int64
	created := false
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT id FROM chores WHERE source_id = ?`, *in.SourceID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			created = true
			id, err = s.insert(ctx, tx, in)
			return err
		}
		if err != nil {
			return fmt.Errorf("find imported chore: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE chores SET title = ?, description = ?, due_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			in.Title, in.Description, nullTime(in.DueDate), id,
		)
		if err != nil {
			return fmt.Errorf("refresh imported chore: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	c, err := s.GetByID(ctx, id)
	return c, created, err
}

// GetByID returns the chore with completion resolved for anybody, or nil.
func (s *ChoreStore) GetByID(ctx context.Context, id int64) (*model.Chore, error) {
	c, err := getChore(ctx, s.db, id)
	if err != nil || c == nil {
		return c, err
	}
	return s.resolveOne(ctx, s.db, *c, 0)
}

func (s *ChoreStore) resolveOne(ctx context.Context, q dbtx, c model.Chore, memberID int64) (*model.Chore, error) {
	now := s.now()
	comps, err := loadCompletions(ctx, q, now)
	if err != nil {
		return nil, err
	}
	one := []model.Chore{c}
	chore.ResolveCompleted(one, comps, memberID, now)
	return &one[0], nil
}

// List returns every chore the viewer may see. Children see completion of
// roster chores from their own perspective; parents see it for anybody.
func (s *ChoreStore) List(ctx context.Context, viewer *model.Member) ([]model.Chore, error) {
	var viewerID int64
	if viewer != nil {
		viewerID = viewer.ID
	}
	chores, err := listChores(ctx, s.db, `WHERE personal = 0 OR owner_id = ?`, viewerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	comps, err := loadCompletions(ctx, s.db, now)
	if err != nil {
		return nil, err
	}
	resolveFor := viewerID
	if viewer.IsParent() {
		resolveFor = 0
	}
	chore.ResolveCompleted(chores, comps, resolveFor, now)
	return chores, nil
}

// Update edits a manually managed chore.
func (s *ChoreStore) Update(ctx context.Context, actor *model.Member, id int64, in ChoreInput) (*model.Chore, error) {
	if err := requireParent(actor, "edit chores"); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		existing, err := getChore(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return notFoundf("chore not found")
		}
		if existing.Source.ImportManaged() {
			return forbiddenf("imported chores cannot be edited")
		}
		if in.IsBonus && existing.RosterID != nil {
			return conflictf("move the chore back to the pool before making it a bonus chore")
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE chores SET title = ?, description = ?, frequency = ?, points = ?, reward_money = ?, is_bonus = ?,
			 due_date = ?, personal = ?, owner_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			in.Title, in.Description, in.Frequency, in.Points, in.RewardMoney, boolInt(in.IsBonus),
			nullTime(in.DueDate), boolInt(in.Personal), nullInt64(in.OwnerID), id,
		)
		if err != nil {
			return fmt.Errorf("update chore: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete removes a chore. Importer-owned chores can never be deleted, not
// even by a parent.
func (s *ChoreStore) Delete(ctx context.Context, actor *model.Member, id int64) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		existing, err := getChore(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return notFoundf("chore not found")
		}
		if existing.Source.ImportManaged() {
			return forbiddenf("imported chores cannot be deleted")
		}
		if err := requireParent(actor, "delete chores"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chores WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete chore: %w", err)
		}
		return nil
	})
}

// authorizeCompletion checks that actor may toggle completion of c on behalf
// of member.
func authorizeCompletion(ctx context.Context, q dbtx, actor *model.Member, member *model.Member, c *model.Chore) error {
	if actor == nil {
		return forbiddenf("sign in to complete chores")
	}
	if actor.ID != member.ID && !actor.IsParent() {
		return forbiddenf("you can only complete your own chores")
	}
	if c.Personal && (c.OwnerID == nil || *c.OwnerID != member.ID) {
		return forbiddenf("this chore belongs to someone else")
	}
	if c.RosterID != nil {
		var n int
		err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM roster_assignments WHERE roster_id = ? AND member_id = ?`,
			*c.RosterID, member.ID,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("check assignment: %w", err)
		}
		if n == 0 {
			return forbiddenf("this chore is not on one of your rosters")
		}
	}
	return nil
}

// periodCompletions returns the completions of c that count for the current
// period from memberID's perspective.
func periodCompletions(ctx context.Context, q dbtx, c *model.Chore, memberID int64, now time.Time) ([]int64, error) {
	since := chore.PeriodStart(c.Frequency, now).UTC()
	query := `SELECT id FROM chore_completions WHERE chore_id = ? AND completed_at >= ?`
	args := []any{c.ID, since}
	if c.RosterID != nil {
		query += ` AND member_id = ?`
		args = append(args, memberID)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query period completions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan completion id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Complete records memberID completing a chore for its current period. Bonus
// chores are refused until every standard chore the member can see is done.
func (s *ChoreStore) Complete(ctx context.Context, actor *model.Member, choreID, memberID int64) (*model.Chore, error) {
	now := s.now()
	var result *model.Chore

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := getChore(ctx, tx, choreID)
		if err != nil {
			return err
		}
		if c == nil {
			return notFoundf("chore not found")
		}
		member, err := getMember(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return notFoundf("family member not found")
		}
		if err := authorizeCompletion(ctx, tx, actor, member, c); err != nil {
			return err
		}

		if c.IsBonus {
			view, err := memberView(ctx, tx, member.ID, now)
			if err != nil {
				return err
			}
			if !view.BonusUnlocked {
				return forbiddenf("complete all your standard chores first")
			}
		}

		existing, err := periodCompletions(ctx, tx, c, member.ID, now)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return conflictf("chore already completed")
		}

		points, money := c.Points, 0.0
		if c.IsBonus {
			points, money = 0, c.RewardMoney
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chore_completions (chore_id, member_id, points_earned, money_earned, completed_at) VALUES (?, ?, ?, ?, ?)`,
			c.ID, member.ID, points, money, now.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert completion: %w", err)
		}

		result, err = s.resolveOne(ctx, tx, *c, member.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Uncomplete removes the current-period completion of a chore by memberID.
func (s *ChoreStore) Uncomplete(ctx context.Context, actor *model.Member, choreID, memberID int64) (*model.Chore, error) {
	now := s.now()
	var result *model.Chore

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := getChore(ctx, tx, choreID)
		if err != nil {
			return err
		}
		if c == nil {
			return notFoundf("chore not found")
		}
		member, err := getMember(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return notFoundf("family member not found")
		}
		if err := authorizeCompletion(ctx, tx, actor, member, c); err != nil {
			return err
		}

		ids, err := periodCompletions(ctx, tx, c, member.ID, now)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return conflictf("chore is not completed")
		}
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM chore_completions WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete completion: %w", err)
			}
		}

		result, err = s.resolveOne(ctx, tx, *c, member.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListCompletionsByMember returns a member's completion history, newest first.
func (s *ChoreStore) ListCompletionsByMember(ctx context.Context, memberID int64) ([]model.ChoreCompletion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+completionCols+` FROM chore_completions cc WHERE cc.member_id = ? ORDER BY cc.completed_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []model.ChoreCompletion
	for rows.Next() {
		var c model.ChoreCompletion
		if err := rows.Scan(&c.ID, &c.ChoreID, &c.MemberID, &c.PointsEarned, &c.MoneyEarned, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
