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

type RewardStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db, now: time.Now}
}

func scanReward(s scanner) (*model.Reward, error) {
	var r model.Reward
	var redeemedBy sql.NullInt64
	var redeemedAt sql.NullTime

	err := s.Scan(&r.ID, &r.Title, &r.Description, &r.Cost, &r.IsRedeemed, &redeemedBy, &redeemedAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.RedeemedBy = int64Ptr(redeemedBy)
	r.RedeemedAt = timePtr(redeemedAt)
	return &r, nil
}

const rewardCols = `id, title, description, cost, is_redeemed, redeemed_by, redeemed_at, created_at`

func getReward(ctx context.Context, q dbtx, id int64) (*model.Reward, error) {
	r, err := scanReward(q.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) Create(ctx context.Context, actor *model.Member, title, description string, cost float64) (*model.Reward, error) {
	if err := requireParent(actor, "create rewards"); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationf("title is required")
	}
	if cost < 0 {
		return nil, validationf("cost must be >= 0")
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO rewards (title, description, cost) VALUES (?, ?, ?)`,
		title, description, cost,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RewardStore) GetByID(ctx context.Context, id int64) (*model.Reward, error) {
	return getReward(ctx, s.db, id)
}

// List returns all rewards, unredeemed first, then by title.
func (s *RewardStore) List(ctx context.Context) ([]model.Reward, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+rewardCols+` FROM rewards ORDER BY is_redeemed ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	rewards := []model.Reward{}
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Delete(ctx context.Context, actor *model.Member, id int64) error {
	if err := requireParent(actor, "delete rewards"); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFoundf("reward not found")
	}
	return nil
}

// Redeem spends the actor's balance on a reward. A reward can be redeemed
// once.
func (s *RewardStore) Redeem(ctx context.Context, actor *model.Member, id int64) (*model.Reward, error) {
	if actor == nil {
		return nil, forbiddenf("sign in to redeem rewards")
	}

	var r *model.Reward
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		r, err = getReward(ctx, tx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return notFoundf("reward not found")
		}
		if r.IsRedeemed {
			return conflictf("reward already redeemed")
		}
		st, err := standing(ctx, tx, actor.ID)
		if err != nil {
			return err
		}
		if st.Balance < r.Cost {
			return conflictf("not enough balance: have %.2f, need %.2f", st.Balance, r.Cost)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE rewards SET is_redeemed = 1, redeemed_by = ?, redeemed_at = ? WHERE id = ?`,
			actor.ID, s.now().UTC(), id); err != nil {
			return fmt.Errorf("redeem reward: %w", err)
		}
		r, err = getReward(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// League ranks every member by completed chores. Nothing is cached.
func (s *RewardStore) League(ctx context.Context) ([]model.LeagueEntry, error) {
	members, err := listMembers(ctx, s.db, "")
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT cc.member_id, c.is_bonus, cc.points_earned, cc.money_earned
		 FROM chore_completions cc JOIN chores c ON c.id = cc.chore_id`)
	if err != nil {
		return nil, fmt.Errorf("query tallies: %w", err)
	}
	var tallies []chore.Tally
	for rows.Next() {
		var t chore.Tally
		if err := rows.Scan(&t.MemberID, &t.IsBonus, &t.PointsEarned, &t.MoneyEarned); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		tallies = append(tallies, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query tallies: %w", err)
	}

	spent := map[int64]float64{}
	srows, err := s.db.QueryContext(ctx,
		`SELECT redeemed_by, SUM(cost) FROM rewards WHERE is_redeemed = 1 AND redeemed_by IS NOT NULL GROUP BY redeemed_by`)
	if err != nil {
		return nil, fmt.Errorf("query spent: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var id int64
		var total float64
		if err := srows.Scan(&id, &total); err != nil {
			return nil, fmt.Errorf("scan spent: %w", err)
		}
		spent[id] = total
	}
	if err := srows.Err(); err != nil {
		return nil, fmt.Errorf("query spent: %w", err)
	}

	return chore.League(members, tallies, spent), nil
}
