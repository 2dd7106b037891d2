package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/famboard/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

const memberCols = `id, name, color, role, pin IS NOT NULL, sort_order, created_at, updated_at`

func scanMember(s scanner) (*model.Member, error) {
	var m model.Member
	var color sql.NullString
	if err := s.Scan(&m.ID, &m.Name, &color, &m.Role, &m.HasPIN, &m.SortOrder, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Color = stringPtr(color)
	return &m, nil
}

func listMembers(ctx context.Context, q dbtx, where string, args ...any) ([]model.Member, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+memberCols+` FROM members `+where+` ORDER BY sort_order, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func getMember(ctx context.Context, q dbtx, id int64) (*model.Member, error) {
	m, err := scanMember(q.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) Create(ctx context.Context, name string, color *string, role model.Role) (*model.Member, error) {
	if name == "" {
		return nil, validationf("name is required")
	}
	if !role.Valid() {
		return nil, validationf("role must be parent or child")
	}

	var maxOrder int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(sort_order), -1) FROM members").Scan(&maxOrder); err != nil {
		return nil, fmt.Errorf("query max sort_order: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO members (name, color, role, sort_order) VALUES (?, ?, ?, ?)",
		name, nullString(color), role, maxOrder+1,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *MemberStore) List(ctx context.Context) ([]model.Member, error) {
	return listMembers(ctx, s.db, "")
}

// ListChildren returns the members that rosters are handed to.
func (s *MemberStore) ListChildren(ctx context.Context) ([]model.Member, error) {
	return listMembers(ctx, s.db, "WHERE role = ?", model.RoleChild)
}

func (s *MemberStore) GetByID(ctx context.Context, id int64) (*model.Member, error) {
	return getMember(ctx, s.db, id)
}

// Update changes a member's mutable fields. Identity never changes.
func (s *MemberStore) Update(ctx context.Context, id int64, name string, color *string, role model.Role) (*model.Member, error) {
	if name == "" {
		return nil, validationf("name is required")
	}
	if !role.Valid() {
		return nil, validationf("role must be parent or child")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE members SET name = ?, color = ?, role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		name, nullString(color), role, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFoundf("family member not found")
	}
	return s.GetByID(ctx, id)
}

func (s *MemberStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM members WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

func (s *MemberStore) UpdateSortOrder(ctx context.Context, ids []int64) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "UPDATE members SET sort_order = ? WHERE id = ?")
		if err != nil {
			return fmt.Errorf("prepare stmt: %w", err)
		}
		defer stmt.Close()

		for i, id := range ids {
			if _, err := stmt.ExecContext(ctx, i, id); err != nil {
				return fmt.Errorf("update sort order for id %d: %w", id, err)
			}
		}
		return nil
	})
}

func (s *MemberStore) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM members WHERE name = ? AND id != ?",
		name, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check name exists: %w", err)
	}
	return count > 0, nil
}

// SetPIN stores a bcrypt hash of a 4-digit kiosk PIN.
func (s *MemberStore) SetPIN(ctx context.Context, id int64, pin string) error {
	if len(pin) != 4 || !isDigits(pin) {
		return validationf("PIN must be exactly 4 digits")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE members SET pin = ? WHERE id = ?", string(hash), id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFoundf("family member not found")
	}
	return nil
}

func (s *MemberStore) ClearPIN(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE members SET pin = NULL WHERE id = ?", id); err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

// VerifyPIN reports whether pin matches. Members without a PIN always pass.
func (s *MemberStore) VerifyPIN(ctx context.Context, id int64, pin string) (bool, error) {
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT pin FROM members WHERE id = ?", id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, notFoundf("family member not found")
	}
	if err != nil {
		return false, fmt.Errorf("query pin: %w", err)
	}
	if !hash.Valid {
		return true, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(pin)) == nil, nil
}

// Standing derives a member's points and money balance from completions and
// redemptions.
func (s *MemberStore) Standing(ctx context.Context, id int64) (*model.Standing, error) {
	return standing(ctx, s.db, id)
}

func standing(ctx context.Context, q dbtx, id int64) (*model.Standing, error) {
	st := model.Standing{MemberID: id}
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points_earned), 0), COALESCE(SUM(money_earned), 0) FROM chore_completions WHERE member_id = ?`,
		id,
	).Scan(&st.Points, &st.Earned)
	if err != nil {
		return nil, fmt.Errorf("sum earnings: %w", err)
	}
	err = q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM rewards WHERE redeemed_by = ? AND is_redeemed = 1`,
		id,
	).Scan(&st.Spent)
	if err != nil {
		return nil, fmt.Errorf("sum spent: %w", err)
	}
	st.Balance = st.Earned - st.Spent
	return &st, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
