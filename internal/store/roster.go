package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/famboard/internal/chore"
	"github.com/dukerupert/famboard/internal/model"
)

type RosterStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewRosterStore(db *sql.DB) *RosterStore {
	return &RosterStore{db: db, now: time.Now}
}

const rosterCols = `r.id, r.name, r.created_by, r.created_at, r.updated_at`

func scanRoster(s scanner) (*model.Roster, error) {
	var r model.Roster
	var createdBy sql.NullInt64
	if err := s.Scan(&r.ID, &r.Name, &createdBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.CreatedBy = int64Ptr(createdBy)
	r.Chores = []model.Chore{}
	r.Assignments = []model.Assignment{}
	return &r, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// loadRosters returns the matching rosters with their chores and assignments
// embedded. It issues three queries regardless of how many rosters match.
func loadRosters(ctx context.Context, q dbtx, where string, args ...any) ([]model.Roster, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+rosterCols+` FROM rosters r `+where+` ORDER BY r.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list rosters: %w", err)
	}
	rosters := []model.Roster{}
	for rows.Next() {
		r, err := scanRoster(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan roster: %w", err)
		}
		rosters = append(rosters, *r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rosters: %w", err)
	}
	if len(rosters) == 0 {
		return rosters, nil
	}

	index := make(map[int64]int, len(rosters))
	ids := make([]any, len(rosters))
	for i, r := range rosters {
		index[r.ID] = i
		ids[i] = r.ID
	}
	in := `(` + placeholders(len(ids)) + `)`

	chores, err := listChores(ctx, q, `WHERE roster_id IN `+in, ids...)
	if err != nil {
		return nil, err
	}
	for _, c := range chores {
		i := index[*c.RosterID]
		rosters[i].Chores = append(rosters[i].Chores, c)
	}

	arows, err := q.QueryContext(ctx,
		`SELECT a.id, a.roster_id, a.member_id, m.name, m.color
		 FROM roster_assignments a JOIN members m ON m.id = a.member_id
		 WHERE a.roster_id IN `+in+` ORDER BY a.id`, ids...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var a model.Assignment
		var color sql.NullString
		if err := arows.Scan(&a.ID, &a.RosterID, &a.MemberID, &a.MemberName, &color); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.Color = stringPtr(color)
		i := index[a.RosterID]
		rosters[i].Assignments = append(rosters[i].Assignments, a)
	}
	return rosters, arows.Err()
}

func getRoster(ctx context.Context, q dbtx, id int64) (*model.Roster, error) {
	rosters, err := loadRosters(ctx, q, `WHERE r.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rosters) == 0 {
		return nil, nil
	}
	return &rosters[0], nil
}

func rosterExists(ctx context.Context, q dbtx, id int64) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rosters WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check roster: %w", err)
	}
	return n > 0, nil
}

func (s *RosterStore) Create(ctx context.Context, actor *model.Member, name string) (*model.Roster, error) {
	if err := requireParent(actor, "manage rosters"); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("roster name is required")
	}
	result, err := s.db.ExecContext(ctx, `INSERT INTO rosters (name, created_by) VALUES (?, ?)`, name, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("insert roster: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RosterStore) List(ctx context.Context) ([]model.Roster, error) {
	return loadRosters(ctx, s.db, "")
}

func (s *RosterStore) GetByID(ctx context.Context, id int64) (*model.Roster, error) {
	return getRoster(ctx, s.db, id)
}

func (s *RosterStore) Rename(ctx context.Context, actor *model.Member, id int64, name string) (*model.Roster, error) {
	if err := requireParent(actor, "manage rosters"); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("roster name is required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE rosters SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, name, id)
	if err != nil {
		return nil, fmt.Errorf("rename roster: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFoundf("roster not found")
	}
	return s.GetByID(ctx, id)
}

// Delete removes a roster and its assignments. Its chores are kept and return
// to the unassigned pool.
func (s *RosterStore) Delete(ctx context.Context, actor *model.Member, id int64) error {
	if err := requireParent(actor, "manage rosters"); err != nil {
		return err
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		ok, err := rosterExists(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return notFoundf("roster not found")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE chores SET roster_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE roster_id = ?`, id); err != nil {
			return fmt.Errorf("orphan roster chores: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM roster_assignments WHERE roster_id = ?`, id); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rosters WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete roster: %w", err)
		}
		return nil
	})
}

// AssignMembers replaces the roster's assignment set with memberIDs.
// Duplicate ids collapse to a single assignment.
func (s *RosterStore) AssignMembers(ctx context.Context, actor *model.Member, rosterID int64, memberIDs []int64) (*model.Roster, error) {
	if err := requireParent(actor, "manage rosters"); err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(memberIDs))
	unique := make([]int64, 0, len(memberIDs))
	for _, id := range memberIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		ok, err := rosterExists(ctx, tx, rosterID)
		if err != nil {
			return err
		}
		if !ok {
			return notFoundf("roster not found")
		}
		for _, id := range unique {
			m, err := getMember(ctx, tx, id)
			if err != nil {
				return err
			}
			if m == nil {
				return notFoundf("family member %d not found", id)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM roster_assignments WHERE roster_id = ?`, rosterID); err != nil {
			return fmt.Errorf("clear assignments: %w", err)
		}
		for _, id := range unique {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO roster_assignments (roster_id, member_id) VALUES (?, ?)`, rosterID, id); err != nil {
				return fmt.Errorf("insert assignment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, rosterID)
}

// UnassignMember removes one assignment. Removing an absent assignment is
// not an error.
func (s *RosterStore) UnassignMember(ctx context.Context, actor *model.Member, rosterID, memberID int64) error {
	if err := requireParent(actor, "manage rosters"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM roster_assignments WHERE roster_id = ? AND member_id = ?`, rosterID, memberID)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// AddChore creates a standard chore directly inside a roster.
func (s *RosterStore) AddChore(ctx context.Context, actor *model.Member, rosterID int64, in ChoreInput) (*model.Chore, error) {
	if err := requireParent(actor, "manage rosters"); err != nil {
		return nil, err
	}
	in.IsBonus = false
	in.Personal = false
	in.OwnerID = nil
	in.Source = model.SourceRoster
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var c *model.Chore
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		ok, err := rosterExists(ctx, tx, rosterID)
		if err != nil {
			return err
		}
		if !ok {
			return notFoundf("roster not found")
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO chores (title, description, frequency, points, source, roster_id) VALUES (?, ?, ?, ?, ?, ?)`,
			in.Title, in.Description, in.Frequency, in.Points, in.Source, rosterID,
		)
		if err != nil {
			return fmt.Errorf("insert roster chore: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		c, err = getChore(ctx, tx, id)
		return err
	})
	return c, err
}

// MoveChoreToRoster moves a standard chore into a roster, taking it out of
// the pool or whichever roster held it before. Moving a chore into the roster
// it is already in changes nothing.
func (s *RosterStore) MoveChoreToRoster(ctx context.Context, actor *model.Member, choreID, rosterID int64) (*model.Chore, error) {
	if err := requireParent(actor, "manage rosters"); err != nil {
		return nil, err
	}

	var c *model.Chore
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		c, err = getChore(ctx, tx, choreID)
		if err != nil {
			return err
		}
		if c == nil {
			return notFoundf("chore not found")
		}
		ok, err := rosterExists(ctx, tx, rosterID)
		if err != nil {
			return err
		}
		if !ok {
			return notFoundf("roster not found")
		}
		if c.IsBonus {
			return conflictf("bonus chores cannot be assigned to a roster")
		}
		if c.Source.ImportManaged() {
			return forbiddenf("imported chores cannot be reassigned")
		}
		if c.RosterID != nil && *c.RosterID == rosterID {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE chores SET roster_id = ?, personal = 0, owner_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			rosterID, choreID); err != nil {
			return fmt.Errorf("move chore: %w", err)
		}
		c, err = getChore(ctx, tx, choreID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// MoveChoreToPool clears a chore's roster. Chores already in the pool are
// returned unchanged.
func (s *RosterStore) MoveChoreToPool(ctx context.Context, actor *model.Member, choreID int64) (*model.Chore, error) {
	return s.removeChore(ctx, actor, choreID, nil)
}

// RemoveChoreFromRoster returns a chore to the pool, but only if it is
// currently in rosterID or already in the pool.
func (s *RosterStore) RemoveChoreFromRoster(ctx context.Context, actor *model.Member, rosterID, choreID int64) (*model.Chore, error) {
	return s.removeChore(ctx, actor, choreID, &rosterID)
}

func (s *RosterStore) removeChore(ctx context.Context, actor *model.Member, choreID int64, from *int64) (*model.Chore, error) {
	if err := requireParent(actor, "manage rosters"); err != nil {
		return nil, err
	}

	var c *model.Chore
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if from != nil {
			ok, err := rosterExists(ctx, tx, *from)
			if err != nil {
				return err
			}
			if !ok {
				return notFoundf("roster not found")
			}
		}
		var err error
		c, err = getChore(ctx, tx, choreID)
		if err != nil {
			return err
		}
		if c == nil {
			return notFoundf("chore not found")
		}
		if c.RosterID == nil {
			return nil
		}
		if from != nil && *c.RosterID != *from {
			return notFoundf("chore not found in this roster")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE chores SET roster_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, choreID); err != nil {
			return fmt.Errorf("move chore to pool: %w", err)
		}
		c, err = getChore(ctx, tx, choreID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// EnsureMemberRosters gives every child without any roster assignment a
// roster of their own. Children already assigned anywhere, even to a shared
// roster, are left alone, so repeated calls create nothing new.
func (s *RosterStore) EnsureMemberRosters(ctx context.Context) ([]model.Roster, error) {
	var created []int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		orphans, err := listMembers(ctx, tx,
			`WHERE role = ? AND id NOT IN (SELECT member_id FROM roster_assignments)`, model.RoleChild)
		if err != nil {
			return err
		}
		for _, m := range orphans {
			res, err := tx.ExecContext(ctx, `INSERT INTO rosters (name) VALUES (?)`, m.Name)
			if err != nil {
				return fmt.Errorf("insert roster for %s: %w", m.Name, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("last insert id: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO roster_assignments (roster_id, member_id) VALUES (?, ?)`, id, m.ID); err != nil {
				return fmt.Errorf("assign roster to %s: %w", m.Name, err)
			}
			created = append(created, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := []model.Roster{}
	for _, id := range created {
		r, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// MyChores is the chore view of a single member.
func (s *RosterStore) MyChores(ctx context.Context, memberID int64) (chore.View, error) {
	m, err := getMember(ctx, s.db, memberID)
	if err != nil {
		return chore.View{}, err
	}
	if m == nil {
		return chore.View{}, notFoundf("family member not found")
	}
	return memberView(ctx, s.db, memberID, s.now())
}

// FamilyOverview computes every child's view independently. Parents never
// appear in it.
func (s *RosterStore) FamilyOverview(ctx context.Context, actor *model.Member) ([]chore.ChildOverview, error) {
	if err := requireParent(actor, "view the family overview"); err != nil {
		return nil, err
	}
	now := s.now()

	children, err := listMembers(ctx, s.db, `WHERE role = ?`, model.RoleChild)
	if err != nil {
		return nil, err
	}
	rosters, err := loadRosters(ctx, s.db, "")
	if err != nil {
		return nil, err
	}
	loose, err := listChores(ctx, s.db, `WHERE roster_id IS NULL`)
	if err != nil {
		return nil, err
	}
	comps, err := loadCompletions(ctx, s.db, now)
	if err != nil {
		return nil, err
	}

	out := make([]chore.ChildOverview, 0, len(children))
	for _, child := range children {
		var mine []model.Roster
		for _, r := range rosters {
			if !assigned(r, child.ID) {
				continue
			}
			rc := r
			rc.Chores = append([]model.Chore(nil), r.Chores...)
			chore.ResolveCompleted(rc.Chores, comps, child.ID, now)
			mine = append(mine, rc)
		}
		lc := append([]model.Chore(nil), loose...)
		chore.ResolveCompleted(lc, comps, child.ID, now)
		out = append(out, chore.Overview(child, chore.BuildView(child.ID, mine, lc)))
	}
	return out, nil
}

func assigned(r model.Roster, memberID int64) bool {
	for _, a := range r.Assignments {
		if a.MemberID == memberID {
			return true
		}
	}
	return false
}
