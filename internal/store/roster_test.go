package store

import (
	"context"
	"testing"

	"github.com/dukerupert/famboard/internal/model"
)

func TestCreateRosterRequiresName(t *testing.T) {
	ts := setupTestStores(t)
	mum := ts.member(t, "Mum", model.RoleParent)

	_, err := ts.rosters.Create(context.Background(), mum, "")
	wantKind(t, err, ErrValidation)
}

func TestCreateRosterStartsEmpty(t *testing.T) {
	ts := setupTestStores(t)
	mum := ts.member(t, "Mum", model.RoleParent)

	r := ts.roster(t, mum, "Weekend")
	if len(r.Chores) != 0 || len(r.Assignments) != 0 {
		t.Errorf("new roster = %+v, want no chores and no assignments", r)
	}
	if r.CreatedBy == nil || *r.CreatedBy != mum.ID {
		t.Errorf("created_by = %v, want %d", r.CreatedBy, mum.ID)
	}
}

func TestRosterMutationsRequireParent(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	kid := ts.member(t, "Ada", model.RoleChild)
	r := ts.roster(t, mum, "Ada")

	_, err := ts.rosters.Create(ctx, kid, "Mine")
	wantKind(t, err, ErrForbidden)
	wantKind(t, ts.rosters.Delete(ctx, kid, r.ID), ErrForbidden)
	_, err = ts.rosters.AssignMembers(ctx, kid, r.ID, []int64{kid.ID})
	wantKind(t, err, ErrForbidden)
}

func TestDeleteRosterNotFound(t *testing.T) {
	ts := setupTestStores(t)
	mum := ts.member(t, "Mum", model.RoleParent)

	wantKind(t, ts.rosters.Delete(context.Background(), mum, 42), ErrNotFound)
}

func TestDeleteRosterOrphansChoresToPool(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	ada := ts.member(t, "Ada", model.RoleChild)
	bo := ts.member(t, "Bo", model.RoleChild)
	r := ts.roster(t, mum, "Kids", ada.ID, bo.ID)

	var ids []int64
	for _, title := range []string{"Bins", "Beds", "Dishes"} {
		c := ts.chore(t, mum, ChoreInput{Title: title})
		ts.move(t, mum, c.ID, r.ID)
		ids = append(ids, c.ID)
	}

	if err := ts.rosters.Delete(ctx, mum, r.ID); err != nil {
		t.Fatalf("delete roster: %v", err)
	}

	got, err := ts.rosters.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("get roster: %v", err)
	}
	if got != nil {
		t.Fatal("roster should be gone")
	}

	for _, id := range ids {
		c, err := ts.chores.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("get chore: %v", err)
		}
		if c == nil {
			t.Fatalf("chore %d was deleted, want it orphaned to the pool", id)
		}
		if !c.InPool() {
			t.Errorf("chore %d roster_id = %v, want pool", id, c.RosterID)
		}
	}

	for _, m := range []*model.Member{ada, bo} {
		v, err := ts.rosters.MyChores(ctx, m.ID)
		if err != nil {
			t.Fatalf("my chores: %v", err)
		}
		if len(v.Rosters) != 0 {
			t.Errorf("%s still has %d rosters", m.Name, len(v.Rosters))
		}
	}
}

func TestAssignMembersReplacesSet(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	ada := ts.member(t, "Ada", model.RoleChild)
	bo := ts.member(t, "Bo", model.RoleChild)
	r := ts.roster(t, mum, "Kids")

	for i := 0; i < 2; i++ {
		got, err := ts.rosters.AssignMembers(ctx, mum, r.ID, []int64{ada.ID, bo.ID, ada.ID})
		if err != nil {
			t.Fatalf("assign #%d: %v", i, err)
		}
		if len(got.Assignments) != 2 {
			t.Fatalf("assign #%d: %d assignments, want 2", i, len(got.Assignments))
		}
	}

	got, err := ts.rosters.AssignMembers(ctx, mum, r.ID, []int64{bo.ID})
	if err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if len(got.Assignments) != 1 || got.Assignments[0].MemberID != bo.ID {
		t.Errorf("assignments = %+v, want only Bo", got.Assignments)
	}
	if got.Assignments[0].MemberName != "Bo" {
		t.Errorf("member name = %q, want Bo", got.Assignments[0].MemberName)
	}
}

func TestAssignMembersNotFound(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	ada := ts.member(t, "Ada", model.RoleChild)
	r := ts.roster(t, mum, "Kids", ada.ID)

	_, err := ts.rosters.AssignMembers(ctx, mum, 999, []int64{ada.ID})
	wantKind(t, err, ErrNotFound)

	_, err = ts.rosters.AssignMembers(ctx, mum, r.ID, []int64{999})
	wantKind(t, err, ErrNotFound)

	got, _ := ts.rosters.GetByID(ctx, r.ID)
	if len(got.Assignments) != 1 {
		t.Error("failed assign must leave the existing set untouched")
	}
}

func TestUnassignMemberIsIdempotent(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	ada := ts.member(t, "Ada", model.RoleChild)
	r := ts.roster(t, mum, "Kids", ada.ID)

	for i := 0; i < 2; i++ {
		if err := ts.rosters.UnassignMember(ctx, mum, r.ID, ada.ID); err != nil {
			t.Fatalf("unassign #%d: %v", i, err)
		}
	}
	got, _ := ts.rosters.GetByID(ctx, r.ID)
	if len(got.Assignments) != 0 {
		t.Errorf("assignments = %d, want 0", len(got.Assignments))
	}
}

func TestMoveBonusChoreToRosterConflicts(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	r := ts.roster(t, mum, "Kids")
	b := ts.chore(t, mum, ChoreInput{Title: "Wash car", IsBonus: true, RewardMoney: 3})

	_, err := ts.rosters.MoveChoreToRoster(ctx, mum, b.ID, r.ID)
	wantKind(t, err, ErrConflict)
}

func TestMoveChoreNotFoundLeavesStateUnchanged(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	r := ts.roster(t, mum, "Kids")
	c := ts.chore(t, mum, ChoreInput{Title: "Bins"})

	_, err := ts.rosters.MoveChoreToRoster(ctx, mum, c.ID, 999)
	wantKind(t, err, ErrNotFound)
	_, err = ts.rosters.MoveChoreToRoster(ctx, mum, 999, r.ID)
	wantKind(t, err, ErrNotFound)

	got, _ := ts.chores.GetByID(ctx, c.ID)
	if !got.InPool() {
		t.Error("chore should still be in the pool")
	}
}

func TestMoveChoreToPoolIsIdempotent(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	r := ts.roster(t, mum, "Kids")
	c := ts.chore(t, mum, ChoreInput{Title: "Bins"})
	ts.move(t, mum, c.ID, r.ID)

	for i := 0; i < 2; i++ {
		got, err := ts.rosters.MoveChoreToPool(ctx, mum, c.ID)
		if err != nil {
			t.Fatalf("move to pool #%d: %v", i, err)
		}
		if got.RosterID != nil {
			t.Errorf("move to pool #%d: roster_id = %d", i, *got.RosterID)
		}
	}
}

func TestRemoveChoreFromWrongRoster(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	a := ts.roster(t, mum, "A")
	b := ts.roster(t, mum, "B")
	c := ts.chore(t, mum, ChoreInput{Title: "Bins"})
	ts.move(t, mum, c.ID, a.ID)

	_, err := ts.rosters.RemoveChoreFromRoster(ctx, mum, b.ID, c.ID)
	wantKind(t, err, ErrNotFound)

	got, err := ts.rosters.RemoveChoreFromRoster(ctx, mum, a.ID, c.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got.RosterID != nil {
		t.Error("chore should be back in the pool")
	}
}

func TestMoveChoreBetweenChildren(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	ada := ts.member(t, "Ada", model.RoleChild)
	bo := ts.member(t, "Bo", model.RoleChild)
	ra := ts.roster(t, mum, "Ada", ada.ID)
	rb := ts.roster(t, mum, "Bo", bo.ID)

	x := ts.chore(t, mum, ChoreInput{Title: "X"})
	ts.move(t, mum, x.ID, ra.ID)
	ts.move(t, mum, ts.chore(t, mum, ChoreInput{Title: "Y"}).ID, ra.ID)
	ts.move(t, mum, ts.chore(t, mum, ChoreInput{Title: "Z"}).ID, rb.ID)

	total := func(memberID int64) int {
		v, err := ts.rosters.MyChores(ctx, memberID)
		if err != nil {
			t.Fatalf("my chores: %v", err)
		}
		return v.Progress.TotalStandard
	}
	if total(ada.ID) != 2 || total(bo.ID) != 1 {
		t.Fatalf("before: ada=%d bo=%d, want 2 and 1", total(ada.ID), total(bo.ID))
	}

	ts.move(t, mum, x.ID, rb.ID)

	if total(ada.ID) != 1 || total(bo.ID) != 2 {
		t.Errorf("after: ada=%d bo=%d, want 1 and 2", total(ada.ID), total(bo.ID))
	}
}

func TestEnsureMemberRostersExactlyOnce(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	ts.member(t, "Ada", model.RoleChild)
	ts.member(t, "Bo", model.RoleChild)
	cy := ts.member(t, "Cy", model.RoleChild)
	ts.roster(t, mum, "Shared", cy.ID)

	created, err := ts.rosters.EnsureMemberRosters(ctx)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d rosters, want 2 (Ada and Bo)", len(created))
	}
	for _, r := range created {
		if len(r.Assignments) != 1 {
			t.Errorf("roster %q has %d assignments, want 1", r.Name, len(r.Assignments))
			continue
		}
		if r.Name != r.Assignments[0].MemberName {
			t.Errorf("roster %q should be named after %q", r.Name, r.Assignments[0].MemberName)
		}
	}

	again, err := ts.rosters.EnsureMemberRosters(ctx)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second load created %d rosters, want 0", len(again))
	}

	all, _ := ts.rosters.List(ctx)
	if len(all) != 3 {
		t.Errorf("rosters = %d, want 3", len(all))
	}
}

func TestFamilyOverviewIsPerChild(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	ada := ts.member(t, "Ada", model.RoleChild)
	bo := ts.member(t, "Bo", model.RoleChild)
	ra := ts.roster(t, mum, "Ada", ada.ID)
	rb := ts.roster(t, mum, "Bo", bo.ID)
	ca := ts.chore(t, mum, ChoreInput{Title: "Bins"})
	cb := ts.chore(t, mum, ChoreInput{Title: "Beds"})
	ts.move(t, mum, ca.ID, ra.ID)
	ts.move(t, mum, cb.ID, rb.ID)

	if _, err := ts.chores.Complete(ctx, ada, ca.ID, ada.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err := ts.rosters.FamilyOverview(ctx, ada)
	wantKind(t, err, ErrForbidden)

	rows, err := ts.rosters.FamilyOverview(ctx, mum)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want one per child", len(rows))
	}
	byID := map[int64]bool{}
	for _, r := range rows {
		byID[r.MemberID] = r.BonusUnlocked
	}
	if !byID[ada.ID] {
		t.Error("Ada finished her roster, bonus should be unlocked")
	}
	if byID[bo.ID] {
		t.Error("Bo has not finished, bonus should stay locked")
	}
}

func TestAddChoreToRoster(t *testing.T) {
	ts := setupTestStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	r := ts.roster(t, mum, "Kids")

	c, err := ts.rosters.AddChore(ctx, mum, r.ID, ChoreInput{Title: "Hoover", Points: 4, IsBonus: true})
	if err != nil {
		t.Fatalf("add chore: %v", err)
	}
	if c.IsBonus {
		t.Error("roster chores are never bonus chores")
	}
	if c.Source != model.SourceRoster {
		t.Errorf("source = %q, want roster", c.Source)
	}
	if c.RosterID == nil || *c.RosterID != r.ID {
		t.Errorf("roster_id = %v, want %d", c.RosterID, r.ID)
	}

	_, err = ts.rosters.AddChore(ctx, mum, 999, ChoreInput{Title: "Hoover"})
	wantKind(t, err, ErrNotFound)
}
