package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dukerupert/famboard/internal/model"
)

// collect runs fn n times at once and returns every error.
func collect(n int, fn func(i int) error) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(i); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}

func TestConcurrentMovesLastWriteWins(t *testing.T) {
	ts := setupFileStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	dad := ts.member(t, "Dad", model.RoleParent)
	ada := ts.member(t, "Ada", model.RoleChild)
	bo := ts.member(t, "Bo", model.RoleChild)
	ra := ts.roster(t, mum, "Ada", ada.ID)
	rb := ts.roster(t, mum, "Bo", bo.ID)
	c := ts.chore(t, mum, ChoreInput{Title: "Empty dishwasher"})

	errs := collect(40, func(i int) error {
		parent, target := mum, ra.ID
		if i%2 == 1 {
			parent, target = dad, rb.ID
		}
		_, err := ts.rosters.MoveChoreToRoster(ctx, parent, c.ID, target)
		return err
	})
	for _, err := range errs {
		t.Errorf("concurrent move: %v (%s)", err, KindOf(err))
	}

	got, err := ts.chores.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get chore: %v", err)
	}
	if got.RosterID == nil || (*got.RosterID != ra.ID && *got.RosterID != rb.ID) {
		t.Errorf("roster = %v, want %d or %d", got.RosterID, ra.ID, rb.ID)
	}
}

func TestConcurrentCompletionsOnFileDB(t *testing.T) {
	ts := setupFileStores(t)
	ctx := context.Background()
	mum := ts.member(t, "Mum", model.RoleParent)
	var kids []*model.Member
	var ids []int64
	for i := range 8 {
		k := ts.member(t, fmt.Sprintf("Kid %d", i), model.RoleChild)
		kids = append(kids, k)
		ids = append(ids, k.ID)
	}
	r := ts.roster(t, mum, "Everyone", ids...)
	c := ts.chore(t, mum, ChoreInput{Title: "Make bed", Points: 1})
	ts.move(t, mum, c.ID, r.ID)

	errs := collect(len(kids), func(i int) error {
		_, err := ts.chores.Complete(ctx, kids[i], c.ID, kids[i].ID)
		return err
	})
	for _, err := range errs {
		t.Errorf("concurrent complete: %v (%s)", err, KindOf(err))
	}

	// The same member racing themselves: one wins, the rest see a conflict.
	lone := ts.member(t, "Cy", model.RoleChild)
	if _, err := ts.rosters.AssignMembers(ctx, mum, r.ID, append(ids, lone.ID)); err != nil {
		t.Fatalf("assign: %v", err)
	}
	errs = collect(10, func(int) error {
		_, err := ts.chores.Complete(ctx, lone, c.ID, lone.ID)
		return err
	})
	if len(errs) != 9 {
		t.Fatalf("failures = %d, want 9", len(errs))
	}
	for _, err := range errs {
		wantKind(t, err, ErrConflict)
	}
}
