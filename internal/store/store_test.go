package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukerupert/famboard/internal/database"
	"github.com/dukerupert/famboard/internal/model"
)

// Wednesday afternoon, mid-month.
var testNow = time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)

type testStores struct {
	members  *MemberStore
	chores   *ChoreStore
	rosters  *RosterStore
	rewards  *RewardStore
	sessions *SessionStore
	events   *EventStore
	alerts   *AlertStore
}

func setupTestStores(t *testing.T) *testStores {
	t.Helper()
	return openTestStores(t, ":memory:")
}

// setupFileStores backs the stores with a WAL database on disk, where
// several connections write at once.
func setupFileStores(t *testing.T) *testStores {
	t.Helper()
	return openTestStores(t, filepath.Join(t.TempDir(), "famboard.db"))
}

func openTestStores(t *testing.T, path string) *testStores {
	t.Helper()
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := func() time.Time { return testNow }
	ts := &testStores{
		members:  NewMemberStore(db),
		chores:   NewChoreStore(db),
		rosters:  NewRosterStore(db),
		rewards:  NewRewardStore(db),
		sessions: NewSessionStore(db),
		events:   NewEventStore(db),
		alerts:   NewAlertStore(db),
	}
	ts.chores.now = clock
	ts.rosters.now = clock
	ts.rewards.now = clock
	ts.sessions.now = clock
	return ts
}

func (ts *testStores) member(t *testing.T, name string, role model.Role) *model.Member {
	t.Helper()
	m, err := ts.members.Create(context.Background(), name, nil, role)
	if err != nil {
		t.Fatalf("create member %s: %v", name, err)
	}
	return m
}

func (ts *testStores) chore(t *testing.T, parent *model.Member, in ChoreInput) *model.Chore {
	t.Helper()
	c, err := ts.chores.Create(context.Background(), parent, in)
	if err != nil {
		t.Fatalf("create chore %q: %v", in.Title, err)
	}
	return c
}

func (ts *testStores) roster(t *testing.T, parent *model.Member, name string, memberIDs ...int64) *model.Roster {
	t.Helper()
	ctx := context.Background()
	r, err := ts.rosters.Create(ctx, parent, name)
	if err != nil {
		t.Fatalf("create roster %q: %v", name, err)
	}
	if len(memberIDs) > 0 {
		if r, err = ts.rosters.AssignMembers(ctx, parent, r.ID, memberIDs); err != nil {
			t.Fatalf("assign roster %q: %v", name, err)
		}
	}
	return r
}

func (ts *testStores) move(t *testing.T, parent *model.Member, choreID, rosterID int64) {
	t.Helper()
	if _, err := ts.rosters.MoveChoreToRoster(context.Background(), parent, choreID, rosterID); err != nil {
		t.Fatalf("move chore %d to roster %d: %v", choreID, rosterID, err)
	}
}

func wantKind(t *testing.T, err error, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("err = %v (%s), want %s", err, KindOf(err), want)
	}
}

func TestErrorKinds(t *testing.T) {
	err := notFoundf("chore %d not found", 3)
	if !errors.Is(err, ErrNotFound) {
		t.Error("notFoundf should match ErrNotFound")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("notFoundf should not match ErrConflict")
	}
	if err.Error() != "chore 3 not found" {
		t.Errorf("message = %q", err.Error())
	}
	if KindOf(errors.New("disk full")) != 0 {
		t.Error("plain errors have no kind")
	}
}
