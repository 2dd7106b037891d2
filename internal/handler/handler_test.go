package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/famboard/internal/auth"
	"github.com/dukerupert/famboard/internal/database"
	"github.com/dukerupert/famboard/internal/model"
	"github.com/dukerupert/famboard/internal/store"
)

type countingHub struct {
	n atomic.Int32
}

func (h *countingHub) Refresh(ctx context.Context) { h.n.Add(1) }

type testEnv struct {
	mux     *http.ServeMux
	hub     *countingHub
	members *store.MemberStore
	chores  *store.ChoreStore
	rosters *store.RosterStore
	rewards *store.RewardStore
	alerts  *store.AlertStore
	events  *store.EventStore
	parent  *model.Member
	child   *model.Member
}

func setupHandlers(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		mux:     http.NewServeMux(),
		hub:     &countingHub{},
		members: store.NewMemberStore(db),
		chores:  store.NewChoreStore(db),
		rosters: store.NewRosterStore(db),
		rewards: store.NewRewardStore(db),
		alerts:  store.NewAlertStore(db),
		events:  store.NewEventStore(db),
	}

	ctx := context.Background()
	env.parent, err = env.members.Create(ctx, "Mum", nil, model.RoleParent)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	env.child, err = env.members.Create(ctx, "Ada", nil, model.RoleChild)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	ch := NewChoreHandler(env.chores, env.hub, logger)
	rh := NewRosterHandler(env.rosters, env.chores, env.members, env.hub, logger)
	mh := NewMemberHandler(env.members, env.hub, logger)
	wh := NewRewardHandler(env.rewards, env.hub, logger)
	dh := NewDashboardHandler(DashboardStores{
		Members: env.members,
		Chores:  env.chores,
		Rewards: env.rewards,
		Events:  env.events,
		Alerts:  env.alerts,
	}, env.hub, time.Second, logger)

	m := env.mux
	m.HandleFunc("GET /chores", ch.List)
	m.HandleFunc("POST /chores", ch.Create)
	m.HandleFunc("PUT /chores/{id}", ch.Update)
	m.HandleFunc("DELETE /chores/{id}", ch.Delete)
	m.HandleFunc("PUT /chores/{id}/complete", ch.Complete)
	m.HandleFunc("PUT /chores/{id}/uncomplete", ch.Uncomplete)
	m.HandleFunc("GET /rosters", rh.List)
	m.HandleFunc("GET /rosters/members", rh.Members)
	m.HandleFunc("POST /rosters", rh.Create)
	m.HandleFunc("PUT /rosters/{id}", rh.Rename)
	m.HandleFunc("DELETE /rosters/{id}", rh.Delete)
	m.HandleFunc("POST /rosters/{id}/assign", rh.Assign)
	m.HandleFunc("DELETE /rosters/{id}/assign/{memberId}", rh.Unassign)
	m.HandleFunc("POST /rosters/{id}/chores", rh.AddChore)
	m.HandleFunc("POST /rosters/{id}/chores/from/{choreId}", rh.MoveChore)
	m.HandleFunc("DELETE /rosters/{id}/chores/{choreId}", rh.RemoveChore)
	m.HandleFunc("GET /rosters/my-chores", rh.MyChores)
	m.HandleFunc("GET /rosters/family-overview", rh.FamilyOverview)
	m.HandleFunc("GET /rosters/board", rh.Board)
	m.HandleFunc("POST /rosters/drop", rh.Drop)
	m.HandleFunc("GET /members/me", mh.Me)
	m.HandleFunc("POST /members/{id}/pin", mh.SetPIN)
	m.HandleFunc("POST /members/{id}/pin/verify", mh.VerifyPIN)
	m.HandleFunc("GET /rewards", wh.List)
	m.HandleFunc("POST /rewards", wh.Create)
	m.HandleFunc("DELETE /rewards/{id}", wh.Delete)
	m.HandleFunc("POST /rewards/{id}/redeem", wh.Redeem)
	m.HandleFunc("GET /dashboard/league-table", dh.League)
	m.HandleFunc("GET /dashboard/events", dh.Events)
	m.HandleFunc("GET /dashboard/alerts", dh.Alerts)
	m.HandleFunc("POST /dashboard/alerts/{id}/feedback", dh.Feedback)
	m.HandleFunc("POST /dashboard/alerts/{id}/dismiss", dh.Dismiss)
	m.HandleFunc("GET /dashboard/snapshot", dh.Snapshot)
	return env
}

// do sends a request as member and returns the recorder.
func (env *testEnv) do(t *testing.T, member *model.Member, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{Member: member}))
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[map[string]string](t, rec)["error"]
}

func TestWriteErrorMapsKinds(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrValidation, http.StatusBadRequest},
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrConflict, http.StatusConflict},
		{store.ErrForbidden, http.StatusForbidden},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, logger, tt.err, "do things")
		if rec.Code != tt.want {
			t.Errorf("writeError(%v) status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}

	rec := httptest.NewRecorder()
	writeError(rec, logger, io.ErrUnexpectedEOF, "do things")
	if msg := errorMessage(t, rec); msg != "failed to do things" {
		t.Errorf("internal error message = %q, want generic text", msg)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"markup stripped", "  <b>Feed</b> the cat<script>alert(1)</script> ", "Feed the cat"},
		{"plain text kept", "Tidy Tom's room & desk", "Tidy Tom's room & desk"},
		{"comparison kept", "Read if time < 8pm", "Read if time < 8pm"},
		{"encoded markup stripped", "&lt;script&gt;alert(1)&lt;/script&gt;Tidy up", "Tidy up"},
		{"double encoded markup stripped", "&amp;lt;b&amp;gt;Bins", "Bins"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanText(tt.in); got != tt.want {
				t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
