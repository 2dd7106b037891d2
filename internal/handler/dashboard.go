package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/famboard/internal/auth"
	"github.com/dukerupert/famboard/internal/model"
	"github.com/dukerupert/famboard/internal/store"
)

const upcomingEventLimit = 20

type DashboardHandler struct {
	members *store.MemberStore
	chores  *store.ChoreStore
	rewards *store.RewardStore
	events  *store.EventStore
	alerts  *store.AlertStore
	hub     Refresher
	logger  *slog.Logger

	// snapshotTimeout bounds the concurrent reads behind Snapshot.
	snapshotTimeout time.Duration
	now             func() time.Time
}

type DashboardStores struct {
	Members *store.MemberStore
	Chores  *store.ChoreStore
	Rewards *store.RewardStore
	Events  *store.EventStore
	Alerts  *store.AlertStore
}

func NewDashboardHandler(s DashboardStores, hub Refresher, snapshotTimeout time.Duration, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		members:         s.Members,
		chores:          s.Chores,
		rewards:         s.Rewards,
		events:          s.Events,
		alerts:          s.Alerts,
		hub:             hub,
		logger:          logger,
		snapshotTimeout: snapshotTimeout,
		now:             time.Now,
	}
}

func (h *DashboardHandler) League(w http.ResponseWriter, r *http.Request) {
	league, err := h.rewards.League(r.Context())
	if err != nil {
		writeError(w, h.logger, err, "load league table")
		return
	}
	writeJSON(w, http.StatusOK, league)
}

func (h *DashboardHandler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListUpcoming(r.Context(), h.now(), upcomingEventLimit)
	if err != nil {
		writeError(w, h.logger, err, "list events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *DashboardHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.ListActive(r.Context(), auth.MemberID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "list alerts")
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

type feedbackRequest struct {
	Value int `json:"value"`
}

func (h *DashboardHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req feedbackRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	a, err := h.alerts.Feedback(r.Context(), auth.Member(r.Context()), id, req.Value)
	if err != nil {
		writeError(w, h.logger, err, "record feedback")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusOK, a)
}

func (h *DashboardHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.alerts.Dismiss(r.Context(), auth.Member(r.Context()), id); err != nil {
		writeError(w, h.logger, err, "dismiss alert")
		return
	}
	notify(r.Context(), h.hub)
	w.WriteHeader(http.StatusNoContent)
}

// Snapshot is everything a client refetches after a refresh signal.
type Snapshot struct {
	Me      model.MemberWithStanding `json:"me"`
	Chores  []model.Chore            `json:"chores"`
	Rewards []model.Reward           `json:"rewards"`
	Events  []model.Event            `json:"events"`
	Alerts  []model.Alert            `json:"alerts"`
	League  []model.LeagueEntry      `json:"league"`
}

// Snapshot runs the six refetch reads concurrently and fails as a whole if
// any of them fails or the timeout passes.
func (h *DashboardHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.snapshotTimeout)
	defer cancel()

	snap, err := h.snapshot(ctx, auth.Member(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "load snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *DashboardHandler) snapshot(ctx context.Context, me *model.Member) (*Snapshot, error) {
	snap := &Snapshot{Me: model.MemberWithStanding{Member: *me}}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st, err := h.members.Standing(ctx, me.ID)
		if err != nil {
			return err
		}
		snap.Me.Points, snap.Me.Balance = st.Points, st.Balance
		return nil
	})
	g.Go(func() error {
		var err error
		snap.Chores, err = h.chores.List(ctx, me)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Rewards, err = h.rewards.List(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Events, err = h.events.ListUpcoming(ctx, h.now(), upcomingEventLimit)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Alerts, err = h.alerts.ListActive(ctx, me.ID)
		return err
	})
	g.Go(func() error {
		var err error
		snap.League, err = h.rewards.League(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
