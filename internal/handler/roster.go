package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/famboard/internal/auth"
	"github.com/dukerupert/famboard/internal/model"
	"github.com/dukerupert/famboard/internal/roster"
	"github.com/dukerupert/famboard/internal/store"
)

type RosterHandler struct {
	rosters *store.RosterStore
	chores  *store.ChoreStore
	members *store.MemberStore
	hub     Refresher
	logger  *slog.Logger
}

func NewRosterHandler(rs *store.RosterStore, cs *store.ChoreStore, ms *store.MemberStore, hub Refresher, logger *slog.Logger) *RosterHandler {
	return &RosterHandler{rosters: rs, chores: cs, members: ms, hub: hub, logger: logger}
}

// provision gives every unassigned child a roster before a roster view is
// served.
func (h *RosterHandler) provision(ctx context.Context) error {
	created, err := h.rosters.EnsureMemberRosters(ctx)
	if err != nil {
		return err
	}
	if len(created) > 0 {
		h.logger.Info("provisioned rosters", "count", len(created))
		notify(ctx, h.hub)
	}
	return nil
}

func (h *RosterHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.provision(r.Context()); err != nil {
		writeError(w, h.logger, err, "provision rosters")
		return
	}
	rosters, err := h.rosters.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err, "list rosters")
		return
	}
	writeJSON(w, http.StatusOK, rosters)
}

// Members lists the family members rosters can be handed to.
func (h *RosterHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.ListChildren(r.Context())
	if err != nil {
		writeError(w, h.logger, err, "list family members")
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

type rosterRequest struct {
	Name string `json:"name"`
}

func (h *RosterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rosterRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ro, err := h.rosters.Create(r.Context(), auth.Member(r.Context()), cleanText(req.Name))
	if err != nil {
		writeError(w, h.logger, err, "create roster")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusCreated, ro)
}

func (h *RosterHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req rosterRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ro, err := h.rosters.Rename(r.Context(), auth.Member(r.Context()), id, cleanText(req.Name))
	if err != nil {
		writeError(w, h.logger, err, "rename roster")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusOK, ro)
}

func (h *RosterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.rosters.Delete(r.Context(), auth.Member(r.Context()), id); err != nil {
		writeError(w, h.logger, err, "delete roster")
		return
	}
	notify(r.Context(), h.hub)
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	MemberIDs []int64 `json:"user_ids"`
}

func (h *RosterHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req assignRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ro, err := h.rosters.AssignMembers(r.Context(), auth.Member(r.Context()), id, req.MemberIDs)
	if err != nil {
		writeError(w, h.logger, err, "assign members")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusOK, ro)
}

func (h *RosterHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	memberID, err := parsePathID(r, "memberId")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid member id")
		return
	}
	if err := h.rosters.UnassignMember(r.Context(), auth.Member(r.Context()), id, memberID); err != nil {
		writeError(w, h.logger, err, "unassign member")
		return
	}
	notify(r.Context(), h.hub)
	w.WriteHeader(http.StatusNoContent)
}

// AddChore creates a chore directly inside a roster.
func (h *RosterHandler) AddChore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req choreRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	c, err := h.rosters.AddChore(r.Context(), auth.Member(r.Context()), id, req.input())
	if err != nil {
		writeError(w, h.logger, err, "add chore to roster")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusCreated, c)
}

func (h *RosterHandler) MoveChore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	choreID, err := parsePathID(r, "choreId")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid chore id")
		return
	}
	c, err := h.rosters.MoveChoreToRoster(r.Context(), auth.Member(r.Context()), choreID, id)
	if err != nil {
		writeError(w, h.logger, err, "move chore")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusOK, c)
}

func (h *RosterHandler) RemoveChore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	choreID, err := parsePathID(r, "choreId")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid chore id")
		return
	}
	c, err := h.rosters.RemoveChoreFromRoster(r.Context(), auth.Member(r.Context()), id, choreID)
	if err != nil {
		writeError(w, h.logger, err, "remove chore from roster")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusOK, c)
}

func (h *RosterHandler) MyChores(w http.ResponseWriter, r *http.Request) {
	v, err := h.rosters.MyChores(r.Context(), auth.MemberID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "load chores")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *RosterHandler) FamilyOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.rosters.FamilyOverview(r.Context(), auth.Member(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "load family overview")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *RosterHandler) board(ctx context.Context) (roster.Board, error) {
	rosters, err := h.rosters.List(ctx)
	if err != nil {
		return roster.Board{}, err
	}
	chores, err := h.chores.List(ctx, auth.Member(ctx))
	if err != nil {
		return roster.Board{}, err
	}
	var loose []model.Chore
	for _, c := range chores {
		if c.RosterID == nil {
			loose = append(loose, c)
		}
	}
	members, err := h.members.ListChildren(ctx)
	if err != nil {
		return roster.Board{}, err
	}
	return roster.BuildBoard(rosters, loose, members), nil
}

// Board serves the drag-and-drop layout: the pool plus one column per child.
func (h *RosterHandler) Board(w http.ResponseWriter, r *http.Request) {
	if err := h.provision(r.Context()); err != nil {
		writeError(w, h.logger, err, "provision rosters")
		return
	}
	b, err := h.board(r.Context())
	if err != nil {
		writeError(w, h.logger, err, "load board")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type dropRequest struct {
	ChoreID int64         `json:"chore_id"`
	Target  roster.Target `json:"target"`
}

type dropResponse struct {
	Action roster.Action `json:"action"`
	Chore  *model.Chore  `json:"chore"`
}

// Drop applies a chip dropped on the board. A drop that changes nothing
// succeeds without touching the store.
func (h *RosterHandler) Drop(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ChoreID <= 0 {
		writeMessage(w, http.StatusBadRequest, "chore_id is required")
		return
	}

	b, err := h.board(r.Context())
	if err != nil {
		writeError(w, h.logger, err, "load board")
		return
	}
	action, err := b.ResolveDrop(req.ChoreID, req.Target)
	switch {
	case errors.Is(err, roster.ErrChoreNotFound), errors.Is(err, roster.ErrColumnNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, roster.ErrBonusChore):
		writeMessage(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, roster.ErrImportManaged):
		writeMessage(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		writeError(w, h.logger, err, "resolve drop")
		return
	}

	actor := auth.Member(r.Context())
	var c *model.Chore
	switch action.Kind {
	case roster.ActionMoveToPool:
		c, err = h.rosters.MoveChoreToPool(r.Context(), actor, action.ChoreID)
	case roster.ActionMoveToRoster:
		c, err = h.rosters.MoveChoreToRoster(r.Context(), actor, action.ChoreID, action.RosterID)
	default:
		c, err = h.chores.GetByID(r.Context(), action.ChoreID)
	}
	if err != nil {
		writeError(w, h.logger, err, "move chore")
		return
	}
	if action.Kind != roster.ActionNoop {
		notify(r.Context(), h.hub)
	}
	writeJSON(w, http.StatusOK, dropResponse{Action: action, Chore: c})
}
