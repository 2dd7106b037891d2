package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/famboard/internal/auth"
	"github.com/dukerupert/famboard/internal/model"
	"github.com/dukerupert/famboard/internal/store"
)

type ChoreHandler struct {
	chores *store.ChoreStore
	hub    Refresher
	logger *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, hub Refresher, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{chores: cs, hub: hub, logger: logger}
}

type choreRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Frequency   model.Frequency `json:"frequency"`
	Points      int             `json:"points"`
	RewardMoney float64         `json:"reward_money"`
	IsBonus     bool            `json:"is_bonus"`
	Source      model.Source    `json:"source"`
	DueDate     *time.Time      `json:"due_date"`
	Personal    bool            `json:"personal"`
	OwnerID     *int64          `json:"owner_id"`
}

func (req choreRequest) input() store.ChoreInput {
	return store.ChoreInput{
		Title:       cleanText(req.Title),
		Description: cleanText(req.Description),
		Frequency:   req.Frequency,
		Points:      req.Points,
		RewardMoney: req.RewardMoney,
		IsBonus:     req.IsBonus,
		Source:      req.Source,
		DueDate:     req.DueDate,
		Personal:    req.Personal,
		OwnerID:     req.OwnerID,
	}
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chores, err := h.chores.List(r.Context(), auth.Member(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "list chores")
		return
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	c, err := h.chores.Create(r.Context(), auth.Member(r.Context()), req.input())
	if err != nil {
		writeError(w, h.logger, err, "create chore")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	c, err := h.chores.Update(r.Context(), auth.Member(r.Context()), id, req.input())
	if err != nil {
		writeError(w, h.logger, err, "update chore")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.chores.Delete(r.Context(), auth.Member(r.Context()), id); err != nil {
		writeError(w, h.logger, err, "delete chore")
		return
	}
	notify(r.Context(), h.hub)
	w.WriteHeader(http.StatusNoContent)
}

// completionRequest names who did the chore. It defaults to the caller.
type completionRequest struct {
	MemberID int64 `json:"user_id"`
}

func (h *ChoreHandler) completionTarget(w http.ResponseWriter, r *http.Request) (choreID, memberID int64, ok bool) {
	choreID, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return 0, 0, false
	}
	var req completionRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return 0, 0, false
	}
	if req.MemberID == 0 {
		req.MemberID = auth.MemberID(r.Context())
	}
	return choreID, req.MemberID, true
}

func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	choreID, memberID, ok := h.completionTarget(w, r)
	if !ok {
		return
	}
	c, err := h.chores.Complete(r.Context(), auth.Member(r.Context()), choreID, memberID)
	if err != nil {
		writeError(w, h.logger, err, "complete chore")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Uncomplete(w http.ResponseWriter, r *http.Request) {
	choreID, memberID, ok := h.completionTarget(w, r)
	if !ok {
		return
	}
	c, err := h.chores.Uncomplete(r.Context(), auth.Member(r.Context()), choreID, memberID)
	if err != nil {
		writeError(w, h.logger, err, "uncomplete chore")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusOK, c)
}
