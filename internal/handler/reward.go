package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/famboard/internal/auth"
	"github.com/dukerupert/famboard/internal/store"
)

type RewardHandler struct {
	rewards *store.RewardStore
	hub     Refresher
	logger  *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, hub Refresher, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rs, hub: hub, logger: logger}
}

type rewardRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Cost        float64 `json:"cost"`
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewards.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err, "list rewards")
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rw, err := h.rewards.Create(r.Context(), auth.Member(r.Context()), cleanText(req.Title), cleanText(req.Description), req.Cost)
	if err != nil {
		writeError(w, h.logger, err, "create reward")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusCreated, rw)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.rewards.Delete(r.Context(), auth.Member(r.Context()), id); err != nil {
		writeError(w, h.logger, err, "delete reward")
		return
	}
	notify(r.Context(), h.hub)
	w.WriteHeader(http.StatusNoContent)
}

func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	rw, err := h.rewards.Redeem(r.Context(), auth.Member(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err, "redeem reward")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusOK, rw)
}
