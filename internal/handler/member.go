package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/famboard/internal/auth"
	"github.com/dukerupert/famboard/internal/model"
	"github.com/dukerupert/famboard/internal/store"
)

type MemberHandler struct {
	members *store.MemberStore
	hub     Refresher
	logger  *slog.Logger
}

func NewMemberHandler(ms *store.MemberStore, hub Refresher, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{members: ms, hub: hub, logger: logger}
}

// Me returns the signed-in member with their derived points and balance.
func (h *MemberHandler) Me(w http.ResponseWriter, r *http.Request) {
	m := auth.Member(r.Context())
	st, err := h.members.Standing(r.Context(), m.ID)
	if err != nil {
		writeError(w, h.logger, err, "load standing")
		return
	}
	writeJSON(w, http.StatusOK, model.MemberWithStanding{Member: *m, Points: st.Points, Balance: st.Balance})
}

// pinTarget resolves the member a PIN request is about. Members manage their
// own PIN; parents manage anyone's.
func (h *MemberHandler) pinTarget(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	if id != auth.MemberID(r.Context()) && !auth.IsParent(r.Context()) {
		writeMessage(w, http.StatusForbidden, "only parents can manage another member's PIN")
		return 0, false
	}
	return id, true
}

type pinRequest struct {
	PIN string `json:"pin"`
}

func (h *MemberHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pinTarget(w, r)
	if !ok {
		return
	}
	var req pinRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.members.SetPIN(r.Context(), id, req.PIN); err != nil {
		writeError(w, h.logger, err, "set PIN")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

func (h *MemberHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pinTarget(w, r)
	if !ok {
		return
	}
	if err := h.members.ClearPIN(r.Context(), id); err != nil {
		writeError(w, h.logger, err, "clear PIN")
		return
	}
	notify(r.Context(), h.hub)
	writeJSON(w, http.StatusOK, map[string]string{"status": "pin cleared"})
}

// VerifyPIN checks a kiosk PIN. Anyone signed in to the kiosk may try, so the
// route is rate limited.
func (h *MemberHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req pinRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ok, err := h.members.VerifyPIN(r.Context(), id, req.PIN)
	if err != nil {
		writeError(w, h.logger, err, "verify PIN")
		return
	}
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "incorrect PIN")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}
