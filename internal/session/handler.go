package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"oqas/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type sessionService interface {
	Start(ctx context.Context, moduleID int64, weekNumber int) (*StartedSession, error)
	Close(ctx context.Context, sessionID int64) error
	Active(ctx context.Context, moduleID int64) (*StartedSession, error)
}

type Handler struct {
	svc sessionService
}

func NewHandler(svc sessionService) *Handler {
	return &Handler{svc: svc}
}

type startSessionRequest struct {
	WeekNumber int `json:"week_number"`
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	moduleID, err := strconv.ParseInt(chi.URLParam(r, "moduleID"), 10, 64)
	if err != nil || moduleID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid module id")
		return
	}
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WeekNumber < 1 {
		apiresp.WriteError(w, r, http.StatusUnprocessableEntity, "week_number must be positive")
		return
	}

	started, err := h.svc.Start(r.Context(), moduleID, req.WeekNumber)
	if err != nil {
		switch {
		case errors.Is(err, ErrModuleNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrAlreadyOpen):
			apiresp.WriteError(w, r, http.StatusConflict, err.Error())
		default:
			log.Printf("start session: %v", err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, started)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	sessionID, err := strconv.ParseInt(chi.URLParam(r, "sessionID"), 10, 64)
	if err != nil || sessionID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := h.svc.Close(r.Context(), sessionID); err != nil {
		switch {
		case errors.Is(err, ErrNoActiveSession):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		default:
			log.Printf("close session: %v", err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]any{"session_id": sessionID, "status": "ended"})
}

func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	moduleID, err := strconv.ParseInt(chi.URLParam(r, "moduleID"), 10, 64)
	if err != nil || moduleID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid module id")
		return
	}
	active, err := h.svc.Active(r.Context(), moduleID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoActiveSession):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		default:
			log.Printf("active session: %v", err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, active)
}
