package attendance

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

type submissionService interface {
	Submit(ctx context.Context, sessionID, studentID int64, studentName string) (*Checkin, error)
}

type analyticsService interface {
	StudentPercentage(ctx context.Context, studentID, moduleID int64) (*StudentAttendance, error)
	ModuleSummary(ctx context.Context, moduleID int64) (*Summary, error)
	StudentHistory(ctx context.Context, studentID int64, limit int) ([]HistoryEntry, error)
}

// tokenVerifier resolves a scanned QR token to the session it was issued for.
type tokenVerifier interface {
	VerifySessionToken(token string) (int64, error)
}

type Handler struct {
	submit    submissionService
	analytics analyticsService
	tokens    tokenVerifier
}

func NewHandler(submit submissionService, analytics analyticsService, tokens tokenVerifier) *Handler {
	return &Handler{submit: submit, analytics: analytics, tokens: tokens}
}

type checkinRequest struct {
	Token       string `json:"tk"`
	SessionID   int64  `json:"session_id"`
	StudentID   int64  `json:"student_id"`
	StudentName string `json:"student_name"`
}

// Checkin records attendance for a student. The session is addressed either by
// a QR token (the normal flow) or a raw session_id (test harnesses).
func (h *Handler) Checkin(w http.ResponseWriter, r *http.Request) {
	var req checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := req.SessionID
	if req.Token != "" {
		id, err := h.tokens.VerifySessionToken(req.Token)
		if err != nil {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "invalid check-in token")
			return
		}
		sessionID = id
	}
	if sessionID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "tk or session_id is required")
		return
	}

	rec, err := h.submit.Submit(r.Context(), sessionID, req.StudentID, req.StudentName)
	if err != nil {
		h.writeSubmitError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, rec)
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidStudentID), errors.Is(err, ErrInvalidStudentName):
		apiresp.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrSessionNotFound):
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSessionNotActive):
		apiresp.WriteError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ErrAlreadyCheckedIn):
		apiresp.WriteError(w, r, http.StatusConflict, err.Error())
	default:
		log.Printf("submit: %v", err)
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) StudentPercentage(w http.ResponseWriter, r *http.Request) {
	moduleID, okM := parseID(chi.URLParam(r, "moduleID"))
	studentID, okS := parseID(chi.URLParam(r, "studentID"))
	if !okM || !okS {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid module or student id")
		return
	}

	rec, err := h.analytics.StudentPercentage(r.Context(), studentID, moduleID)
	if err != nil {
		switch {
		case errors.Is(err, ErrStudentNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNoSessions):
			apiresp.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Printf("student percentage: %v", err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, rec)
}

func (h *Handler) ModuleSummary(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := parseID(chi.URLParam(r, "moduleID"))
	if !ok {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid module id")
		return
	}

	summary, err := h.analytics.ModuleSummary(r.Context(), moduleID)
	if err != nil {
		switch {
		case errors.Is(err, ErrModuleNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		default:
			log.Printf("module summary: %v", err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, summary)
}

func (h *Handler) StudentHistory(w http.ResponseWriter, r *http.Request) {
	studentID, ok := parseID(chi.URLParam(r, "studentID"))
	if !ok {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid student id")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	entries, err := h.analytics.StudentHistory(r.Context(), studentID, limit)
	if err != nil {
		log.Printf("student history: %v", err)
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, entries)
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
