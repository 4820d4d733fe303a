package roster

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"oqas/internal/app/apiresp"
	"oqas/internal/attendance"
	"oqas/internal/auth"

	"github.com/go-chi/chi/v5"
)

type rosterService interface {
	GetModule(ctx context.Context, moduleID int64) (*Module, error)
	ListModulesByLecturer(ctx context.Context, lecturerID int64) ([]Module, error)
	EnrollStudent(ctx context.Context, moduleID, studentID int64, fullName string) error
	ImportExcel(ctx context.Context, moduleID int64, r io.Reader) (*ImportReport, error)
}

type Handler struct {
	svc rosterService
}

func NewHandler(svc rosterService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) MyModules(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	modules, err := h.svc.ListModulesByLecturer(r.Context(), user.ID)
	if err != nil {
		log.Printf("list modules: %v", err)
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, modules)
}

func (h *Handler) GetModule(w http.ResponseWriter, r *http.Request) {
	moduleID, err := strconv.ParseInt(chi.URLParam(r, "moduleID"), 10, 64)
	if err != nil || moduleID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid module id")
		return
	}
	m, err := h.svc.GetModule(r.Context(), moduleID)
	if err != nil {
		switch {
		case errors.Is(err, ErrModuleNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		default:
			log.Printf("get module: %v", err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, m)
}

// ImportRoster accepts a multipart xlsx upload under the "file" field and
// bulk-enrolls its rows into the module.
func (h *Handler) ImportRoster(w http.ResponseWriter, r *http.Request) {
	moduleID, err := strconv.ParseInt(chi.URLParam(r, "moduleID"), 10, 64)
	if err != nil || moduleID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid module id")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()

	report, err := h.svc.ImportExcel(r.Context(), moduleID, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrModuleNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, attendance.ErrInvalidStudentID), errors.Is(err, attendance.ErrInvalidStudentName):
			apiresp.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Printf("import roster: %v", err)
			apiresp.WriteError(w, r, http.StatusBadRequest, "could not read roster file")
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, report)
}
