package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/LimoEisbxr/periodix/server/internal/api/respond"
	"github.com/LimoEisbxr/periodix/server/internal/model"
)

// TimetableService is the orchestrator surface the transport layer needs.
type TimetableService interface {
	FetchUserRange(ctx context.Context, requesterID, userID, start, end string) (*model.RangeResult, error)
	FetchClassRange(ctx context.Context, requesterID, classID, start, end string) (*model.RangeResult, error)
	PermittedClasses(ctx context.Context, userID string) ([]model.ClassInfo, error)
}

// TimetableHandler translates HTTP requests into orchestrator calls.
type TimetableHandler struct {
	svc TimetableService
}

// NewTimetableHandler creates a new timetable handler.
func NewTimetableHandler(svc TimetableService) *TimetableHandler {
	return &TimetableHandler{svc: svc}
}

// GetUserTimetable handles GET /api/v1/users/{userId}/timetable?start=&end=
func (h *TimetableHandler) GetUserTimetable(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	q := r.URL.Query()

	res, err := h.svc.FetchUserRange(r.Context(), userID, userID, q.Get("start"), q.Get("end"))
	if err != nil {
		writeFetchError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// ListClasses handles GET /api/v1/users/{userId}/classes
func (h *TimetableHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	classes, err := h.svc.PermittedClasses(r.Context(), userID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	if classes == nil {
		classes = []model.ClassInfo{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"classes": classes,
		"count":   len(classes),
	})
}

// GetClassTimetable handles GET /api/v1/users/{userId}/classes/{classId}/timetable?start=&end=
func (h *TimetableHandler) GetClassTimetable(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	q := r.URL.Query()

	res, err := h.svc.FetchClassRange(r.Context(), vars["userId"], vars["classId"], q.Get("start"), q.Get("end"))
	if err != nil {
		writeFetchError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

func writeFetchError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrValidation) {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	respond.WriteServiceError(w, err)
}
