package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LimoEisbxr/periodix/server/internal/api/recovery"
)

// NewRouter wires all API routes.
func NewRouter(svc TimetableService, db Pinger) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	timetableHandler := NewTimetableHandler(svc)
	healthHandler := NewHealthHandler(db)

	// Timetable endpoints
	router.HandleFunc("/api/v1/users/{userId}/timetable", timetableHandler.GetUserTimetable).Methods("GET")
	router.HandleFunc("/api/v1/users/{userId}/classes", timetableHandler.ListClasses).Methods("GET")
	router.HandleFunc("/api/v1/users/{userId}/classes/{classId}/timetable", timetableHandler.GetClassTimetable).Methods("GET")

	// Health and metrics
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
