package app

import (
	"database/sql"
	"net/http"
	"time"

	"oqas/internal/attendance"
	"oqas/internal/auth"
	"oqas/internal/roster"
	"oqas/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(cfg Config, conn *sql.DB, runID int64) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	authSvc := auth.NewService(conn, auth.Config{
		SigningKey: cfg.JWTSigningKey,
		Issuer:     cfg.JWTIssuer,
		TokenTTL:   time.Duration(cfg.AuthTokenTTLMins) * time.Minute,
	})
	authHandler := auth.NewHandler(authSvc)

	qrIssuer := session.NewQRIssuer(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.BaseURL,
		time.Duration(cfg.QRTokenTTLMins)*time.Minute)
	sessionSvc := session.NewService(conn, qrIssuer, runID)
	sessionHandler := session.NewHandler(sessionSvc)

	rosterSvc := roster.NewService(conn)
	rosterHandler := roster.NewHandler(rosterSvc)

	attendanceHandler := attendance.NewHandler(
		attendance.NewSubmissionService(conn),
		attendance.NewAnalyticsService(conn),
		qrIssuer,
	)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/auth/login", authHandler.Login)
		api.Post("/checkins", attendanceHandler.Checkin)

		api.Get("/modules/{moduleID}/students/{studentID}/attendance", attendanceHandler.StudentPercentage)
		api.Get("/modules/{moduleID}/summary", attendanceHandler.ModuleSummary)
		api.Get("/students/{studentID}/history", attendanceHandler.StudentHistory)

		api.Group(func(secure chi.Router) {
			secure.Use(authSvc.RequireAuth)
			secure.Use(authSvc.RequireRoles("lecturer", "admin"))

			secure.Get("/lecturers/me/modules", rosterHandler.MyModules)
			secure.Get("/modules/{moduleID}", rosterHandler.GetModule)
			secure.Post("/modules/{moduleID}/roster/import", rosterHandler.ImportRoster)

			secure.Post("/modules/{moduleID}/sessions", sessionHandler.Start)
			secure.Get("/modules/{moduleID}/sessions/active", sessionHandler.Active)
			secure.Post("/sessions/{sessionID}/close", sessionHandler.Close)
		})
	})

	return r
}
