package handlers

import (
	"net/http"

	"teamsched/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Deps struct {
	Auth     *AuthHandler
	Overtime *OvertimeHandler
	Schedule *ScheduleHandler
	Guard    *middleware.Auth
	Log      zerolog.Logger
}

func NewRouter(d Deps) http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RequestLogger(d.Log))
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/login", d.Auth.Login)
		r.Post("/logout", d.Auth.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(d.Guard.Middleware)

			r.Get("/me", d.Auth.Me)
			r.Get("/profile", d.Schedule.Profile)

			r.Get("/schedule", d.Schedule.GetSchedule)
			r.Put("/schedule", d.Schedule.SaveSchedule)
			r.Post("/one-off-wfh", d.Schedule.SubmitOneOff)
			r.Get("/calendar", d.Schedule.Calendar)

			r.Get("/overtime", d.Overtime.List)
			r.Post("/overtime", d.Overtime.Submit)
			r.Get("/overtime/hours", d.Overtime.Hours)
			r.Get("/overtime/{id}", d.Overtime.Get)
			r.Put("/overtime/{id}", d.Overtime.Edit)
			r.Delete("/overtime/{id}", d.Overtime.Withdraw)

			// Admin only routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Get("/users", d.Auth.ListUsers)
				r.Post("/users", d.Auth.CreateUser)
				r.Get("/users/{id}/profile", d.Schedule.UserProfile)
				r.Get("/overtime/pending", d.Overtime.Pending)
				r.Post("/overtime/{id}/approve", d.Overtime.Approve)
				r.Post("/overtime/{id}/decline", d.Overtime.Decline)
				r.Get("/overtime/history", d.Overtime.History)
				r.Get("/calendar", d.Schedule.TeamCalendar)
				r.Get("/export/csv", d.Overtime.ExportCSV)
			})
		})
	})

	return router
}
