package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/almanac/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Note generation.
	r.Post("/daily", h.CreateDaily)
	r.Post("/journal", h.CreateJournal)
	r.Post("/journal/backfill", h.Backfill)

	// Reminders.
	r.Get("/reminders", h.ListReminders)
	r.Post("/reminders/{id}/snooze", h.SnoozeReminder)
	r.Post("/reminders/{id}/complete", h.CompleteReminder)
	r.Delete("/reminders/{id}", h.DeleteReminder)

	// Ad-hoc notifications.
	r.Get("/notifications", h.ListNotifications)
	r.Post("/notifications", h.ScheduleNotification)
	r.Delete("/notifications/{id}", h.DeleteNotification)
	r.Post("/notifications/{id}/click", h.ClickNotification)

	r.Get("/status", h.Status)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
