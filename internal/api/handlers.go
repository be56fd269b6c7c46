package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/noteservice"
	"github.com/starford/almanac/internal/vault"
)

const maxBody = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
	return false
}

// outcomeStatus maps a creation outcome to an HTTP status code.
func outcomeStatus(s vault.Status) int {
	switch s {
	case vault.StatusCreated:
		return http.StatusCreated
	case vault.StatusReplaced:
		return http.StatusOK
	case vault.StatusAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case noteservice.IsBadRequest(err):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// CreateDaily handles POST /api/daily.
//
//	@Summary		Create the daily note for a date (today by default)
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DailyRequest	false	"Date to create"
//	@Success		201		{object}	OutcomeResponse
//	@Success		200		{object}	OutcomeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	OutcomeResponse
//	@Failure		500		{object}	OutcomeResponse
//	@Security		BearerAuth
//	@Router			/daily [post]
func (h *Handler) CreateDaily(w http.ResponseWriter, r *http.Request) {
	var req DailyRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := h.svc.ParseDate(req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	out := h.svc.CreateDaily(r.Context(), date, req.Interactive)
	writeJSON(w, outcomeStatus(out.Status), outcomeResponse(out))
}

// CreateJournal handles POST /api/journal.
//
//	@Summary		Create the weekly journal for the week containing a date
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		JournalRequest	false	"Week to create"
//	@Success		201		{object}	OutcomeResponse
//	@Success		200		{object}	OutcomeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	OutcomeResponse
//	@Failure		500		{object}	OutcomeResponse
//	@Security		BearerAuth
//	@Router			/journal [post]
func (h *Handler) CreateJournal(w http.ResponseWriter, r *http.Request) {
	var req JournalRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := h.svc.ParseDate(req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	out := h.svc.CreateJournal(r.Context(), date, req.CreateDailies, req.Interactive)
	writeJSON(w, outcomeStatus(out.Status), outcomeResponse(out))
}

// Backfill handles POST /api/journal/backfill.
//
//	@Summary		Create the journals of every week in a date range
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BackfillRequest	true	"Range to backfill"
//	@Success		200		{object}	BackfillResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/journal/backfill [post]
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	var req BackfillRequest
	if !decode(w, r, &req) {
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("from and to are required"))
		return
	}
	from, err := h.svc.ParseDate(req.From)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	to, err := h.svc.ParseDate(req.To)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	dailies := h.svc.Journal().Config().CreateDailies
	if req.CreateDailies != nil {
		dailies = *req.CreateDailies
	}

	outs, err := h.svc.Backfill(r.Context(), from, to, dailies)
	if err != nil {
		writeError(w, "backfill", err)
		return
	}
	resp := BackfillResponse{Outcomes: make([]OutcomeResponse, 0, len(outs))}
	for _, o := range outs {
		resp.Outcomes = append(resp.Outcomes, outcomeResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListReminders handles GET /api/reminders.
//
//	@Summary		List reminders with their derived status
//	@Tags			reminders
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"	Enums(Active, InProgress, Snoozed, Late, Done)
//	@Success		200		{object}	ReminderListResponse
//	@Security		BearerAuth
//	@Router			/reminders [get]
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	status := models.ReminderStatus(r.URL.Query().Get("status"))
	items := make([]models.Reminder, 0)
	for _, rem := range h.svc.ListReminders() {
		if status == "" || rem.Status == status {
			items = append(items, rem)
		}
	}
	writeJSON(w, http.StatusOK, ReminderListResponse{Reminders: items, Total: len(items)})
}

// SnoozeReminder handles POST /api/reminders/{id}/snooze.
//
//	@Summary		Snooze a reminder
//	@Tags			reminders
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Reminder id"
//	@Param			body	body		SnoozeRequest	false	"Snooze duration"
//	@Success		200		{object}	models.Reminder
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reminders/{id}/snooze [post]
func (h *Handler) SnoozeReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req SnoozeRequest
	if !decode(w, r, &req) {
		return
	}
	d := time.Duration(req.Minutes) * time.Minute
	if req.Duration != "" {
		parsed, err := time.ParseDuration(strings.TrimSpace(req.Duration))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid duration"))
			return
		}
		d = parsed
	}
	if req.Minutes < 0 || d < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("duration must be positive"))
		return
	}

	rem, err := h.svc.SnoozeReminder(r.Context(), id, d)
	if err != nil {
		writeError(w, "snooze reminder", err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

// CompleteReminder handles POST /api/reminders/{id}/complete.
//
//	@Summary		Mark a reminder as done
//	@Tags			reminders
//	@Produce		json
//	@Param			id	path		string	true	"Reminder id"
//	@Success		200	{object}	CompleteResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reminders/{id}/complete [post]
func (h *Handler) CompleteReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.svc.CompleteReminder(r.Context(), id)
	if err != nil {
		writeError(w, "complete reminder", err)
		return
	}
	writeJSON(w, http.StatusOK, CompleteResponse{ID: id, Deleted: deleted})
}

// DeleteReminder handles DELETE /api/reminders/{id}.
//
//	@Summary		Delete a reminder and cancel its notification
//	@Tags			reminders
//	@Param			id	path	string	true	"Reminder id"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reminders/{id} [delete]
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteReminder(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete reminder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNotifications handles GET /api/notifications.
//
//	@Summary		List persisted ad-hoc notifications
//	@Tags			notifications
//	@Produce		json
//	@Success		200	{object}	NotificationListResponse
//	@Security		BearerAuth
//	@Router			/notifications [get]
func (h *Handler) ListNotifications(w http.ResponseWriter, _ *http.Request) {
	items := h.svc.ListNotifications()
	writeJSON(w, http.StatusOK, NotificationListResponse{Notifications: items, Total: len(items)})
}

// ScheduleNotification handles POST /api/notifications.
//
//	@Summary		Schedule an ad-hoc notification
//	@Tags			notifications
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NotificationRequest	true	"Notification to schedule"
//	@Success		201		{object}	models.ScheduledNotification
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notifications [post]
func (h *Handler) ScheduleNotification(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Title == "" || req.DateAndTime == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title and date_and_time are required"))
		return
	}
	n, err := h.svc.ScheduleNotification(r.Context(), models.ScheduledNotification{
		ID:          req.ID,
		Name:        req.Title,
		Title:       req.Title,
		Subtitle:    req.Subtitle,
		Body:        req.Body,
		DateAndTime: req.DateAndTime,
		Location:    req.Location,
		Silent:      req.Silent,
	})
	if err != nil {
		writeError(w, "schedule notification", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// DeleteNotification handles DELETE /api/notifications/{id}.
//
//	@Summary		Cancel and forget a scheduled notification
//	@Tags			notifications
//	@Param			id	path	string	true	"Notification id"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notifications/{id} [delete]
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveNotification(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClickNotification handles POST /api/notifications/{id}/click.
//
//	@Summary		Run the click action of a shown notification
//	@Tags			notifications
//	@Param			id	path	string	true	"Notification id"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notifications/{id}/click [post]
func (h *Handler) ClickNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClickNotification(chi.URLParam(r, "id")); err != nil {
		writeError(w, "click notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/status.
//
//	@Summary		Per-feature counters and armed notification ids
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}
