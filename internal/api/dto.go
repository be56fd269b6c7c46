package api

import (
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/noteservice"
	"github.com/starford/almanac/internal/vault"
)

// DailyRequest is the request body for creating a daily note.
type DailyRequest struct {
	Date        string `json:"date,omitempty" example:"2024-03-17"`
	Interactive bool   `json:"interactive,omitempty"`
}

// JournalRequest is the request body for creating a weekly journal.
type JournalRequest struct {
	Date          string `json:"date,omitempty" example:"2024-03-17"`
	CreateDailies *bool  `json:"create_dailies,omitempty"`
	Interactive   bool   `json:"interactive,omitempty"`
}

// BackfillRequest is the request body for creating the journals of a date range.
type BackfillRequest struct {
	From          string `json:"from" example:"2024-02-25" validate:"required"`
	To            string `json:"to" example:"2024-03-10" validate:"required"`
	CreateDailies *bool  `json:"create_dailies,omitempty"`
}

// OutcomeResponse reports what happened to one generated note.
type OutcomeResponse struct {
	Path   string       `json:"path" example:"Journal/Weekly Journal – 17th Mar 24.md" validate:"required"`
	Status vault.Status `json:"status" example:"created" validate:"required"`
	Error  string       `json:"error,omitempty"`
}

func outcomeResponse(o vault.Outcome) OutcomeResponse {
	resp := OutcomeResponse{Path: o.Path, Status: o.Status}
	if o.Err != nil {
		resp.Error = o.Err.Error()
	}
	return resp
}

// BackfillResponse lists the outcome of every generated journal.
type BackfillResponse struct {
	Outcomes []OutcomeResponse `json:"outcomes" validate:"required"`
}

// ReminderListResponse wraps the reminder collection.
type ReminderListResponse struct {
	Reminders []models.Reminder `json:"reminders" validate:"required"`
	Total     int               `json:"total" example:"2" validate:"required"`
}

// SnoozeRequest is the request body for snoozing a reminder. Duration wins
// over Minutes; both empty means the configured default.
type SnoozeRequest struct {
	Minutes  int    `json:"minutes,omitempty" example:"15"`
	Duration string `json:"duration,omitempty" example:"1h30m"`
}

// CompleteResponse reports whether a completed reminder was removed.
type CompleteResponse struct {
	ID      string `json:"id" validate:"required"`
	Deleted bool   `json:"deleted"`
}

// NotificationRequest is the request body for scheduling an ad-hoc notification.
type NotificationRequest struct {
	ID          string          `json:"id,omitempty"`
	Title       string          `json:"title" example:"Stand up" validate:"required"`
	Subtitle    string          `json:"subtitle,omitempty"`
	Body        string          `json:"body,omitempty"`
	DateAndTime string          `json:"date_and_time" example:"2024-03-17T09:00:00Z" validate:"required"`
	Location    models.Location `json:"location,omitempty" example:"Both"`
	Silent      bool            `json:"silent,omitempty"`
}

// NotificationListResponse wraps the persisted ad-hoc notifications.
type NotificationListResponse struct {
	Notifications []models.ScheduledNotification `json:"notifications" validate:"required"`
	Total         int                            `json:"total" example:"1" validate:"required"`
}

// StatusResponse is the per-feature counter summary (aliased from the domain layer).
type StatusResponse = noteservice.Status
