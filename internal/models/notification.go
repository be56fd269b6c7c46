package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// NotificationType classifies a scheduled notification.
type NotificationType string

const (
	NotificationNonSpecific NotificationType = "NonSpecific"
	NotificationScheduled   NotificationType = "Scheduled"
	NotificationReminder    NotificationType = "Reminder"
	NotificationError       NotificationType = "Error"
)

// Location selects where a notification is shown.
type Location string

const (
	LocationApp    Location = "App"
	LocationSystem Location = "System"
	LocationBoth   Location = "Both"
)

// ShowsInApp reports whether l includes the in-app alert stream.
func (l Location) ShowsInApp() bool { return l == LocationApp || l == LocationBoth }

// ShowsInSystem reports whether l includes OS notifications.
func (l Location) ShowsInSystem() bool { return l == LocationSystem || l == LocationBoth }

// ScheduledNotification is the persisted part of a notification job.
type ScheduledNotification struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Title    string           `json:"title"`
	Body     string           `json:"body"`
	Subtitle string           `json:"subtitle,omitempty"`
	Type     NotificationType `json:"type"`
	// DateAndTime is an RFC 3339 instant or a cron expression.
	DateAndTime  string        `json:"date_and_time"`
	Location     Location      `json:"location"`
	DeleteOnShow bool          `json:"delete_on_show"`
	DeleteOnDone bool          `json:"delete_on_done"`
	Silent       bool          `json:"silent,omitempty"`
	Length       time.Duration `json:"length,omitempty"`
}

// Validate checks the static shape of a notification.
func (n ScheduledNotification) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.ID, validation.Required),
		validation.Field(&n.Title, validation.Required),
		validation.Field(&n.DateAndTime, validation.Required),
		validation.Field(&n.Type, validation.In(
			NotificationNonSpecific, NotificationScheduled, NotificationReminder, NotificationError)),
		validation.Field(&n.Location, validation.Required, validation.In(LocationApp, LocationSystem, LocationBoth)),
	)
}
