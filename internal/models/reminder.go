// Package models defines the domain types for almanac.
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ReminderType is the cadence a reminder belongs to.
type ReminderType string

const (
	ReminderDaily       ReminderType = "Daily"
	ReminderWeekly      ReminderType = "Weekly"
	ReminderMonthly     ReminderType = "Monthly"
	ReminderYearly      ReminderType = "Yearly"
	ReminderJournalling ReminderType = "Journalling"
)

// ReminderStatus is the lifecycle state of a reminder.
type ReminderStatus string

const (
	StatusActive     ReminderStatus = "Active"
	StatusInProgress ReminderStatus = "InProgress"
	StatusSnoozed    ReminderStatus = "Snoozed"
	StatusLate       ReminderStatus = "Late"
	StatusDone       ReminderStatus = "Done"
)

// Reminder is a persisted intent to alert the user by a given instant.
type Reminder struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Type        ReminderType `json:"type"`
	// DateActiveOn is an RFC 3339 instant or a cron expression.
	DateActiveOn string `json:"date_active_on"`
	// TaskLengthMS is added to DateLastSnoozed to find the snoozed due instant.
	TaskLengthMS    int64          `json:"task_length_ms"`
	DeleteOnShow    bool           `json:"delete_on_show"`
	DeleteOnDone    bool           `json:"delete_on_done"`
	Status          ReminderStatus `json:"status"`
	DateCreated     time.Time      `json:"date_created"`
	DateCompleted   *time.Time     `json:"date_completed,omitempty"`
	DateLastSnoozed *time.Time     `json:"date_last_snoozed,omitempty"`
	SnoozeCount     int            `json:"snooze_count"`
	// NotePath is the vault path opened when the reminder is shown.
	NotePath string `json:"note_path,omitempty"`
}

// Validate checks the static shape of a reminder. Whether its date lies in
// the future is checked by the registry at insertion time.
func (r Reminder) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Type, validation.Required, validation.In(
			ReminderDaily, ReminderWeekly, ReminderMonthly, ReminderYearly, ReminderJournalling)),
		validation.Field(&r.DateActiveOn, validation.Required),
		validation.Field(&r.TaskLengthMS, validation.Min(int64(0))),
		validation.Field(&r.Status, validation.In(
			StatusActive, StatusInProgress, StatusSnoozed, StatusLate, StatusDone)),
	)
}

// TaskLength returns TaskLengthMS as a duration.
func (r Reminder) TaskLength() time.Duration {
	return time.Duration(r.TaskLengthMS) * time.Millisecond
}
