package models

import "time"

// JournalInfo is runtime information kept for the journal feature.
type JournalInfo struct {
	Count             int        `json:"count"`
	LatestJournalDate *time.Time `json:"latest_journal_date,omitempty"`
}

// DailyInfo is runtime information kept for daily notes.
type DailyInfo struct {
	Count int `json:"count"`
}

// ReminderInfo is the persisted reminder collection.
type ReminderInfo struct {
	Count     int        `json:"count"`
	Reminders []Reminder `json:"reminders"`
}

// NotificationInfo is the persisted collection of ad-hoc scheduled notifications.
type NotificationInfo struct {
	Count         int                     `json:"count"`
	Notifications []ScheduledNotification `json:"notifications"`
}

// VaultInfo counts files written by almanac.
type VaultInfo struct {
	FilesCreated  int `json:"files_created"`
	FilesReplaced int `json:"files_replaced"`
}
