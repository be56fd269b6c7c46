// Package noteservice assembles the note generators, the reminder service
// and the notification dispatcher, and exposes the commands shared by the
// CLI, the REST API and the MCP server.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmhodges/clock"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/journal"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/notify"
	"github.com/starford/almanac/internal/periodic"
	"github.com/starford/almanac/internal/reminder"
	"github.com/starford/almanac/internal/state"
	"github.com/starford/almanac/internal/storage"
	"github.com/starford/almanac/internal/vault"
)

// DateLayout is the layout of dates accepted by the commands.
const DateLayout = "2006-01-02"

// DefaultSnooze is used when neither the caller nor the settings name a
// snooze duration.
const DefaultSnooze = 10 * time.Minute

// Settings carries the feature sections the service is built from.
type Settings struct {
	Daily         periodic.Config
	Journal       journal.Config
	ReplaceFiles  bool
	Notification  notify.Settings
	DefaultSnooze time.Duration
	Location      *time.Location
}

// Deps are the collaborators that outlive the service.
type Deps struct {
	Store  storage.Provider
	State  *state.DB
	App    notify.AppSurface
	System notify.SystemSurface
	Clock  clock.Clock
	Logger *slog.Logger
	// Opener is called whenever a note should be focused in the editor.
	Opener func(path string)
}

// Status summarises the persisted counters of every feature.
type Status struct {
	Daily         models.DailyInfo   `json:"daily"`
	Journal       models.JournalInfo `json:"journal"`
	Vault         models.VaultInfo   `json:"vault"`
	Reminders     int                `json:"reminders"`
	Notifications int                `json:"notifications"`
	Pending       []string           `json:"pending"`
}

// Service coordinates note generation, reminders and notifications.
type Service struct {
	daily     *periodic.Generator
	journal   *journal.Generator
	reminders *reminder.Service
	disp      *notify.Dispatcher
	sched     *notify.Scheduler
	vault     *vault.Adapter
	clk       clock.Clock
	loc       *time.Location
	snooze    time.Duration
	logger    *slog.Logger
}

// New loads the persisted info sections from deps.State and builds every
// component over them.
func New(ctx context.Context, s Settings, deps Deps) (*Service, error) {
	if deps.Store == nil || deps.State == nil {
		return nil, fmt.Errorf("noteservice: store and state are required: %w", apperr.ErrMissingConfig)
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}

	var (
		dailyInfo   models.DailyInfo
		journalInfo models.JournalInfo
		remInfo     models.ReminderInfo
		notifInfo   models.NotificationInfo
		vaultInfo   models.VaultInfo
	)
	sections := []struct {
		name string
		dst  any
	}{
		{state.SectionDaily, &dailyInfo},
		{state.SectionJournal, &journalInfo},
		{state.SectionReminder, &remInfo},
		{state.SectionNotification, &notifInfo},
		{state.SectionVault, &vaultInfo},
	}
	for _, sec := range sections {
		if err := deps.State.Load(ctx, sec.name, sec.dst); err != nil {
			return nil, fmt.Errorf("noteservice: load %s: %w", sec.name, err)
		}
	}

	svc := &Service{clk: clk, loc: loc, snooze: s.DefaultSnooze, logger: logger}
	if svc.snooze <= 0 {
		svc.snooze = DefaultSnooze
	}

	open := func(path string) {
		if deps.Opener != nil {
			deps.Opener(path)
		}
	}
	svc.vault = vault.New(deps.Store, deps.State, deps.State, logger,
		vault.WithOpener(open),
		vault.WithInfo(vaultInfo),
	)

	dispOpts := []notify.DispatcherOption{
		notify.WithSaver(deps.State),
		notify.WithNotificationInfo(notifInfo),
		notify.WithClock(clk),
		notify.WithSettings(s.Notification),
	}
	if deps.System != nil {
		dispOpts = append(dispOpts, notify.WithSystemSurface(deps.System))
	}
	svc.sched = notify.NewScheduler(clk, logger)
	svc.disp = notify.NewDispatcher(svc.sched, deps.App, logger, dispOpts...)

	reg := reminder.NewRegistry(deps.State, clk, remInfo)
	svc.reminders = reminder.NewService(reg, svc.disp, clk, svc.vault.OpenNote, logger)

	notices := notify.NewNotices(deps.App, logger, s.Notification.AppDuration)
	svc.daily = periodic.New(s.Daily, svc.vault, notices, logger,
		periodic.WithReminders(svc.reminders),
		periodic.WithJournalNaming(s.Journal.NamingFormat),
		periodic.WithSaver(deps.State),
		periodic.WithInfo(dailyInfo),
		periodic.WithClock(clk),
		periodic.WithLocation(loc),
	)
	svc.journal = journal.New(s.Journal, svc.vault, notices, logger,
		journal.WithDailies(svc.daily),
		journal.WithReminders(svc.reminders),
		journal.WithSaver(deps.State),
		journal.WithInfo(journalInfo),
		journal.WithClock(clk),
		journal.WithLocation(loc),
		journal.WithDefaultReplace(s.ReplaceFiles),
	)
	return svc, nil
}

// Close stops every pending notification timer.
func (s *Service) Close() {
	s.sched.Close()
}

// Restore re-arms persisted reminders and ad-hoc notifications after a
// restart. It returns how many of each were scheduled again.
func (s *Service) Restore(ctx context.Context) (reminders, notifications int) {
	reminders = s.reminders.RestoreAll(ctx)
	notifications = s.disp.RestoreScheduled(ctx)
	s.logger.Info("restored schedules",
		slog.Int("reminders", reminders),
		slog.Int("notifications", notifications))
	return reminders, notifications
}

// Daily returns the daily note generator.
func (s *Service) Daily() *periodic.Generator { return s.daily }

// Journal returns the journal generator.
func (s *Service) Journal() *journal.Generator { return s.journal }

// Reminders returns the reminder service.
func (s *Service) Reminders() *reminder.Service { return s.reminders }

// Clock returns the clock the service schedules with.
func (s *Service) Clock() clock.Clock { return s.clk }

// Now returns the current time in the configured location.
func (s *Service) Now() time.Time {
	return s.clk.Now().In(s.loc)
}

// ParseDate parses a DateLayout date in the configured location. An empty
// string means today.
func (s *Service) ParseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return s.Now(), nil
	}
	t, err := time.ParseInLocation(DateLayout, v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("noteservice: date %q: %w", v, apperr.ErrInvalidSchedule)
	}
	return t, nil
}

// CreateDaily creates the daily note for date.
func (s *Service) CreateDaily(ctx context.Context, date time.Time, interactive bool) vault.Outcome {
	return s.daily.CreateDailyNote(ctx, date, periodic.Options{Interactive: interactive})
}

// CreateJournal creates the journal for the week containing date. A nil
// createDailies uses the configured default.
func (s *Service) CreateJournal(ctx context.Context, date time.Time, createDailies *bool, interactive bool) vault.Outcome {
	dailies := s.journal.Config().CreateDailies
	if createDailies != nil {
		dailies = *createDailies
	}
	return s.journal.CreateJournalNote(ctx, date, journal.Options{Interactive: interactive, CreateDailies: dailies})
}

// Backfill creates the journals of every week between from and to.
func (s *Service) Backfill(ctx context.Context, from, to time.Time, createDailies bool) ([]vault.Outcome, error) {
	return s.journal.Backfill(ctx, from, to, createDailies)
}

// ListReminders returns every reminder with its derived status.
func (s *Service) ListReminders() []models.Reminder {
	return s.reminders.List()
}

// SnoozeReminder postpones reminder id by d, or by the default snooze
// duration when d is zero.
func (s *Service) SnoozeReminder(ctx context.Context, id string, d time.Duration) (models.Reminder, error) {
	if d == 0 {
		d = s.snooze
	}
	return s.reminders.Snooze(ctx, id, d)
}

// CompleteReminder finishes reminder id.
func (s *Service) CompleteReminder(ctx context.Context, id string) (deleted bool, err error) {
	return s.reminders.Complete(ctx, id)
}

// DeleteReminder removes reminder id and cancels its notification.
func (s *Service) DeleteReminder(ctx context.Context, id string) error {
	return s.reminders.Delete(ctx, id)
}

// ListNotifications returns the persisted ad-hoc notifications.
func (s *Service) ListNotifications() []models.ScheduledNotification {
	return s.disp.List()
}

// ScheduleNotification persists and arms an ad-hoc notification. An empty
// id gets a generated one.
func (s *Service) ScheduleNotification(ctx context.Context, n models.ScheduledNotification) (models.ScheduledNotification, error) {
	if n.ID == "" {
		n.ID = reminder.NewID("Notification_")
	}
	if !s.disp.AddScheduled(ctx, notify.Notification{ScheduledNotification: n}) {
		return n, fmt.Errorf("noteservice: schedule %s: %w", n.ID, apperr.ErrInvalidSchedule)
	}
	for _, rec := range s.disp.List() {
		if rec.ID == n.ID {
			return rec, nil
		}
	}
	return n, nil
}

// RemoveNotification cancels and forgets notification id.
func (s *Service) RemoveNotification(ctx context.Context, id string) error {
	return s.disp.Remove(ctx, id)
}

// ClickNotification runs the click handler of a shown notification.
func (s *Service) ClickNotification(id string) error {
	return s.disp.Click(id)
}

// Status returns the persisted counters of every feature.
func (s *Service) Status() Status {
	return Status{
		Daily:         s.daily.Info(),
		Journal:       s.journal.Info(),
		Vault:         s.vault.Info(),
		Reminders:     s.reminders.Registry().Count(),
		Notifications: s.disp.Info().Count,
		Pending:       s.disp.Pending(),
	}
}

// IsBadRequest reports whether err was caused by caller input.
func IsBadRequest(err error) bool {
	return reminder.IsRejected(err) || errors.Is(err, apperr.ErrMissingConfig)
}
