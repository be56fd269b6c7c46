package notify

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/jmhodges/clock"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/dateutil"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/state"
)

// Notification is a scheduled notification together with the callbacks
// that only live in memory.
type Notification struct {
	models.ScheduledNotification

	RunOnShow       func()
	InternalOnClick func()
	ExternalOnClick func()
}

// Settings controls whether and where notifications are shown.
type Settings struct {
	// Enabled is the global notifications switch.
	Enabled bool
	// System allows OS-level notifications.
	System bool
	// AppDuration is how long in-app notifications stay visible when a
	// notification does not set its own length.
	AppDuration time.Duration
	// Platform is a GOOS value; empty means the running platform.
	Platform string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSystemSurface sets the OS notification surface.
func WithSystemSurface(s SystemSurface) DispatcherOption {
	return func(d *Dispatcher) {
		d.system = s
	}
}

// WithSaver persists ad-hoc scheduled notifications.
func WithSaver(s state.Saver) DispatcherOption {
	return func(d *Dispatcher) {
		d.saver = s
	}
}

// WithNotificationInfo seeds the persisted collection loaded at startup.
func WithNotificationInfo(info models.NotificationInfo) DispatcherOption {
	return func(d *Dispatcher) {
		d.info = info
	}
}

// WithClock sets the clock used to validate schedules.
func WithClock(clk clock.Clock) DispatcherOption {
	return func(d *Dispatcher) {
		d.clk = clk
	}
}

// WithSettings applies notification settings.
func WithSettings(s Settings) DispatcherOption {
	return func(d *Dispatcher) {
		d.settings = s
	}
}

// Dispatcher turns notifications into scheduler jobs and shows them when they fire.
type Dispatcher struct {
	sched    *Scheduler
	app      AppSurface
	system   SystemSurface
	saver    state.Saver
	clk      clock.Clock
	logger   *slog.Logger
	settings Settings

	mu     sync.Mutex
	info   models.NotificationInfo
	clicks map[string]func()
}

// NewDispatcher creates a Dispatcher that schedules on sched and shows alerts on app.
func NewDispatcher(sched *Scheduler, app AppSurface, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sched:    sched,
		app:      app,
		clk:      clock.New(),
		logger:   logger,
		settings: Settings{Enabled: true, AppDuration: time.Second},
		clicks:   make(map[string]func()),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.settings.Platform == "" {
		d.settings.Platform = runtime.GOOS
	}
	return d
}

func mobile(platform string) bool {
	return platform == "android" || platform == "ios"
}

// Enabled reports whether notifications can be scheduled at all.
func (d *Dispatcher) Enabled() bool {
	return d.settings.Enabled && !mobile(d.settings.Platform)
}

func (d *Dispatcher) systemEnabled() bool {
	return d.system != nil && d.settings.System && d.Enabled()
}

// Activate registers n with the scheduler under n.ID, replacing any job
// already registered for that id, and reports whether a job was armed.
// When notifications are disabled it does nothing and returns false. A date
// that is neither a future instant nor a cron expression is rejected with
// apperr.ErrInvalidSchedule.
func (d *Dispatcher) Activate(n Notification) (bool, error) {
	if !d.Enabled() {
		d.logger.Debug("dispatcher: notifications disabled, not activating", slog.String("id", n.ID))
		return false, nil
	}
	now := d.clk.Now()
	sched, err := dateutil.ParseSchedule(n.DateAndTime, now.Location())
	if err != nil {
		return false, err
	}
	if !sched.ValidAt(now) {
		return false, fmt.Errorf("%w: %s is not in the future", apperr.ErrInvalidSchedule, n.DateAndTime)
	}
	if !d.sched.Schedule(n.ID, sched, func() { d.fire(n) }) {
		return false, fmt.Errorf("%w: %s has no future firing", apperr.ErrInvalidSchedule, n.DateAndTime)
	}
	d.logger.Debug("dispatcher: activated", slog.String("id", n.ID), slog.String("at", sched.String()))
	return true, nil
}

func (d *Dispatcher) fire(n Notification) {
	d.Send(n)
	if !n.DeleteOnShow {
		return
	}
	if sched, err := dateutil.ParseSchedule(n.DateAndTime, d.clk.Now().Location()); err == nil && sched.Recurring() {
		d.sched.Cancel(n.ID)
	}
	if err := d.removeRecord(context.Background(), n.ID); err != nil {
		d.logger.Warn("dispatcher: remove shown notification failed", slog.String("id", n.ID), slog.String("error", err.Error()))
	}
}

// Send shows n right away. In-app alerts are published first, then
// RunOnShow runs, then the click handler is attached. OS notifications are
// attempted only on desktop platforms with system notifications on, and
// their failures are logged, never returned.
func (d *Dispatcher) Send(n Notification) {
	if n.Location.ShowsInApp() && d.app != nil {
		length := n.Length
		if length <= 0 {
			length = d.settings.AppDuration
		}
		d.app.ShowTransient(Alert{
			ID:         n.ID,
			Kind:       KindNotification,
			Title:      n.Title,
			Subtitle:   n.Subtitle,
			Body:       n.Body,
			DurationMS: length.Milliseconds(),
			Clickable:  n.InternalOnClick != nil || n.ExternalOnClick != nil,
		})
	}
	if n.Location.ShowsInSystem() && d.systemEnabled() {
		body := n.Body
		if n.Subtitle != "" {
			body = n.Subtitle + "\n" + n.Body
		}
		if err := d.system.Notify(n.Title, body, n.Silent); err != nil {
			d.logger.Warn("dispatcher: system notification failed", slog.String("id", n.ID), slog.String("error", err.Error()))
		}
	}

	d.runOnShow(n)

	click := n.InternalOnClick
	if click == nil {
		click = n.ExternalOnClick
	}
	if click != nil {
		d.mu.Lock()
		d.clicks[n.ID] = click
		d.mu.Unlock()
	}
}

func (d *Dispatcher) runOnShow(n Notification) {
	if n.RunOnShow == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher: run on show panicked", slog.String("id", n.ID), slog.Any("panic", r))
		}
	}()
	n.RunOnShow()
}

// Click runs the click handler attached when notification id was shown.
func (d *Dispatcher) Click(id string) error {
	d.mu.Lock()
	fn, ok := d.clicks[id]
	delete(d.clicks, id)
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("dispatcher: click %s: %w", id, apperr.ErrNotFound)
	}
	fn()
	return nil
}

// AddScheduled validates n, activates it and persists it. Invalid
// notifications are logged and dropped; the return value reports whether n
// was kept. A record is stored only once activation succeeded, and a failed
// store cancels the job again.
func (d *Dispatcher) AddScheduled(ctx context.Context, n Notification) bool {
	if n.Location == "" {
		n.Location = models.LocationBoth
	}
	if n.Type == "" {
		n.Type = models.NotificationScheduled
	}
	if err := n.Validate(); err != nil {
		d.logger.Warn("dispatcher: dropped invalid notification", slog.String("id", n.ID), slog.String("error", err.Error()))
		return false
	}
	if !dateutil.IsValidFutureOrCron(n.DateAndTime, d.clk.Now()) {
		d.logger.Warn("dispatcher: dropped notification with invalid date",
			slog.String("id", n.ID), slog.String("date_and_time", n.DateAndTime))
		return false
	}
	armed, err := d.Activate(n)
	if err != nil {
		d.logger.Warn("dispatcher: activate notification failed", slog.String("id", n.ID), slog.String("error", err.Error()))
		return false
	}
	if err := d.putRecord(ctx, n.ScheduledNotification); err != nil {
		d.logger.Warn("dispatcher: persist notification failed", slog.String("id", n.ID), slog.String("error", err.Error()))
		if armed {
			d.sched.Cancel(n.ID)
		}
		return false
	}
	return true
}

// Remove cancels any pending job for id and drops its persisted record.
func (d *Dispatcher) Remove(ctx context.Context, id string) error {
	cancelled := d.sched.Cancel(id)
	d.mu.Lock()
	delete(d.clicks, id)
	d.mu.Unlock()
	found, err := d.dropRecord(ctx, id)
	if err != nil {
		return err
	}
	if !cancelled && !found {
		return fmt.Errorf("dispatcher: remove %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Cancel stops the pending job for id without touching persisted records.
func (d *Dispatcher) Cancel(id string) bool {
	return d.sched.Cancel(id)
}

// Pending returns the ids of armed jobs.
func (d *Dispatcher) Pending() []string {
	return d.sched.Pending()
}

// List returns the persisted ad-hoc notifications.
func (d *Dispatcher) List() []models.ScheduledNotification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.ScheduledNotification, len(d.info.Notifications))
	copy(out, d.info.Notifications)
	return out
}

// Info returns the persisted notification collection.
func (d *Dispatcher) Info() models.NotificationInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	info := d.info
	info.Notifications = append([]models.ScheduledNotification(nil), d.info.Notifications...)
	return info
}

// RestoreScheduled re-activates persisted notifications after a restart and
// returns how many jobs were armed. Records whose instant passed while the
// process was down are dropped. With notifications disabled every record is
// kept and nothing is armed.
func (d *Dispatcher) RestoreScheduled(ctx context.Context) int {
	restored := 0
	for _, rec := range d.List() {
		armed, err := d.Activate(Notification{ScheduledNotification: rec})
		if err == nil {
			if armed {
				restored++
			}
			continue
		}
		d.logger.Warn("dispatcher: dropping stale notification", slog.String("id", rec.ID), slog.String("error", err.Error()))
		if rmErr := d.removeRecord(ctx, rec.ID); rmErr != nil {
			d.logger.Warn("dispatcher: remove stale notification failed", slog.String("id", rec.ID), slog.String("error", rmErr.Error()))
		}
	}
	return restored
}

func (d *Dispatcher) putRecord(ctx context.Context, rec models.ScheduledNotification) error {
	return d.modify(ctx, func(info *models.NotificationInfo) error {
		for i, n := range info.Notifications {
			if n.ID == rec.ID {
				info.Notifications[i] = rec
				return nil
			}
		}
		info.Notifications = append(info.Notifications, rec)
		info.Count++
		return nil
	})
}

func (d *Dispatcher) removeRecord(ctx context.Context, id string) error {
	_, err := d.dropRecord(ctx, id)
	return err
}

func (d *Dispatcher) dropRecord(ctx context.Context, id string) (bool, error) {
	found := false
	err := d.modify(ctx, func(info *models.NotificationInfo) error {
		found = false
		for i, n := range info.Notifications {
			if n.ID == id {
				info.Notifications = append(info.Notifications[:i], info.Notifications[i+1:]...)
				info.Count--
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

// modify applies fn to the latest persisted collection and only then makes
// the result current.
func (d *Dispatcher) modify(ctx context.Context, fn func(*models.NotificationInfo) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	seed := models.NotificationInfo{
		Count:         d.info.Count,
		Notifications: append([]models.ScheduledNotification(nil), d.info.Notifications...),
	}
	next, err := state.Modify(ctx, d.saver, state.SectionNotification, seed, fn)
	if err != nil {
		return err
	}
	d.info = next
	return nil
}
