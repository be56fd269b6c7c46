package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/notify"
)

// NewID returns a unique reminder id with the given prefix, e.g. "Daily-Note_".
func NewID(prefix string) string {
	return prefix + uuid.NewString()
}

// Service joins the registry with the notification dispatcher.
type Service struct {
	reg    *Registry
	disp   *notify.Dispatcher
	clk    clock.Clock
	open   func(path string)
	logger *slog.Logger
}

// NewService creates a Service. open is called with a reminder's note path
// when the reminder is shown; it may be nil.
func NewService(reg *Registry, disp *notify.Dispatcher, clk clock.Clock, open func(path string), logger *slog.Logger) *Service {
	return &Service{reg: reg, disp: disp, clk: clk, open: open, logger: logger}
}

// Registry returns the underlying registry.
func (s *Service) Registry() *Registry {
	return s.reg
}

// AddAndActivate stores r and schedules its notification.
func (s *Service) AddAndActivate(ctx context.Context, r models.Reminder) error {
	if err := s.reg.Add(ctx, r); err != nil {
		return err
	}
	return s.Activate(ctx, r.ID)
}

// Activate schedules the notification for reminder id at its effective due
// instant, replacing any earlier job for the same id.
func (s *Service) Activate(_ context.Context, id string) error {
	_, err := s.arm(id)
	return err
}

// arm reports whether a job was registered; it is false without error when
// notifications are disabled.
func (s *Service) arm(id string) (bool, error) {
	r, err := s.reg.Get(id)
	if err != nil {
		return false, err
	}
	due, err := EffectiveDue(r, s.clk.Now().Location())
	if err != nil {
		return false, fmt.Errorf("reminder: activate %s: %w", id, err)
	}
	n := notify.Notification{
		ScheduledNotification: models.ScheduledNotification{
			ID:           r.ID,
			Name:         r.Name,
			Title:        r.Name,
			Body:         r.Description,
			Type:         models.NotificationReminder,
			DateAndTime:  due.String(),
			Location:     models.LocationBoth,
			DeleteOnShow: r.DeleteOnShow,
			DeleteOnDone: r.DeleteOnDone,
		},
		RunOnShow: func() { s.onShow(id) },
	}
	if r.NotePath != "" && s.open != nil {
		path := r.NotePath
		n.InternalOnClick = func() { s.open(path) }
	}
	armed, err := s.disp.Activate(n)
	if err != nil {
		return false, fmt.Errorf("reminder: activate %s: %w", id, err)
	}
	return armed, nil
}

// onShow runs on the scheduler's job goroutine, outside any registry lock.
func (s *Service) onShow(id string) {
	ctx := context.Background()
	r, err := s.reg.Get(id)
	if err != nil {
		return
	}
	if r.DeleteOnShow {
		if err := s.reg.Delete(ctx, id); err != nil {
			s.logger.Warn("reminder: delete on show failed", slog.String("id", id), slog.String("error", err.Error()))
		}
	} else if err := s.reg.SetStatus(ctx, id, models.StatusInProgress); err != nil {
		s.logger.Warn("reminder: mark shown failed", slog.String("id", id), slog.String("error", err.Error()))
	}
	if r.NotePath != "" && s.open != nil {
		s.open(r.NotePath)
	}
}

// RestoreAll re-derives scheduler jobs from the persisted reminders. It is
// called once at startup and returns how many jobs were armed; with
// notifications disabled that is zero. Reminders
// whose instant passed while the process was down stay in the registry and
// show up as Late.
func (s *Service) RestoreAll(ctx context.Context) int {
	armed := 0
	for _, r := range s.reg.List() {
		if r.Status == models.StatusDone || r.Status == models.StatusLate {
			continue
		}
		ok, err := s.arm(r.ID)
		if err != nil {
			s.logger.Warn("reminder: not restored", slog.String("id", r.ID), slog.String("error", err.Error()))
			continue
		}
		if ok {
			armed++
		}
	}
	return armed
}

// Snooze postpones reminder id by extra from now and re-schedules it.
func (s *Service) Snooze(ctx context.Context, id string, extra time.Duration) (models.Reminder, error) {
	r, err := s.reg.Snooze(ctx, id, extra)
	if err != nil {
		return models.Reminder{}, err
	}
	if err := s.Activate(ctx, id); err != nil {
		s.logger.Warn("reminder: re-activate after snooze failed", slog.String("id", id), slog.String("error", err.Error()))
	}
	return r, nil
}

// Complete finishes reminder id and cancels its pending notification.
func (s *Service) Complete(ctx context.Context, id string) (deleted bool, err error) {
	deleted, err = s.reg.Complete(ctx, id)
	if err != nil {
		return false, err
	}
	s.disp.Cancel(id)
	return deleted, nil
}

// Delete removes reminder id and cancels its pending notification.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.disp.Cancel(id)
	return s.reg.Delete(ctx, id)
}

// ForgetNote drops reminders whose note was removed from the vault.
func (s *Service) ForgetNote(ctx context.Context, path string) ([]string, error) {
	ids, err := s.reg.ForgetNote(ctx, path)
	for _, id := range ids {
		s.disp.Cancel(id)
	}
	return ids, err
}

// List returns every reminder with derived status.
func (s *Service) List() []models.Reminder {
	return s.reg.List()
}

// Get returns one reminder with derived status.
func (s *Service) Get(id string) (models.Reminder, error) {
	r, err := s.reg.Get(id)
	if err != nil {
		return models.Reminder{}, err
	}
	r.Status = StatusAt(r, s.clk.Now())
	return r, nil
}

// IsRejected reports whether err means the reminder was refused at the
// boundary rather than lost to an I/O failure.
func IsRejected(err error) bool {
	return errors.Is(err, apperr.ErrInvalidSchedule) || errors.Is(err, apperr.ErrInvalidTime)
}
