// Package reminder owns the persisted reminder collection and turns
// reminders into scheduled notifications.
package reminder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmhodges/clock"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/dateutil"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/state"
)

// Registry is the single owner of the reminder collection in this process.
// Every mutation re-reads the persisted collection, applies the change and
// writes the whole collection back before it becomes visible, so writes
// from other processes sharing the state file are kept. A failed save
// leaves the collection unchanged.
type Registry struct {
	saver state.Saver
	clk   clock.Clock

	mu   sync.Mutex
	info models.ReminderInfo
}

// NewRegistry creates a registry seeded with the collection loaded at startup.
func NewRegistry(saver state.Saver, clk clock.Clock, info models.ReminderInfo) *Registry {
	return &Registry{saver: saver, clk: clk, info: info}
}

// EffectiveDue returns when r should fire: the snooze instant plus the task
// length for snoozed reminders, DateActiveOn otherwise.
func EffectiveDue(r models.Reminder, loc *time.Location) (dateutil.Schedule, error) {
	if r.Status == models.StatusSnoozed && r.DateLastSnoozed != nil {
		return dateutil.AbsoluteSchedule(r.DateLastSnoozed.Add(r.TaskLength())), nil
	}
	return dateutil.ParseSchedule(r.DateActiveOn, loc)
}

// StatusAt derives the status of r at now. Active and snoozed reminders
// whose absolute due instant has passed are Late.
func StatusAt(r models.Reminder, now time.Time) models.ReminderStatus {
	switch r.Status {
	case models.StatusActive, models.StatusSnoozed, "":
		due, err := EffectiveDue(r, now.Location())
		if err == nil && !due.Recurring() && !due.At.After(now) {
			return models.StatusLate
		}
		if r.Status == "" {
			return models.StatusActive
		}
	}
	return r.Status
}

// Add inserts r. The id must be unused and DateActiveOn must be a future
// instant or a cron expression; otherwise nothing changes.
func (g *Registry) Add(ctx context.Context, r models.Reminder) error {
	now := g.clk.Now()
	if r.Status == "" {
		r.Status = models.StatusActive
	}
	if r.DateCreated.IsZero() {
		r.DateCreated = now
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("reminder: add %s: %w", r.ID, err)
	}
	if !dateutil.IsValidFutureOrCron(r.DateActiveOn, now) {
		return fmt.Errorf("reminder: add %s: %w: %q", r.ID, apperr.ErrInvalidSchedule, r.DateActiveOn)
	}

	return g.modify(ctx, func(info *models.ReminderInfo) error {
		if indexOf(info.Reminders, r.ID) >= 0 {
			return fmt.Errorf("reminder: add %s: %w", r.ID, apperr.ErrAlreadyExists)
		}
		info.Reminders = append(info.Reminders, r)
		info.Count++
		return nil
	})
}

// Update replaces the reminder with the same id.
func (g *Registry) Update(ctx context.Context, r models.Reminder) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("reminder: update %s: %w", r.ID, err)
	}
	return g.mutate(ctx, r.ID, func(cur *models.Reminder) error {
		*cur = r
		return nil
	})
}

// Get returns the reminder with id.
func (g *Registry) Get(id string) (models.Reminder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := indexOf(g.info.Reminders, id)
	if i < 0 {
		return models.Reminder{}, fmt.Errorf("reminder: get %s: %w", id, apperr.ErrNotFound)
	}
	return g.info.Reminders[i], nil
}

// List returns every reminder with its status derived at the current time.
func (g *Registry) List() []models.Reminder {
	now := g.clk.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.Reminder, len(g.info.Reminders))
	for i, r := range g.info.Reminders {
		r.Status = StatusAt(r, now)
		out[i] = r
	}
	return out
}

// Count returns the persisted reminder count.
func (g *Registry) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.info.Count
}

// Delete removes the reminder with id and decrements the count.
func (g *Registry) Delete(ctx context.Context, id string) error {
	return g.modify(ctx, func(info *models.ReminderInfo) error {
		i := indexOf(info.Reminders, id)
		if i < 0 {
			return fmt.Errorf("reminder: delete %s: %w", id, apperr.ErrNotFound)
		}
		info.Reminders = append(info.Reminders[:i], info.Reminders[i+1:]...)
		info.Count--
		return nil
	})
}

// Snooze postpones the reminder so it becomes due extra after now.
func (g *Registry) Snooze(ctx context.Context, id string, extra time.Duration) (models.Reminder, error) {
	if extra <= 0 {
		return models.Reminder{}, fmt.Errorf("reminder: snooze %s: %w: non-positive duration", id, apperr.ErrInvalidSchedule)
	}
	now := g.clk.Now()
	var out models.Reminder
	err := g.mutate(ctx, id, func(r *models.Reminder) error {
		if r.Status == models.StatusDone {
			return fmt.Errorf("reminder: snooze %s: %w: already done", id, apperr.ErrConflict)
		}
		r.DateLastSnoozed = &now
		r.TaskLengthMS = extra.Milliseconds()
		r.SnoozeCount++
		r.Status = models.StatusSnoozed
		out = *r
		return nil
	})
	return out, err
}

// Complete finishes the reminder. Reminders marked delete-on-done are
// removed and deleted is true; others move to Done.
func (g *Registry) Complete(ctx context.Context, id string) (deleted bool, err error) {
	now := g.clk.Now()
	err = g.modify(ctx, func(info *models.ReminderInfo) error {
		i := indexOf(info.Reminders, id)
		if i < 0 {
			return fmt.Errorf("reminder: complete %s: %w", id, apperr.ErrNotFound)
		}
		if info.Reminders[i].DeleteOnDone {
			info.Reminders = append(info.Reminders[:i], info.Reminders[i+1:]...)
			info.Count--
			deleted = true
			return nil
		}
		info.Reminders[i].Status = models.StatusDone
		info.Reminders[i].DateCompleted = &now
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// SetStatus stores status for the reminder with id.
func (g *Registry) SetStatus(ctx context.Context, id string, status models.ReminderStatus) error {
	return g.mutate(ctx, id, func(r *models.Reminder) error {
		r.Status = status
		return nil
	})
}

// ForgetNote deletes every reminder attached to path and returns their ids.
func (g *Registry) ForgetNote(ctx context.Context, path string) ([]string, error) {
	path = strings.TrimLeft(path, "/")
	var removed []string
	err := g.modify(ctx, func(info *models.ReminderInfo) error {
		removed = nil
		kept := info.Reminders[:0]
		for _, r := range info.Reminders {
			if r.NotePath != "" && strings.TrimLeft(r.NotePath, "/") == path {
				removed = append(removed, r.ID)
				info.Count--
				continue
			}
			kept = append(kept, r)
		}
		info.Reminders = kept
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (g *Registry) mutate(ctx context.Context, id string, fn func(*models.Reminder) error) error {
	return g.modify(ctx, func(info *models.ReminderInfo) error {
		i := indexOf(info.Reminders, id)
		if i < 0 {
			return fmt.Errorf("reminder: %s: %w", id, apperr.ErrNotFound)
		}
		return fn(&info.Reminders[i])
	})
}

// modify applies fn to the latest persisted collection and makes the result
// current once it is stored.
func (g *Registry) modify(ctx context.Context, fn func(*models.ReminderInfo) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	seed := models.ReminderInfo{
		Count:     g.info.Count,
		Reminders: append([]models.Reminder(nil), g.info.Reminders...),
	}
	next, err := state.Modify(ctx, g.saver, state.SectionReminder, seed, fn)
	if err != nil {
		return err
	}
	g.info = next
	return nil
}

func indexOf(rems []models.Reminder, id string) int {
	for i, r := range rems {
		if r.ID == id {
			return i
		}
	}
	return -1
}
