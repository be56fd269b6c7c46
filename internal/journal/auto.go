package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmhodges/clock"
)

// Task is one check run by the AutoCreator.
type Task func(ctx context.Context)

// AutoCreator runs its tasks once at start and then every interval until
// its context is cancelled.
type AutoCreator struct {
	interval time.Duration
	clk      clock.Clock
	tasks    []Task
	logger   *slog.Logger
}

// NewAutoCreator creates an AutoCreator.
func NewAutoCreator(interval time.Duration, clk clock.Clock, logger *slog.Logger, tasks ...Task) *AutoCreator {
	if interval <= 0 {
		interval = time.Hour
	}
	return &AutoCreator{interval: interval, clk: clk, tasks: tasks, logger: logger}
}

// Run blocks until ctx is cancelled. A run that has started finishes even
// if ctx is cancelled meanwhile.
func (a *AutoCreator) Run(ctx context.Context) error {
	a.logger.Info("auto-create: started", slog.Duration("interval", a.interval))
	for {
		a.tick(context.WithoutCancel(ctx))

		timer := a.clk.NewTimer(a.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("auto-create: stopped")
			return nil
		case <-timer.C:
		}
	}
}

func (a *AutoCreator) tick(ctx context.Context) {
	for _, task := range a.tasks {
		a.runTask(ctx, task)
	}
}

func (a *AutoCreator) runTask(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("auto-create: task panicked", slog.Any("panic", r))
		}
	}()
	task(ctx)
}

// EnsureThisWeekTask adapts EnsureThisWeek to a Task.
func (g *Generator) EnsureThisWeekTask() Task {
	return func(ctx context.Context) {
		g.EnsureThisWeek(ctx)
	}
}
