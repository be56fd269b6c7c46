// Package notify schedules notifications and delivers them to the in-app
// alert stream and the operating system.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/starford/almanac/internal/sse"
)

// AlertKind classifies a transient alert.
type AlertKind string

const (
	KindInfo         AlertKind = "info"
	KindWarning      AlertKind = "warning"
	KindError        AlertKind = "error"
	KindNotification AlertKind = "notification"
	KindSystem       AlertKind = "system"
)

// Alert is one message shown to the user.
type Alert struct {
	ID         string    `json:"id,omitempty"`
	Kind       AlertKind `json:"kind"`
	Title      string    `json:"title,omitempty"`
	Subtitle   string    `json:"subtitle,omitempty"`
	Body       string    `json:"body"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Clickable  bool      `json:"clickable,omitempty"`
}

// AppSurface shows transient in-app alerts. Implementations must not block or panic.
type AppSurface interface {
	ShowTransient(a Alert)
}

// SystemSurface shows OS-level notifications.
type SystemSurface interface {
	Notify(title, body string, silent bool) error
}

// BrokerSurface publishes alerts on the SSE stream.
type BrokerSurface struct {
	broker *sse.Broker
}

// NewBrokerSurface creates an AppSurface backed by broker.
func NewBrokerSurface(broker *sse.Broker) *BrokerSurface {
	return &BrokerSurface{broker: broker}
}

// ShowTransient publishes a as a notice.* or notification.shown event.
func (s *BrokerSurface) ShowTransient(a Alert) {
	typ := "notice." + string(a.Kind)
	if a.Kind == KindNotification {
		typ = "notification.shown"
	}
	s.broker.Publish(sse.Event{Type: typ, Data: a})
}

// MultiSurface fans an alert out to several surfaces.
type MultiSurface []AppSurface

// ShowTransient shows a on every surface.
func (m MultiSurface) ShowTransient(a Alert) {
	for _, s := range m {
		s.ShowTransient(a)
	}
}

// Desktop sends OS notifications through beeep.
type Desktop struct {
	// Icon is an optional path passed to the notification daemon.
	Icon string
}

// Notify shows a banner; non-silent notifications also play the alert sound.
func (d Desktop) Notify(title, body string, silent bool) error {
	if silent {
		return beeep.Notify(title, body, d.Icon)
	}
	return beeep.Alert(title, body, d.Icon)
}

// Memory records alerts. One-shot CLI commands use it to print what a
// daemon would have streamed.
type Memory struct {
	mu     sync.Mutex
	alerts []Alert
}

// ShowTransient records a.
func (m *Memory) ShowTransient(a Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
}

// Notify records an OS notification as a KindSystem alert.
func (m *Memory) Notify(title, body string, _ bool) error {
	m.ShowTransient(Alert{Kind: KindSystem, Title: title, Body: body})
	return nil
}

// Alerts returns a copy of everything recorded so far.
func (m *Memory) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Count returns how many alerts of kind were recorded.
func (m *Memory) Count(kind AlertKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.alerts {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Notices shows fire-and-forget informational, warning, and error messages.
type Notices struct {
	app      AppSurface
	logger   *slog.Logger
	duration time.Duration
}

// NewNotices creates Notices that stay on screen for duration.
func NewNotices(app AppSurface, logger *slog.Logger, duration time.Duration) *Notices {
	if duration <= 0 {
		duration = time.Second
	}
	return &Notices{app: app, logger: logger, duration: duration}
}

// Info shows an informational notice.
func (n *Notices) Info(msg string) {
	n.logger.Info("notice", slog.String("message", msg))
	n.show(KindInfo, msg, n.duration)
}

// Warning shows a warning notice.
func (n *Notices) Warning(msg string) {
	n.logger.Warn("notice", slog.String("message", msg))
	n.show(KindWarning, msg, 2*n.duration)
}

// Error shows an error notice.
func (n *Notices) Error(msg string) {
	n.logger.Error("notice", slog.String("message", msg))
	n.show(KindError, msg, 4*n.duration)
}

func (n *Notices) show(kind AlertKind, msg string, d time.Duration) {
	if n.app == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("notice: surface panicked", slog.Any("panic", r))
		}
	}()
	n.app.ShowTransient(Alert{Kind: kind, Body: msg, DurationMS: d.Milliseconds()})
}
