package dateutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron"

	"github.com/starford/almanac/internal/apperr"
)

// ScheduleKind tells an absolute instant apart from a recurring cron expression.
type ScheduleKind int

const (
	ScheduleAbsolute ScheduleKind = iota
	ScheduleCron
)

// Schedule is when a notification fires. The kind is decided once by
// ParseSchedule or At and never re-guessed downstream.
type Schedule struct {
	Kind ScheduleKind
	At   time.Time
	Expr string

	cron cron.Schedule
}

// localLayouts are accepted in addition to RFC 3339 and read in the caller's location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// AbsoluteSchedule returns a one-shot schedule at t.
func AbsoluteSchedule(t time.Time) Schedule {
	return Schedule{Kind: ScheduleAbsolute, At: t}
}

// ParseSchedule reads an RFC 3339 timestamp or a standard five-field cron
// expression (descriptors such as "@daily" included). Local timestamps
// without an offset are interpreted in loc.
func ParseSchedule(s string, loc *time.Location) (Schedule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Schedule{}, fmt.Errorf("%w: empty", apperr.ErrInvalidSchedule)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return AbsoluteSchedule(t), nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return AbsoluteSchedule(t), nil
		}
	}
	sched, err := cron.ParseStandard(s)
	if err != nil {
		return Schedule{}, fmt.Errorf("%w: %q: %v", apperr.ErrInvalidSchedule, s, err)
	}
	return Schedule{Kind: ScheduleCron, Expr: s, cron: sched}, nil
}

// Next returns the firing instant after now. Absolute schedules always
// return their instant, even when it lies in the past.
func (s Schedule) Next(now time.Time) time.Time {
	if s.Kind == ScheduleCron {
		if s.cron == nil {
			return time.Time{}
		}
		return s.cron.Next(now)
	}
	return s.At
}

// ValidAt reports whether s may be scheduled at now: a future instant or a cron expression.
func (s Schedule) ValidAt(now time.Time) bool {
	if s.Kind == ScheduleCron {
		return s.cron != nil
	}
	return !s.At.IsZero() && s.At.After(now)
}

// Recurring reports whether the schedule re-arms after firing.
func (s Schedule) Recurring() bool {
	return s.Kind == ScheduleCron
}

func (s Schedule) String() string {
	if s.Kind == ScheduleCron {
		return s.Expr
	}
	return s.At.Format(time.RFC3339)
}

// MarshalJSON stores the schedule in its string form.
func (s Schedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON restores a schedule written by MarshalJSON.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSchedule(raw, time.Local)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsValidFutureOrCron parses s and checks it against now.
func IsValidFutureOrCron(s string, now time.Time) bool {
	sched, err := ParseSchedule(s, now.Location())
	if err != nil {
		return false
	}
	return sched.ValidAt(now)
}
