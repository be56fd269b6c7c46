package dateutil

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/starford/almanac/internal/apperr"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFormat(t *testing.T) {
	sunday := date(2024, time.March, 17)
	cases := []struct {
		tpl  string
		at   time.Time
		want string
	}{
		{"Do MMM YY", sunday, "17th Mar 24"},
		{"Year - YY", sunday, "Year - 24"},
		{"Month - MMM", sunday, "Month - Mar"},
		{`\Y\e\a\r - YY`, sunday, "Year - 24"},
		{`\M\o\n\t\h - MMM \o\f YY`, sunday, "Month - Mar of 24"},
		{`\W\e\e\k - WW \o\f YY`, sunday, "Week - 11 of 24"},
		{`\W\e\e\k\l\y Journ\a\l – Do MMM YY`, sunday, "Weekly Journal – 17th Mar 24"},
		{"Do ddd MMM YY", sunday, "17th Sun Mar 24"},
		{"YYYY-MM-DD", date(2024, time.January, 5), "2024-01-05"},
		{"YYYYMMDD", date(2024, time.January, 5), "20240105"},
		{"[Week] w", sunday, "Week 12"},
		{"M MMM YY", sunday, "3 Mar 24"},
		{"MMMM dddd", date(2023, time.December, 31), "December Sunday"},
		{"Do", date(2024, time.March, 1), "1st"},
		{"Do", date(2024, time.March, 2), "2nd"},
		{"Do", date(2024, time.March, 3), "3rd"},
		{"Do", date(2024, time.March, 11), "11th"},
		{"Do", date(2024, time.March, 22), "22nd"},
		{"HH:mm A", time.Date(2024, 3, 17, 21, 5, 0, 0, time.UTC), "21:05 PM"},
		{"h:mm a", time.Date(2024, 3, 17, 0, 30, 0, 0, time.UTC), "12:30 am"},
		{"unclosed [bracket", sunday, "unclosed [bracket"},
		// A bare word made only of tokens is a format, not text.
		{"Dash YY", sunday, "17am012 24"},
		{"[Dash] YY", sunday, "Dash 24"},
	}
	for _, tc := range cases {
		if got := Format(tc.tpl, tc.at); got != tc.want {
			t.Errorf("Format(%q, %s) = %q, want %q", tc.tpl, tc.at.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestFormat_Deterministic(t *testing.T) {
	at := date(2024, time.March, 17)
	for _, tpl := range []string{"Do ddd MMM YY", "gggg-ww", "GGGG-WW", `\W\e\e\k - WW`} {
		first := Format(tpl, at)
		for i := 0; i < 5; i++ {
			if got := Format(tpl, at); got != first {
				t.Fatalf("Format(%q) changed between calls: %q vs %q", tpl, first, got)
			}
		}
	}
}

func TestWeek_YearBoundary(t *testing.T) {
	cases := []struct {
		at       time.Time
		wantYear int
		wantWeek int
	}{
		{date(2024, time.December, 29), 2025, 1},
		{date(2025, time.January, 4), 2025, 1},
		{date(2025, time.January, 5), 2025, 2},
		{date(2024, time.March, 17), 2024, 12},
		{date(2024, time.January, 1), 2024, 1},
	}
	for _, tc := range cases {
		y, w := Week(tc.at)
		if y != tc.wantYear || w != tc.wantWeek {
			t.Errorf("Week(%s) = %d/%d, want %d/%d", tc.at.Format("2006-01-02"), y, w, tc.wantYear, tc.wantWeek)
		}
	}
}

func TestStartOfPeriod(t *testing.T) {
	at := time.Date(2024, time.March, 20, 15, 42, 7, 9, time.UTC)
	cases := []struct {
		g    Granularity
		want time.Time
	}{
		{GranularityDay, date(2024, time.March, 20)},
		{GranularityWeek, date(2024, time.March, 17)},
		{GranularityMonth, date(2024, time.March, 1)},
		{GranularityYear, date(2024, time.January, 1)},
	}
	for _, tc := range cases {
		if got := StartOfPeriod(at, tc.g); !got.Equal(tc.want) {
			t.Errorf("StartOfPeriod(%s) = %s, want %s", tc.g, got, tc.want)
		}
	}
}

func TestStartOfWeek_Properties(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	base := time.Date(2023, time.January, 1, 13, 0, 0, 0, loc)
	for i := 0; i < 800; i++ {
		d := base.AddDate(0, 0, i).Add(time.Duration(i%24) * time.Hour)
		start := StartOfPeriod(d, GranularityWeek)
		if start.After(d) {
			t.Fatalf("start %s after %s", start, d)
		}
		if d.Sub(start) >= 8*24*time.Hour {
			t.Fatalf("start %s more than a week before %s", start, d)
		}
		if start.Weekday() != WeekStart {
			t.Fatalf("start %s is a %s", start, start.Weekday())
		}
		if again := StartOfPeriod(start, GranularityWeek); !again.Equal(start) {
			t.Fatalf("not idempotent: %s -> %s", start, again)
		}
	}
}

func TestReminderInstant_AllValid(t *testing.T) {
	day := time.Date(2024, time.March, 17, 8, 13, 45, 123, time.UTC)
	for h := 0; h < 24; h++ {
		for m := 0; m < 60; m++ {
			s := fmt.Sprintf("%02d%02d", h, m)
			got, err := ReminderInstant(s, day)
			if err != nil {
				t.Fatalf("ReminderInstant(%q): %v", s, err)
			}
			if got.Hour() != h || got.Minute() != m || got.Second() != 0 || got.Nanosecond() != 0 {
				t.Fatalf("ReminderInstant(%q) = %s", s, got)
			}
			if got.Day() != 17 {
				t.Fatalf("ReminderInstant(%q) moved the day: %s", s, got)
			}
		}
	}
}

func TestReminderInstant_Invalid(t *testing.T) {
	for _, s := range []string{"", "2400", "2360", "930", "09:30", "abcd", "12345", "-100", "2500"} {
		if _, err := ReminderInstant(s, time.Now()); !errors.Is(err, apperr.ErrInvalidTime) {
			t.Errorf("ReminderInstant(%q) err = %v, want ErrInvalidTime", s, err)
		}
	}
}

func TestParseSchedule(t *testing.T) {
	now := time.Date(2024, time.March, 17, 12, 0, 0, 0, time.UTC)

	abs, err := ParseSchedule("2024-03-17T21:00:00Z", time.UTC)
	if err != nil {
		t.Fatalf("ParseSchedule absolute: %v", err)
	}
	if abs.Kind != ScheduleAbsolute || !abs.ValidAt(now) {
		t.Errorf("absolute schedule = %+v", abs)
	}
	if abs.Recurring() {
		t.Error("absolute schedule must not recur")
	}

	past, _ := ParseSchedule("2024-03-17T09:00:00Z", time.UTC)
	if past.ValidAt(now) {
		t.Error("past instant should be invalid")
	}

	c, err := ParseSchedule("30 21 * * *", time.UTC)
	if err != nil {
		t.Fatalf("ParseSchedule cron: %v", err)
	}
	if c.Kind != ScheduleCron || !c.ValidAt(now) {
		t.Errorf("cron schedule = %+v", c)
	}
	next := c.Next(now)
	if next.Hour() != 21 || next.Minute() != 30 || next.Day() != 17 {
		t.Errorf("cron next = %s", next)
	}

	if _, err := ParseSchedule("not a date", time.UTC); !errors.Is(err, apperr.ErrInvalidSchedule) {
		t.Errorf("garbage err = %v", err)
	}
}

func TestSchedule_JSONRoundTrip(t *testing.T) {
	s, err := ParseSchedule("@daily", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	data, err := s.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var back Schedule
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatal(err)
	}
	if back.Kind != ScheduleCron || back.Expr != "@daily" {
		t.Errorf("round trip = %+v", back)
	}
}

func TestIsValidFutureOrCron(t *testing.T) {
	now := time.Date(2024, time.March, 17, 12, 0, 0, 0, time.UTC)
	if !IsValidFutureOrCron("2024-03-18T00:00:00Z", now) {
		t.Error("future instant should be valid")
	}
	if IsValidFutureOrCron("2024-03-16T00:00:00Z", now) {
		t.Error("past instant should be invalid")
	}
	if !IsValidFutureOrCron("0 9 * * 1", now) {
		t.Error("cron should be valid")
	}
	if IsValidFutureOrCron("61 9 * * 1", now) {
		t.Error("bad cron should be invalid")
	}
}
