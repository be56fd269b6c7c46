// Package journal generates weekly journal notes that link the week's
// daily notes, backfills past weeks, and keeps a home note pointing at the
// current journal.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jmhodges/clock"
	"github.com/teambition/rrule-go"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/dateutil"
	"github.com/starford/almanac/internal/frontmatter"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/periodic"
	"github.com/starford/almanac/internal/reminder"
	"github.com/starford/almanac/internal/state"
	"github.com/starford/almanac/internal/vault"
)

// Config holds journal settings.
type Config struct {
	// NamingFormat is a week-anchored dateutil.Format template; escape
	// literal words as for daily notes.
	NamingFormat string `yaml:"naming_format" json:"naming_format"`
	DirPath      string `yaml:"dir_path" json:"dir_path"`
	TemplatePath string `yaml:"template_path" json:"template_path"`
	ReminderOn   bool   `yaml:"reminder_on" json:"reminder_on"`
	ReminderTime string `yaml:"reminder_time" json:"reminder_time"`
	// Replace overrides vault_manipulation.replace_files when set.
	Replace            *bool              `yaml:"replace,omitempty" json:"replace,omitempty"`
	CreateDailies      bool               `yaml:"create_dailies" json:"create_dailies"`
	AutoCreate         bool               `yaml:"auto_create" json:"auto_create"`
	AutoCreateInterval time.Duration      `yaml:"auto_create_interval" json:"auto_create_interval"`
	HomeNotePath       string             `yaml:"home_note_path" json:"home_note_path"`
	HomeNoteAnchorID   string             `yaml:"home_note_anchor_id" json:"home_note_anchor_id"`
	Yearly             vault.TimelySubdir `yaml:"yearly" json:"yearly"`
	Monthly            vault.TimelySubdir `yaml:"monthly" json:"monthly"`
}

// DefaultConfig returns the journal defaults.
func DefaultConfig() Config {
	return Config{
		NamingFormat:       `\W\e\e\k\l\y Journ\a\l – Do MMM YY`,
		DirPath:            "/",
		ReminderOn:         true,
		ReminderTime:       "2300",
		CreateDailies:      true,
		AutoCreateInterval: time.Hour,
		HomeNoteAnchorID:   "Journal-Link",
		Yearly:             vault.TimelySubdir{Enabled: true, Format: "YYYY"},
		Monthly:            vault.TimelySubdir{Enabled: true, Format: "M MMM YY"},
	}
}

// Validate validates the journal settings.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.NamingFormat, validation.Required),
		validation.Field(&c.DirPath, validation.Required),
		validation.Field(&c.ReminderTime, validation.When(c.ReminderOn,
			validation.Required, validation.By(validTime))),
		validation.Field(&c.AutoCreateInterval, validation.When(c.AutoCreate,
			validation.Required, validation.Min(time.Minute))),
	)
}

func validTime(v any) error {
	s, _ := v.(string)
	if s != "" && !dateutil.ValidTimeOfDay(s) {
		return errors.New("must be a 24-hour HHMM time")
	}
	return nil
}

// Notes is the part of the vault the generator needs.
type Notes interface {
	periodic.Notes
	ModifyNote(ctx context.Context, path, content string) error
}

// Dailies creates and names daily notes.
type Dailies interface {
	DailyName(t time.Time) string
	CreateDailyNote(ctx context.Context, t time.Time, opts periodic.Options) vault.Outcome
}

// Options controls a single generation call.
type Options struct {
	Interactive   bool
	CreateDailies bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithDailies links journal sections to daily notes and enables cascading
// daily note creation.
func WithDailies(d Dailies) Option {
	return func(g *Generator) {
		g.dailies = d
	}
}

// WithReminders enables reminder creation for new journals.
func WithReminders(r periodic.Reminders) Option {
	return func(g *Generator) {
		g.reminders = r
	}
}

// WithSaver persists the journal counters.
func WithSaver(s state.Saver) Option {
	return func(g *Generator) {
		g.saver = s
	}
}

// WithInfo seeds the counters loaded at startup.
func WithInfo(info models.JournalInfo) Option {
	return func(g *Generator) {
		g.info = info
	}
}

// WithClock sets the clock used for "this week".
func WithClock(clk clock.Clock) Option {
	return func(g *Generator) {
		g.clk = clk
	}
}

// WithDefaultReplace sets the replace toggle used when the journal config
// does not set its own.
func WithDefaultReplace(replace bool) Option {
	return func(g *Generator) {
		g.defaultReplace = replace
	}
}

// WithLocation sets the zone "this week" is taken in. The default is the
// clock's own zone.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		g.loc = loc
	}
}

// Generator creates journal notes.
type Generator struct {
	cfg            Config
	notes          Notes
	notices        periodic.Notifier
	dailies        Dailies
	reminders      periodic.Reminders
	saver          state.Saver
	clk            clock.Clock
	loc            *time.Location
	defaultReplace bool
	logger         *slog.Logger

	mu   sync.Mutex
	info models.JournalInfo
}

// New creates a Generator.
func New(cfg Config, notes Notes, notices periodic.Notifier, logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		cfg:     cfg,
		notes:   notes,
		notices: notices,
		clk:     clock.New(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the settings the generator was built with.
func (g *Generator) Config() Config {
	return g.cfg
}

// Policy returns the replace policy for journal notes.
func (g *Generator) Policy() vault.Policy {
	replace := g.defaultReplace
	if g.cfg.Replace != nil {
		replace = *g.cfg.Replace
	}
	return vault.PolicyFor(replace)
}

// JournalName names the journal for the week containing t after the first
// day of that week.
func (g *Generator) JournalName(t time.Time) string {
	return dateutil.FormatPeriod(g.cfg.NamingFormat, t, dateutil.GranularityWeek)
}

// JournalFolder returns the folder of the journal for the week containing t.
// Journals use yearly and monthly subfolders only.
func (g *Generator) JournalFolder(t time.Time) string {
	start := dateutil.StartOfPeriod(t, dateutil.GranularityWeek)
	return vault.FolderPath(g.cfg.DirPath, []vault.TimelySubdir{g.cfg.Yearly, g.cfg.Monthly}, start)
}

// JournalPath returns the vault-relative path of the journal for t.
func (g *Generator) JournalPath(t time.Time) string {
	return vault.JoinPath(g.JournalFolder(t), g.JournalName(t)+".md")
}

func (g *Generator) dailyName(t time.Time) string {
	if g.dailies != nil {
		return g.dailies.DailyName(t)
	}
	return dateutil.Format(periodic.DefaultConfig().NamingFormat, t)
}

// Days returns the seven days of the week containing t.
func Days(t time.Time) []time.Time {
	start := dateutil.StartOfPeriod(t, dateutil.GranularityWeek)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = dateutil.AddDays(start, i)
	}
	return days
}

// BuildContent renders the journal for the week containing t.
func (g *Generator) BuildContent(template string, t time.Time) string {
	start := dateutil.StartOfPeriod(t, dateutil.GranularityWeek)
	links := fmt.Sprintf("#### [[%s|<--Last Week's Journal]] ++ [[%s|Next Week's Journal-->]]\n",
		g.JournalName(dateutil.AddDays(start, -7)), g.JournalName(dateutil.AddDays(start, 7)))

	doc := frontmatter.Split(template)
	var sb strings.Builder
	sb.WriteString(links)
	sb.WriteString(doc.Body)
	sb.WriteString("\n")
	for _, d := range Days(start) {
		fmt.Fprintf(&sb, "## [[%s]]\n  > Your entry\n\n", g.dailyName(d))
	}
	sb.WriteString(links)
	return frontmatter.Join(doc.Block, sb.String())
}

// CreateJournalNote materializes the journal for the week containing t.
// Failures become one error notice and never a returned error.
func (g *Generator) CreateJournalNote(ctx context.Context, t time.Time, opts Options) vault.Outcome {
	start := dateutil.StartOfPeriod(t, dateutil.GranularityWeek)
	folder := g.JournalFolder(start)
	name := g.JournalName(start)

	template, err := periodic.ReadTemplate(ctx, g.notes, g.cfg.TemplatePath)
	if err != nil {
		out := vault.Outcome{Path: vault.JoinPath(folder, name+".md"), Status: vault.StatusCreateFailed, Err: err}
		g.reportFailure(out)
		return out
	}

	out := g.notes.CreateOrReplaceNote(ctx, folder, name+".md", g.BuildContent(template, start), g.Policy())
	switch {
	case out.Status.Written():
		g.increment(ctx, start)
		g.logger.Info("journal: note written", slog.String("path", out.Path), slog.String("status", string(out.Status)))
		if g.cfg.ReminderOn {
			g.addReminder(ctx, start, name, out.Path, opts)
		}
		if opts.CreateDailies && g.dailies != nil {
			for _, d := range Days(start) {
				g.dailies.CreateDailyNote(ctx, d, periodic.Options{})
			}
		}
		if g.isCurrentWeek(start) {
			_ = g.UpdateHomeNote(ctx, g.now())
		}
		if opts.Interactive {
			g.notices.Info(fmt.Sprintf("Journal note %s %s", out.Path, out.Status))
			g.notes.OpenNote(out.Path)
		}
	case out.Status == vault.StatusAlreadyExists:
		if opts.Interactive {
			g.notices.Warning(fmt.Sprintf("Journal note %s already exists", out.Path))
			g.notes.OpenNote(out.Path)
		} else {
			g.logger.Info("journal: note already exists", slog.String("path", out.Path))
		}
	default:
		g.reportFailure(out)
	}
	return out
}

func (g *Generator) isCurrentWeek(start time.Time) bool {
	return sameDay(dateutil.StartOfPeriod(g.now(), dateutil.GranularityWeek), start)
}

func (g *Generator) now() time.Time {
	now := g.clk.Now()
	if g.loc != nil {
		return now.In(g.loc)
	}
	return now
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (g *Generator) reportFailure(out vault.Outcome) {
	attrs := []any{slog.String("path", out.Path), slog.String("status", string(out.Status))}
	if out.Err != nil {
		attrs = append(attrs, slog.String("error", out.Err.Error()))
	}
	g.logger.Error("journal: note failed", attrs...)
	g.notices.Error(fmt.Sprintf("Journal note %s: %s", out.Path, out.Status))
}

// addReminder schedules the journal reminder on the last day of the week.
func (g *Generator) addReminder(ctx context.Context, start time.Time, name, path string, opts Options) {
	if g.reminders == nil {
		return
	}
	at, err := dateutil.ReminderInstant(g.cfg.ReminderTime, dateutil.AddDays(start, 6))
	if err != nil {
		g.notices.Warning(fmt.Sprintf("Journal reminder not set: %v", err))
		return
	}
	if _, err := g.reminders.ForgetNote(ctx, path); err != nil {
		g.logger.Warn("journal: drop old reminders failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	r := models.Reminder{
		ID:           reminder.NewID("Journal-Note_"),
		Name:         "Journalling: " + name,
		Description:  "A reminder to work on your weekly journal",
		Type:         models.ReminderJournalling,
		DateActiveOn: at.Format(time.RFC3339),
		TaskLengthMS: 3000,
		DeleteOnShow: true,
		DeleteOnDone: true,
		NotePath:     path,
	}
	if err := g.reminders.AddAndActivate(ctx, r); err != nil {
		if reminder.IsRejected(err) && !opts.Interactive {
			g.logger.Debug("journal: reminder skipped", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		g.notices.Warning(fmt.Sprintf("Journal reminder not set: %v", err))
	}
}

func (g *Generator) increment(ctx context.Context, start time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	info, err := state.Modify(ctx, g.saver, state.SectionJournal, g.info, func(i *models.JournalInfo) error {
		i.Count++
		if i.LatestJournalDate == nil || start.After(*i.LatestJournalDate) {
			latest := start
			i.LatestJournalDate = &latest
		}
		return nil
	})
	if err != nil {
		g.logger.Warn("journal: save info failed", slog.String("error", err.Error()))
		return
	}
	g.info = info
}

// Info returns the journal counters.
func (g *Generator) Info() models.JournalInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.info
}

// HomeLink returns the home note line pointing at the section for day t in
// its journal.
func (g *Generator) HomeLink(t time.Time) string {
	return fmt.Sprintf("[[%s#%s|Today's Journal]] %%%%%s%%%%", g.JournalName(t), g.dailyName(t), g.cfg.HomeNoteAnchorID)
}

// UpdateHomeNote rewrites the single home note line containing the anchor
// id so it links to the journal section for t. Nothing happens when no home
// note is configured. A missing anchor id, home note, or anchor line is
// reported with an error notice and leaves the home note untouched.
func (g *Generator) UpdateHomeNote(ctx context.Context, t time.Time) error {
	path := strings.TrimSpace(g.cfg.HomeNotePath)
	if path == "" {
		return nil
	}
	if !strings.HasSuffix(path, ".md") {
		path += ".md"
	}
	anchor := strings.TrimSpace(g.cfg.HomeNoteAnchorID)
	if anchor == "" {
		return g.homeFailure(fmt.Errorf("journal: home note %s: anchor id: %w", path, apperr.ErrMissingConfig))
	}

	content, err := g.notes.ReadNote(ctx, path)
	if err != nil {
		return g.homeFailure(fmt.Errorf("journal: home note %s: %w", path, err))
	}
	lines := strings.Split(content, "\n")
	found := -1
	for i, line := range lines {
		if strings.Contains(line, anchor) {
			found = i
			break
		}
	}
	if found < 0 {
		return g.homeFailure(fmt.Errorf("journal: home note %s: anchor %q: %w", path, anchor, apperr.ErrNotFound))
	}
	lines[found] = g.HomeLink(t)
	if err := g.notes.ModifyNote(ctx, path, strings.Join(lines, "\n")); err != nil {
		return g.homeFailure(fmt.Errorf("journal: home note %s: %w", path, err))
	}
	return nil
}

func (g *Generator) homeFailure(err error) error {
	g.logger.Error("journal: home note not updated", slog.String("error", err.Error()))
	g.notices.Error(fmt.Sprintf("Home note not updated: %v", err))
	return err
}

// Backfill creates journals at weekly strides from start through end, then
// once more for end itself unless the last stride already landed in end's
// week. Each call is non-interactive; a failed week is reported and the
// loop moves on. It stops early only when ctx is done.
func (g *Generator) Backfill(ctx context.Context, start, end time.Time, createDailies bool) ([]vault.Outcome, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("journal: backfill: end %s before start %s: %w",
			end.Format(time.DateOnly), start.Format(time.DateOnly), apperr.ErrInvalidSchedule)
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Dtstart: start,
		Until:   end,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: backfill: %w", err)
	}

	opts := Options{CreateDailies: createDailies}
	dates := rule.All()
	if len(dates) == 0 || !sameDay(
		dateutil.StartOfPeriod(dates[len(dates)-1], dateutil.GranularityWeek),
		dateutil.StartOfPeriod(end, dateutil.GranularityWeek)) {
		dates = append(dates, end)
	}
	outcomes := make([]vault.Outcome, 0, len(dates))
	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, g.CreateJournalNote(ctx, d, opts))
	}
	g.logger.Info("journal: backfill done",
		slog.String("from", start.Format(time.DateOnly)),
		slog.String("to", end.Format(time.DateOnly)),
		slog.Int("calls", len(outcomes)))
	return outcomes, nil
}

// EnsureThisWeek creates the current week's journal when it does not exist
// yet. It reports whether a creation was attempted.
func (g *Generator) EnsureThisWeek(ctx context.Context) (vault.Outcome, bool) {
	now := g.now()
	path := g.JournalPath(now)
	exists, err := g.notes.Exists(ctx, path)
	if err != nil {
		g.logger.Warn("journal: check this week's note failed", slog.String("error", err.Error()))
		return vault.Outcome{}, false
	}
	if exists {
		return vault.Outcome{Path: path, Status: vault.StatusAlreadyExists}, false
	}
	return g.CreateJournalNote(ctx, now, Options{CreateDailies: g.cfg.CreateDailies}), true
}
