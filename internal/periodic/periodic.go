// Package periodic generates daily notes from a template and attaches a
// reminder to each new note.
package periodic

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

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/dateutil"
	"github.com/starford/almanac/internal/frontmatter"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/reminder"
	"github.com/starford/almanac/internal/state"
	"github.com/starford/almanac/internal/vault"
)

// JournalLinkPlaceholder is replaced in daily templates with a link to the
// weekly journal note.
const JournalLinkPlaceholder = "{{journal_link}}"

// Config holds daily note settings.
type Config struct {
	// NamingFormat is a dateutil.Format template. Literal words belong in
	// [brackets] or behind backslashes: a bare word such as "Dash" splits
	// into tokens and is rendered as a date.
	NamingFormat  string             `yaml:"naming_format" json:"naming_format"`
	DirPath       string             `yaml:"dir_path" json:"dir_path"`
	TemplatePath  string             `yaml:"template_path" json:"template_path"`
	ReminderOn    bool               `yaml:"reminder_on" json:"reminder_on"`
	ReminderTime  string             `yaml:"reminder_time" json:"reminder_time"`
	ReplacePolicy vault.Policy       `yaml:"replace_policy" json:"replace_policy"`
	AutoCreate    bool               `yaml:"auto_create" json:"auto_create"`
	Yearly        vault.TimelySubdir `yaml:"yearly" json:"yearly"`
	Monthly       vault.TimelySubdir `yaml:"monthly" json:"monthly"`
	Weekly        vault.TimelySubdir `yaml:"weekly" json:"weekly"`
}

// DefaultConfig returns the daily note defaults.
func DefaultConfig() Config {
	return Config{
		NamingFormat:  "Do ddd MMM YY",
		DirPath:       "/",
		ReminderOn:    false,
		ReminderTime:  "2100",
		ReplacePolicy: vault.ReplaceUnmodified,
		Yearly:        vault.TimelySubdir{Enabled: true, Format: `\Y\e\a\r - YY`},
		Monthly:       vault.TimelySubdir{Enabled: true, Format: `\M\o\n\t\h - MMM \o\f YY`},
		Weekly:        vault.TimelySubdir{Enabled: false, Format: `\W\e\e\k - WW \o\f YY`},
	}
}

// Validate validates the daily note settings.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.NamingFormat, validation.Required),
		validation.Field(&c.DirPath, validation.Required),
		validation.Field(&c.ReminderTime, validation.When(c.ReminderOn,
			validation.Required, validation.By(validTime))),
		validation.Field(&c.ReplacePolicy, validation.In(
			vault.ReplaceNever, vault.ReplaceAlways, vault.ReplaceUnmodified)),
	)
}

func validTime(v any) error {
	s, _ := v.(string)
	if s != "" && !dateutil.ValidTimeOfDay(s) {
		return errors.New("must be a 24-hour HHMM time")
	}
	return nil
}

// Subdirs returns the dated subfolder levels in year, month, week order.
func (c *Config) Subdirs() []vault.TimelySubdir {
	return []vault.TimelySubdir{c.Yearly, c.Monthly, c.Weekly}
}

// Notes is the part of the vault the generator writes through.
type Notes interface {
	CreateOrReplaceNote(ctx context.Context, folder, name, content string, policy vault.Policy) vault.Outcome
	ReadNote(ctx context.Context, path string) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
	OpenNote(path string)
}

// Reminders accepts new reminders and drops those of a rewritten note.
type Reminders interface {
	AddAndActivate(ctx context.Context, r models.Reminder) error
	ForgetNote(ctx context.Context, path string) ([]string, error)
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}

// Options controls a single generation call.
type Options struct {
	// Interactive marks calls made directly by the user. Interactive calls
	// report every outcome and open the note.
	Interactive bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithReminders enables reminder creation for new notes.
func WithReminders(r Reminders) Option {
	return func(g *Generator) {
		g.reminders = r
	}
}

// WithJournalNaming enables the journal link placeholder using the journal
// note naming format.
func WithJournalNaming(format string) Option {
	return func(g *Generator) {
		g.journalNaming = format
	}
}

// WithSaver persists the daily note counter.
func WithSaver(s state.Saver) Option {
	return func(g *Generator) {
		g.saver = s
	}
}

// WithInfo seeds the counter loaded at startup.
func WithInfo(info models.DailyInfo) Option {
	return func(g *Generator) {
		g.info = info
	}
}

// WithClock sets the clock used for "today".
func WithClock(clk clock.Clock) Option {
	return func(g *Generator) {
		g.clk = clk
	}
}

// WithLocation sets the zone "today" is taken in. The default is the
// clock's own zone.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		g.loc = loc
	}
}

// Generator creates daily notes.
type Generator struct {
	cfg           Config
	notes         Notes
	notices       Notifier
	reminders     Reminders
	saver         state.Saver
	clk           clock.Clock
	loc           *time.Location
	journalNaming string
	logger        *slog.Logger

	mu   sync.Mutex
	info models.DailyInfo
}

// New creates a Generator.
func New(cfg Config, notes Notes, notices Notifier, logger *slog.Logger, opts ...Option) *Generator {
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

// DailyName returns the note name (without extension) for the day of t.
func (g *Generator) DailyName(t time.Time) string {
	return dateutil.Format(g.cfg.NamingFormat, t)
}

// DailyFolder returns the folder holding the daily note for t.
func (g *Generator) DailyFolder(t time.Time) string {
	return vault.FolderPath(g.cfg.DirPath, g.cfg.Subdirs(), t)
}

// DailyPath returns the vault-relative path of the daily note for t.
func (g *Generator) DailyPath(t time.Time) string {
	return vault.JoinPath(g.DailyFolder(t), g.DailyName(t)+".md")
}

// Links returns the yesterday/tomorrow cross-link line for t. The linked
// notes need not exist.
func (g *Generator) Links(t time.Time) string {
	return fmt.Sprintf("#### [[%s|<--Yesterday's Note]] ++ [[%s|Tomorrow's Note-->]]\n",
		g.DailyName(dateutil.AddDays(t, -1)), g.DailyName(dateutil.AddDays(t, 1)))
}

// BuildContent renders the note for t from template. The template front
// matter stays on top; the cross-link line goes above and below the body.
func (g *Generator) BuildContent(template string, t time.Time) string {
	doc := frontmatter.Split(template)
	body := doc.Body
	if g.journalNaming != "" && strings.Contains(body, JournalLinkPlaceholder) {
		link := fmt.Sprintf("[[%s|Today's Journal]]",
			dateutil.FormatPeriod(g.journalNaming, t, dateutil.GranularityWeek))
		body = strings.ReplaceAll(body, JournalLinkPlaceholder, link)
	}
	links := g.Links(t)
	var sb strings.Builder
	sb.WriteString(links)
	sb.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString(links)
	return frontmatter.Join(doc.Block, sb.String())
}

// Template reads the configured template. A missing template is empty.
func (g *Generator) Template(ctx context.Context) (string, error) {
	return ReadTemplate(ctx, g.notes, g.cfg.TemplatePath)
}

// ReadTemplate reads a template note from the vault, trying path as given
// and then with a ".md" extension. An unset or missing template is empty.
func ReadTemplate(ctx context.Context, notes Notes, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	candidates := []string{path}
	if !strings.HasSuffix(path, ".md") {
		candidates = append(candidates, path+".md")
	}
	for _, p := range candidates {
		content, err := notes.ReadNote(ctx, p)
		if err == nil {
			return content, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return "", fmt.Errorf("periodic: read template %s: %w", p, err)
		}
	}
	return "", nil
}

// CreateDailyNote materializes the daily note for the day of t. It never
// fails past this boundary: every terminal failure becomes one error notice
// and is reported in the returned outcome.
func (g *Generator) CreateDailyNote(ctx context.Context, t time.Time, opts Options) vault.Outcome {
	folder := g.DailyFolder(t)
	name := g.DailyName(t)

	template, err := g.Template(ctx)
	if err != nil {
		out := vault.Outcome{Path: vault.JoinPath(folder, name+".md"), Status: vault.StatusCreateFailed, Err: err}
		g.reportFailure(out)
		return out
	}

	out := g.notes.CreateOrReplaceNote(ctx, folder, name+".md", g.BuildContent(template, t), g.cfg.ReplacePolicy)
	switch {
	case out.Status.Written():
		g.increment(ctx)
		if g.cfg.ReminderOn {
			g.addReminder(ctx, t, name, out.Path, opts)
		}
		g.logger.Info("periodic: daily note written", slog.String("path", out.Path), slog.String("status", string(out.Status)))
		if opts.Interactive {
			g.notices.Info(fmt.Sprintf("Daily note %s %s", out.Path, out.Status))
			g.notes.OpenNote(out.Path)
		}
	case out.Status == vault.StatusAlreadyExists:
		if opts.Interactive {
			g.notices.Warning(fmt.Sprintf("Daily note %s already exists", out.Path))
			g.notes.OpenNote(out.Path)
		} else {
			g.logger.Info("periodic: daily note already exists", slog.String("path", out.Path))
		}
	default:
		g.reportFailure(out)
	}
	return out
}

func (g *Generator) reportFailure(out vault.Outcome) {
	attrs := []any{slog.String("path", out.Path), slog.String("status", string(out.Status))}
	if out.Err != nil {
		attrs = append(attrs, slog.String("error", out.Err.Error()))
	}
	g.logger.Error("periodic: daily note failed", attrs...)
	g.notices.Error(fmt.Sprintf("Daily note %s: %s", out.Path, out.Status))
}

func (g *Generator) addReminder(ctx context.Context, t time.Time, name, path string, opts Options) {
	if g.reminders == nil {
		return
	}
	at, err := dateutil.ReminderInstant(g.cfg.ReminderTime, t)
	if err != nil {
		g.notices.Warning(fmt.Sprintf("Daily note reminder not set: %v", err))
		return
	}
	// A rewritten note keeps a single reminder.
	if ids, err := g.reminders.ForgetNote(ctx, path); err != nil {
		g.logger.Warn("periodic: drop old reminders failed", slog.String("path", path), slog.String("error", err.Error()))
	} else if len(ids) > 0 {
		g.logger.Debug("periodic: dropped old reminders", slog.String("path", path), slog.Int("count", len(ids)))
	}
	r := models.Reminder{
		ID:           reminder.NewID("Daily-Note_"),
		Name:         "Daily Note: " + name,
		Description:  "A reminder to work on your daily note",
		Type:         models.ReminderDaily,
		DateActiveOn: at.Format(time.RFC3339),
		TaskLengthMS: 3000,
		DeleteOnShow: true,
		DeleteOnDone: true,
		NotePath:     path,
	}
	if err := g.reminders.AddAndActivate(ctx, r); err != nil {
		if reminder.IsRejected(err) && !opts.Interactive {
			g.logger.Debug("periodic: reminder skipped", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		g.notices.Warning(fmt.Sprintf("Daily note reminder not set: %v", err))
	}
}

func (g *Generator) increment(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	info, err := state.Modify(ctx, g.saver, state.SectionDaily, g.info, func(i *models.DailyInfo) error {
		i.Count++
		return nil
	})
	if err != nil {
		g.logger.Warn("periodic: save info failed", slog.String("error", err.Error()))
		return
	}
	g.info = info
}

// Info returns the daily note counter.
func (g *Generator) Info() models.DailyInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.info
}

// EnsureToday creates today's daily note when it does not exist yet. It
// reports whether a creation was attempted.
func (g *Generator) EnsureToday(ctx context.Context) (vault.Outcome, bool) {
	now := g.now()
	exists, err := g.notes.Exists(ctx, g.DailyPath(now))
	if err != nil {
		g.logger.Warn("periodic: check today's note failed", slog.String("error", err.Error()))
		return vault.Outcome{}, false
	}
	if exists {
		return vault.Outcome{Path: g.DailyPath(now), Status: vault.StatusAlreadyExists}, false
	}
	return g.CreateDailyNote(ctx, now, Options{}), true
}

func (g *Generator) now() time.Time {
	now := g.clk.Now()
	if g.loc != nil {
		return now.In(g.loc)
	}
	return now
}
