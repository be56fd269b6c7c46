package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/almanac/internal"
	"github.com/starford/almanac/internal/notify"
	"github.com/starford/almanac/internal/vault"
	pkgconfig "github.com/starford/almanac/pkg/config"
)

// defaultConfigFile ships with the repo and is read when --config names a
// file that does not exist.
const defaultConfigFile = "config/config.yaml"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(configPath, defaultConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

// withSession opens the vault for a one-shot command. Logs go to stderr so
// stdout only carries command output; alerts are printed after fn returns.
func withSession(ctx context.Context, cmd *cli.Command, fn func(*internal.Session) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	alerts := &notify.Memory{}
	sess, err := internal.Open(ctx,
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
		internal.WithAppSurface(alerts),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	err = fn(sess)
	for _, a := range alerts.Alerts() {
		fmt.Fprintf(os.Stderr, "%s: %s\n", a.Kind, a.Body)
	}
	return err
}

func printOutcome(o vault.Outcome) error {
	fmt.Printf("%s\t%s\n", o.Status, o.Path)
	if o.Status.Failed() {
		return fmt.Errorf("%s: %s", o.Path, o.Status)
	}
	return nil
}

func daily(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, func(sess *internal.Session) error {
		date, err := sess.Service.ParseDate(cmd.String("date"))
		if err != nil {
			return err
		}
		return printOutcome(sess.Service.CreateDaily(ctx, date, false))
	})
}

func journalNote(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, func(sess *internal.Session) error {
		date, err := sess.Service.ParseDate(cmd.String("date"))
		if err != nil {
			return err
		}
		var dailies *bool
		if cmd.Bool("no-dailies") {
			no := false
			dailies = &no
		}
		return printOutcome(sess.Service.CreateJournal(ctx, date, dailies, false))
	})
}

func backfill(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, func(sess *internal.Session) error {
		from, err := sess.Service.ParseDate(cmd.String("from"))
		if err != nil {
			return err
		}
		to, err := sess.Service.ParseDate(cmd.String("to"))
		if err != nil {
			return err
		}
		dailies := sess.Service.Journal().Config().CreateDailies && !cmd.Bool("no-dailies")

		outs, err := sess.Service.Backfill(ctx, from, to, dailies)
		var failed error
		for _, o := range outs {
			if e := printOutcome(o); e != nil {
				failed = errors.Join(failed, e)
			}
		}
		if err != nil {
			return err
		}
		return failed
	})
}

func listReminders(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, func(sess *internal.Session) error {
		rems := sess.Service.ListReminders()
		if cmd.Bool("json") {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rems)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tDUE\tNAME")
		for _, r := range rems {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Status, r.DateActiveOn, r.Name)
		}
		return tw.Flush()
	})
}

func reminderID(cmd *cli.Command) (string, error) {
	id := cmd.Args().First()
	if id == "" {
		return "", errors.New("reminder id is required")
	}
	return id, nil
}

func snoozeReminder(ctx context.Context, cmd *cli.Command) error {
	id, err := reminderID(cmd)
	if err != nil {
		return err
	}
	return withSession(ctx, cmd, func(sess *internal.Session) error {
		r, err := sess.Service.SnoozeReminder(ctx, id, cmd.Duration("for"))
		if err != nil {
			return err
		}
		fmt.Printf("snoozed %s (%d times)\n", r.ID, r.SnoozeCount)
		return nil
	})
}

func completeReminder(ctx context.Context, cmd *cli.Command) error {
	id, err := reminderID(cmd)
	if err != nil {
		return err
	}
	return withSession(ctx, cmd, func(sess *internal.Session) error {
		deleted, err := sess.Service.CompleteReminder(ctx, id)
		if err != nil {
			return err
		}
		if deleted {
			fmt.Printf("completed and removed %s\n", id)
		} else {
			fmt.Printf("completed %s\n", id)
		}
		return nil
	})
}

func deleteReminder(ctx context.Context, cmd *cli.Command) error {
	id, err := reminderID(cmd)
	if err != nil {
		return err
	}
	return withSession(ctx, cmd, func(sess *internal.Session) error {
		if err := sess.Service.DeleteReminder(ctx, id); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", id)
		return nil
	})
}

func status(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, func(sess *internal.Session) error {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sess.Service.Status())
	})
}

func initConfig(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := pkgconfig.Save(path, internal.NewDefaultConfig()); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func dateFlag(usage string) *cli.StringFlag {
	return &cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: usage + " (YYYY-MM-DD, default today)"}
}

var noDailiesFlag = &cli.BoolFlag{Name: "no-dailies", Usage: "Do not create the daily notes of the week"}

func main() {
	cmd := &cli.Command{
		Name:   "almanac",
		Usage:  "Daily notes, weekly journals and reminders for a Markdown vault",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: defaultConfigFile,
				Value:       defaultConfigFile,
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the daemon: HTTP API, alert stream, reminders and auto-creation",
				Action: serve,
			},
			{
				Name:   "daily",
				Usage:  "Create a daily note",
				Flags:  []cli.Flag{dateFlag("Day of the note")},
				Action: daily,
			},
			{
				Name:   "journal",
				Usage:  "Create the weekly journal for a week",
				Flags:  []cli.Flag{dateFlag("Any day of the week"), noDailiesFlag},
				Action: journalNote,
			},
			{
				Name:  "backfill",
				Usage: "Create the weekly journals of a date range",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "First date (YYYY-MM-DD)", Required: true},
					&cli.StringFlag{Name: "to", Usage: "Last date (YYYY-MM-DD)", Required: true},
					noDailiesFlag,
				},
				Action: backfill,
			},
			{
				Name:   "reminders",
				Usage:  "List and manage reminders",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Print as JSON"}},
				Action: listReminders,
				Commands: []*cli.Command{
					{
						Name:      "snooze",
						Usage:     "Postpone a reminder",
						ArgsUsage: "<id>",
						Flags:     []cli.Flag{&cli.DurationFlag{Name: "for", Usage: "Snooze duration (default from config)"}},
						Action:    snoozeReminder,
					},
					{
						Name:      "complete",
						Usage:     "Mark a reminder as done",
						ArgsUsage: "<id>",
						Action:    completeReminder,
					},
					{
						Name:      "delete",
						Usage:     "Delete a reminder",
						ArgsUsage: "<id>",
						Action:    deleteReminder,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Print note and reminder counters",
				Action: status,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdio",
				Action: serveMCP,
			},
			{
				Name:   "init",
				Usage:  "Write the default configuration to the config path",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"}},
				Action: initConfig,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
