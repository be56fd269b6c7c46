// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes almanac commands for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/almanac/internal/noteservice"
)

const remindersURI = "almanac://reminders"

// Server wraps the MCP server with almanac tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all almanac tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"almanac",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_daily_note",
		mcp.WithDescription("Create the daily note for a date in the vault. "+
			"Uses the configured naming format, folder layout, template and reminder."),
		mcp.WithString("date", mcp.Description("Date as YYYY-MM-DD (default today)")),
	), s.createDailyNote)

	s.mcp.AddTool(mcp.NewTool("create_journal_note",
		mcp.WithDescription("Create the weekly journal for the week containing a date, "+
			"optionally creating the seven daily notes it links to."),
		mcp.WithString("date", mcp.Description("Any date of the week as YYYY-MM-DD (default today)")),
		mcp.WithBoolean("create_dailies", mcp.Description("Also create the daily notes (default from config)")),
	), s.createJournalNote)

	s.mcp.AddTool(mcp.NewTool("backfill_journals",
		mcp.WithDescription("Create the weekly journals of every week between two dates."),
		mcp.WithString("from", mcp.Required(), mcp.Description("First date as YYYY-MM-DD")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Last date as YYYY-MM-DD")),
		mcp.WithBoolean("create_dailies", mcp.Description("Also create the daily notes of each week")),
	), s.backfillJournals)

	s.mcp.AddTool(mcp.NewTool("list_reminders",
		mcp.WithDescription("List reminders with their current status (Active, InProgress, Snoozed, Late, Done)."),
	), s.listReminders)

	s.mcp.AddTool(mcp.NewTool("snooze_reminder",
		mcp.WithDescription("Postpone a reminder."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Reminder id")),
		mcp.WithNumber("minutes", mcp.Description("Minutes to snooze (default from config)"), mcp.Min(1)),
	), s.snoozeReminder)

	s.mcp.AddTool(mcp.NewTool("complete_reminder",
		mcp.WithDescription("Mark a reminder as done."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Reminder id")),
	), s.completeReminder)

	// Resource: reminder collection.
	s.mcp.AddResource(
		mcp.NewResource(remindersURI, "Reminders",
			mcp.WithResourceDescription("Every reminder with its derived status."),
			mcp.WithMIMEType("application/json"),
		),
		s.readRemindersResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

type noteArgs struct {
	Date          string `json:"date"`
	From          string `json:"from"`
	To            string `json:"to"`
	CreateDailies *bool  `json:"create_dailies"`
}

func (s *Server) createDailyNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := s.svc.ParseDate(req.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := s.svc.CreateDaily(ctx, date, false)
	if out.Status.Failed() {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", out.Path, out.Status)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", out.Status, out.Path)), nil
}

func (s *Server) createJournalNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args noteArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	date, err := s.svc.ParseDate(args.Date)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := s.svc.CreateJournal(ctx, date, args.CreateDailies, false)
	if out.Status.Failed() {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", out.Path, out.Status)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", out.Status, out.Path)), nil
}

func (s *Server) backfillJournals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args noteArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.From == "" || args.To == "" {
		return mcp.NewToolResultError("from and to are required"), nil
	}
	from, err := s.svc.ParseDate(args.From)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := s.svc.ParseDate(args.To)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dailies := s.svc.Journal().Config().CreateDailies
	if args.CreateDailies != nil {
		dailies = *args.CreateDailies
	}

	outs, err := s.svc.Backfill(ctx, from, to, dailies)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(outs)
}

func (s *Server) listReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rems := s.svc.ListReminders()
	if len(rems) == 0 {
		return mcp.NewToolResultText("no reminders"), nil
	}
	return jsonResult(rems)
}

func (s *Server) snoozeReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	minutes := req.GetInt("minutes", 0)
	if minutes < 0 {
		return mcp.NewToolResultError("minutes must be positive"), nil
	}
	rem, err := s.svc.SnoozeReminder(ctx, id, time.Duration(minutes)*time.Minute)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rem)
}

func (s *Server) completeReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	deleted, err := s.svc.CompleteReminder(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if deleted {
		return mcp.NewToolResultText(fmt.Sprintf("completed and removed: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("completed: %s", id)), nil
}

func (s *Server) readRemindersResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(s.svc.ListReminders())
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      remindersURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
