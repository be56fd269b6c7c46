package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/almanac/internal/journal"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/noteservice"
	"github.com/starford/almanac/internal/notify"
	"github.com/starford/almanac/internal/periodic"
	"github.com/starford/almanac/internal/testutil"
	"github.com/starford/almanac/internal/vault"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	vaultDir, store := testutil.TestVault(t)
	clk := clock.NewFake()
	clk.Set(time.Date(2024, time.March, 20, 10, 0, 0, 0, time.UTC))

	daily := periodic.DefaultConfig()
	daily.NamingFormat = "YYYY-MM-DD"
	daily.DirPath = "Daily"
	daily.ReminderOn = true
	daily.Yearly.Enabled = false
	daily.Monthly.Enabled = false
	jr := journal.DefaultConfig()
	jr.NamingFormat = "[Journal] YYYY-MM-DD"
	jr.DirPath = "Journal"
	jr.Yearly.Enabled = false
	jr.Monthly.Enabled = false

	svc, err := noteservice.New(context.Background(), noteservice.Settings{
		Daily:        daily,
		Journal:      jr,
		Notification: notify.Settings{Enabled: true, Platform: "linux"},
		Location:     time.UTC,
	}, noteservice.Deps{
		Store:  store,
		State:  testutil.TestState(t),
		App:    &notify.Memory{},
		Clock:  clk,
		Logger: testutil.Logger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Close)

	return New(svc), vaultDir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "create_daily_note":
		result, err = srv.createDailyNote(ctx, req)
	case "create_journal_note":
		result, err = srv.createJournalNote(ctx, req)
	case "backfill_journals":
		result, err = srv.backfillJournals(ctx, req)
	case "list_reminders":
		result, err = srv.listReminders(ctx, req)
	case "snooze_reminder":
		result, err = srv.snoozeReminder(ctx, req)
	case "complete_reminder":
		result, err = srv.completeReminder(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func reminders(t *testing.T, srv *Server) []models.Reminder {
	t.Helper()
	r := callTool(t, srv, "list_reminders", map[string]interface{}{})
	if resultText(r) == "no reminders" {
		return nil
	}
	var rems []models.Reminder
	if err := json.Unmarshal([]byte(resultText(r)), &rems); err != nil {
		t.Fatalf("decode reminders: %v (%s)", err, resultText(r))
	}
	return rems
}

func TestCreateDailyNote(t *testing.T) {
	srv, dir := testServer(t)

	r := callTool(t, srv, "create_daily_note", map[string]interface{}{"date": "2024-03-21"})
	if r.IsError {
		t.Fatalf("error result: %s", resultText(r))
	}
	if text := resultText(r); text != "created: Daily/2024-03-21.md" {
		t.Errorf("result = %q", text)
	}
	if _, err := os.Stat(filepath.Join(dir, "Daily", "2024-03-21.md")); err != nil {
		t.Errorf("note not written: %v", err)
	}
}

func TestCreateDailyNote_BadDate(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_daily_note", map[string]interface{}{"date": "tomorrow"})
	if !r.IsError {
		t.Error("expected error for unparsable date")
	}
}

func TestCreateJournalNote_WithoutDailies(t *testing.T) {
	srv, dir := testServer(t)

	r := callTool(t, srv, "create_journal_note", map[string]interface{}{
		"date":           "2024-03-20",
		"create_dailies": false,
	})
	if r.IsError {
		t.Fatalf("error result: %s", resultText(r))
	}
	if text := resultText(r); text != "created: Journal/Journal 2024-03-17.md" {
		t.Errorf("result = %q", text)
	}
	if _, err := os.Stat(filepath.Join(dir, "Daily")); err == nil {
		t.Error("dailies created although disabled")
	}
}

func TestBackfillJournals(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "backfill_journals", map[string]interface{}{
		"from": "2024-02-25",
		"to":   "2024-03-10",
	})
	if r.IsError {
		t.Fatalf("error result: %s", resultText(r))
	}
	var outs []vault.Outcome
	if err := json.Unmarshal([]byte(resultText(r)), &outs); err != nil {
		t.Fatal(err)
	}
	if len(outs) != 3 {
		t.Errorf("outcomes = %d, want 3", len(outs))
	}

	r = callTool(t, srv, "backfill_journals", map[string]interface{}{"from": "2024-02-25"})
	if !r.IsError {
		t.Error("expected error when to is missing")
	}
}

func TestReminderTools(t *testing.T) {
	srv, _ := testServer(t)
	if got := resultText(callTool(t, srv, "list_reminders", map[string]interface{}{})); got != "no reminders" {
		t.Errorf("empty list = %q", got)
	}

	callTool(t, srv, "create_daily_note", map[string]interface{}{})
	rems := reminders(t, srv)
	if len(rems) != 1 {
		t.Fatalf("reminders = %d, want 1", len(rems))
	}
	id := rems[0].ID

	r := callTool(t, srv, "snooze_reminder", map[string]interface{}{"id": id, "minutes": 30})
	if r.IsError {
		t.Fatalf("snooze: %s", resultText(r))
	}
	if got := reminders(t, srv)[0]; got.Status != models.StatusSnoozed || got.TaskLengthMS != (30*time.Minute).Milliseconds() {
		t.Errorf("after snooze = %+v", got)
	}

	r = callTool(t, srv, "complete_reminder", map[string]interface{}{"id": id})
	if text := resultText(r); !strings.HasPrefix(text, "completed and removed") {
		t.Errorf("complete = %q", text)
	}
	if len(reminders(t, srv)) != 0 {
		t.Error("reminder still listed after completion")
	}
}

func TestReminderTools_Errors(t *testing.T) {
	srv, _ := testServer(t)

	if r := callTool(t, srv, "snooze_reminder", map[string]interface{}{}); !r.IsError {
		t.Error("snooze without id should fail")
	}
	if r := callTool(t, srv, "snooze_reminder", map[string]interface{}{"id": "ghost"}); !r.IsError {
		t.Error("snooze of unknown reminder should fail")
	}
	if r := callTool(t, srv, "complete_reminder", map[string]interface{}{"id": "ghost"}); !r.IsError {
		t.Error("complete of unknown reminder should fail")
	}
}

func TestRemindersResource(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_daily_note", map[string]interface{}{})

	contents, err := srv.readRemindersResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok || text.URI != remindersURI || !strings.Contains(text.Text, "Daily Note: 2024-03-20") {
		t.Errorf("resource = %+v", contents[0])
	}
}
