package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/starford/almanac/internal"
	"github.com/starford/almanac/internal/mcpserver"
)

// serveMCP exposes the note and reminder commands to MCP clients on stdio.
// Schedules are left to the daemon so a reminder never fires twice.
func serveMCP(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, func(sess *internal.Session) error {
		sess.Logger.Info("mcp: serving on stdio")
		return mcpserver.New(sess.Service).ServeStdio()
	})
}
