package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/focus/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an assistant drive the timer and read streaks and stats.
Configure the client with:

  {
    "mcpServers": {
      "focus": { "command": "focus", "args": ["mcp"] }
    }
  }

Available tools: focus_timer_status, focus_timer_start, focus_timer_pause,
focus_timer_resume, focus_timer_stop, focus_streak, focus_stats,
focus_list_sessions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pid, ok := pidFile().IsRunning(); ok {
			return fmt.Errorf("the timer is owned by 'focus serve' (pid %d); stop it before starting the MCP server", pid)
		}
		s, err := getStore()
		if err != nil {
			return err
		}

		// Logs go to stderr; stdout carries the protocol.
		deps := machineDeps{store: s, writer: sessionWriter(s), log: newLogger("focus-mcp")}
		timers := deps.registry()
		defer timers.Close()

		return mcp.NewServer(s, timers, currentUser(), nil).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
