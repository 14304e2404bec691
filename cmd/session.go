package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/output"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/stats"
)

var (
	sessionListMode     string
	sessionListCategory string
	sessionListDays     int
	sessionListLimit    int

	sessionEditCategory      string
	sessionEditClearCategory bool
	sessionEditMinutes       int

	sessionExportOut  string
	sessionExportDays int
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions"},
	Short:   "List and edit recorded sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionListRun(cmd.Context())
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionListRun(cmd.Context())
	},
}

var sessionEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a session's category or duration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionEditRun(cmd.Context(), args[0])
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionDeleteRun(cmd.Context(), args[0])
	},
}

var sessionExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionExportRun(cmd.Context())
	},
}

func init() {
	sessionListCmd.Flags().StringVarP(&sessionListMode, "mode", "m", "", "Only work or break sessions")
	sessionListCmd.Flags().StringVarP(&sessionListCategory, "category", "c", "", "Only sessions in this category (id or name)")
	sessionListCmd.Flags().IntVarP(&sessionListDays, "days", "d", 0, "Only sessions from the last N days")
	sessionListCmd.Flags().IntVarP(&sessionListLimit, "limit", "l", 20, "Maximum number of sessions")

	sessionEditCmd.Flags().StringVarP(&sessionEditCategory, "category", "c", "", "New category (id or name)")
	sessionEditCmd.Flags().BoolVar(&sessionEditClearCategory, "clear-category", false, "Remove the category")
	sessionEditCmd.Flags().IntVar(&sessionEditMinutes, "minutes", -1, "New duration in minutes")

	sessionExportCmd.Flags().StringVarP(&sessionExportOut, "out", "o", "", "Write to a file instead of stdout")
	sessionExportCmd.Flags().IntVarP(&sessionExportDays, "days", "d", 0, "Only sessions from the last N days")

	sessionCmd.AddCommand(sessionListCmd, sessionEditCmd, sessionDeleteCmd, sessionExportCmd)
	rootCmd.AddCommand(sessionCmd)
}

func sessionManager() (*sessions.Manager, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return sessions.NewManager(s), nil
}

// sessionLister reads history from the remote server when one is set.
type sessionLister interface {
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error)
}

func sessionListRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	filter := models.SessionFilter{
		UserID: currentUser(),
		Mode:   models.Mode(sessionListMode),
		Limit:  sessionListLimit,
	}
	if sessionListDays > 0 {
		filter.Since = time.Now().AddDate(0, 0, -sessionListDays)
	}

	var (
		src   sessionLister
		names = map[string]string{}
	)
	if c := remoteClient(); c != nil {
		src = c
		filter.CategoryID = sessionListCategory
	} else {
		mgr, err := sessionManager()
		if err != nil {
			return err
		}
		src = mgr
		if sessionListCategory != "" {
			id, err := mgr.ResolveCategory(ctx, filter.UserID, sessionListCategory)
			if err != nil {
				return err
			}
			filter.CategoryID = *id
		}
		cats, err := mgr.ListCategories(ctx, filter.UserID)
		if err != nil {
			return err
		}
		for _, c := range cats {
			names[c.ID] = c.Name
		}
	}

	list, err := src.ListSessions(ctx, filter)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ui.Info("No sessions found")
		return nil
	}

	table := ui.Table([]string{"ID", "Started", "Mode", "Duration", "Category"})
	for _, sess := range list {
		duration := stats.FormatMinutes(sess.Minutes())
		if sess.Open() {
			duration = output.Yellow("open")
		}
		category := ""
		if sess.CategoryID != nil {
			category = names[*sess.CategoryID]
			if category == "" {
				category = *sess.CategoryID
			}
		}
		_ = table.Append([]string{
			output.Cyan(sess.ID),
			sess.Start.Local().Format("2006-01-02 15:04"),
			output.ModeColor(string(sess.Mode)),
			duration,
			category,
		})
	}
	_ = table.Render()
	return nil
}

func sessionEditRun(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if sessionEditCategory != "" && sessionEditClearCategory {
		return fmt.Errorf("--category and --clear-category are mutually exclusive")
	}
	if sessionEditCategory == "" && !sessionEditClearCategory && sessionEditMinutes < 0 {
		return fmt.Errorf("nothing to change: pass --category, --clear-category or --minutes")
	}

	mgr, err := sessionManager()
	if err != nil {
		return err
	}
	sess, err := ownSession(ctx, mgr, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would edit session %s", sess.ID)
		return nil
	}

	if sessionEditCategory != "" || sessionEditClearCategory {
		var categoryID *string
		if !sessionEditClearCategory {
			categoryID, err = mgr.ResolveCategory(ctx, sess.UserID, sessionEditCategory)
			if err != nil {
				return err
			}
		}
		if err := mgr.UpdateSessionCategory(ctx, sess.ID, categoryID); err != nil {
			return err
		}
	}

	if sessionEditMinutes >= 0 {
		endedAt := sess.Start.Add(time.Duration(sessionEditMinutes) * time.Minute)
		if err := mgr.EndSession(ctx, sess.ID, endedAt, sessionEditMinutes*60); err != nil {
			return err
		}
	}

	ui.Success("Updated session %s", sess.ID)
	return nil
}

func sessionDeleteRun(ctx context.Context, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mgr, err := sessionManager()
	if err != nil {
		return err
	}
	sess, err := ownSession(ctx, mgr, id)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would delete session %s", sess.ID)
		return nil
	}
	if err := mgr.DeleteSession(ctx, sess.ID); err != nil {
		return err
	}
	ui.Success("Deleted session %s", sess.ID)
	return nil
}

// ownSession loads a session of the current user.
func ownSession(ctx context.Context, mgr *sessions.Manager, id string) (*models.Session, error) {
	sess, err := mgr.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.UserID != currentUser() {
		return nil, fmt.Errorf("session %s belongs to another user", id)
	}
	return sess, nil
}

func sessionExportRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mgr, err := sessionManager()
	if err != nil {
		return err
	}
	filter := models.SessionFilter{UserID: currentUser()}
	if sessionExportDays > 0 {
		filter.Since = time.Now().AddDate(0, 0, -sessionExportDays)
	}

	var w io.Writer = ui.Out
	if sessionExportOut != "" {
		f, err := os.Create(sessionExportOut)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		w = f
	}

	n, err := mgr.Export(ctx, w, filter)
	if err != nil {
		return err
	}
	if sessionExportOut != "" {
		ui.Success("Exported %d sessions to %s", n, sessionExportOut)
	}
	return nil
}
