package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joescharf/focus/internal/output"
	"github.com/joescharf/focus/internal/sessions"
)

var (
	categoryColor string
	categoryName  string
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"categories", "cat"},
	Short:   "Manage session categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return categoryListRun(cmd.Context())
	},
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return categoryListRun(cmd.Context())
	},
}

var categoryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return categoryAddRun(cmd.Context(), args[0])
	},
}

var categoryEditCmd = &cobra.Command{
	Use:   "edit <id|name>",
	Short: "Rename or recolor a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return categoryEditRun(cmd.Context(), args[0])
	},
}

var categoryRemoveCmd = &cobra.Command{
	Use:     "remove <id|name>",
	Aliases: []string{"rm"},
	Short:   "Remove a category; its sessions become uncategorized",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return categoryRemoveRun(cmd.Context(), args[0])
	},
}

func init() {
	categoryAddCmd.Flags().StringVar(&categoryColor, "color", "", "Hex color (default "+sessions.DefaultCategoryColor+")")
	categoryEditCmd.Flags().StringVar(&categoryColor, "color", "", "New hex color")
	categoryEditCmd.Flags().StringVar(&categoryName, "name", "", "New name")

	categoryCmd.AddCommand(categoryListCmd, categoryAddCmd, categoryEditCmd, categoryRemoveCmd)
	rootCmd.AddCommand(categoryCmd)
}

func categoryListRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mgr, err := sessionManager()
	if err != nil {
		return err
	}
	cats, err := mgr.ListCategories(ctx, currentUser())
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		ui.Info("No categories yet. Add one with 'focus category add <name>'")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Color", "Created"})
	for _, c := range cats {
		_ = table.Append([]string{
			output.Cyan(c.ID),
			c.Name,
			swatch(c.Color),
			c.CreatedAt.Local().Format("2006-01-02"),
		})
	}
	_ = table.Render()
	return nil
}

// swatch renders a hex color as a colored block followed by its code.
func swatch(hex string) string {
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return hex
	}
	return color.RGB(r, g, b).Sprint("■") + " " + hex
}

func categoryAddRun(ctx context.Context, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if dryRun {
		ui.DryRunMsg("Would add category %q", name)
		return nil
	}
	mgr, err := sessionManager()
	if err != nil {
		return err
	}
	c, err := mgr.CreateCategory(ctx, currentUser(), name, categoryColor)
	if err != nil {
		return err
	}
	ui.Success("Added category %s (%s)", c.Name, c.ID)
	return nil
}

func categoryEditRun(ctx context.Context, ref string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if categoryName == "" && categoryColor == "" {
		return fmt.Errorf("nothing to change: pass --name or --color")
	}
	mgr, err := sessionManager()
	if err != nil {
		return err
	}
	id, err := mgr.ResolveCategory(ctx, currentUser(), ref)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would update category %s", *id)
		return nil
	}
	c, err := mgr.UpdateCategory(ctx, currentUser(), *id, categoryName, categoryColor)
	if err != nil {
		return err
	}
	ui.Success("Updated category %s", c.Name)
	return nil
}

func categoryRemoveRun(ctx context.Context, ref string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mgr, err := sessionManager()
	if err != nil {
		return err
	}
	id, err := mgr.ResolveCategory(ctx, currentUser(), ref)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would remove category %s", *id)
		return nil
	}
	if err := mgr.DeleteCategory(ctx, currentUser(), *id); err != nil {
		return err
	}
	ui.Success("Removed category %s", ref)
	return nil
}
