package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/focus/internal/logger"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/output"
	"github.com/joescharf/focus/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "focus",
	Short: "Focus timer - work/break sessions, streaks and stats",
	Long: `focus runs a work/break timer and records every session.
It tracks daily streaks against a minute threshold, and shows stats,
a yearly heatmap, levels and badges. Sessions live in a local SQLite
database or on a focus server.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return statusRun(cmd.Context())
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/focus/config.yaml)")
	rootCmd.PersistentFlags().StringP("user", "u", "", "User to act as (default from config)")
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func initConfig() {
	// A .env in the working directory is optional.
	_ = godotenv.Load()

	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FOCUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default, rooted at dir.
func setDefaults(dir string) {
	viper.SetDefault("state_dir", dir)
	viper.SetDefault("db_path", filepath.Join(dir, "focus.db"))
	viper.SetDefault("user", defaultUser())
	viper.SetDefault("timer.work_minutes", models.DefaultWorkMinutes)
	viper.SetDefault("timer.break_minutes", models.DefaultBreakMinutes)
	viper.SetDefault("timer.tick_interval", "250ms")
	viper.SetDefault("timer.restart_on_reset", true)
	viper.SetDefault("streak.threshold_minutes", models.DefaultStreakThresholdMinutes)
	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("serve.allowed_origins", []string{"*"})
	viper.SetDefault("remote.url", "")
	viper.SetDefault("remote.timeout", "10s")
	viper.SetDefault("outbox.interval", "5s")
	viper.SetDefault("outbox.batch_size", 50)
	viper.SetDefault("log.level", "warn")
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The store opens lazily so config/version run without a database.
}

// currentUser is the user every command acts as.
func currentUser() string {
	if u := strings.TrimSpace(viper.GetString("user")); u != "" {
		return u
	}
	return defaultUser()
}

// newLogger returns the structured logger for long-running components.
// Verbose output lowers the level to debug.
func newLogger(service string) zerolog.Logger {
	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	return logger.New(service, level)
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx := rootCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// userSettings returns the user's stored settings. A user with nothing
// stored gets the configured timer and streak defaults, saved so every
// surface agrees on them.
func userSettings(ctx context.Context, s store.Store, user string) (*models.Settings, error) {
	set, err := s.GetSettings(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !set.UpdatedAt.IsZero() {
		return set, nil
	}

	set = models.DefaultSettings(user)
	set.WorkMinutes = positiveOr(viper.GetInt("timer.work_minutes"), models.DefaultWorkMinutes)
	set.BreakMinutes = positiveOr(viper.GetInt("timer.break_minutes"), models.DefaultBreakMinutes)
	set.StreakThresholdMinutes = positiveOr(viper.GetInt("streak.threshold_minutes"), models.DefaultStreakThresholdMinutes)
	if dryRun {
		return set, nil
	}
	if err := s.SaveSettings(ctx, set); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return set, nil
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
