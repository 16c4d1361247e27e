// Command armeria runs the weapons registry of a police station: the web
// interface, the JSON API and the maintenance tools around its database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/erazemk/armeria/internal/config"
	"github.com/erazemk/armeria/internal/db"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. If logPath is non-empty, all
// levels are also appended to that file. The returned cleanup is never nil.
func setupLogger(logPath string) (func() error, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	cleanup := func() error { return nil }
	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = f.Close
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

// app holds what every subcommand shares once flags are parsed.
type app struct {
	cfg      *config.Config
	closeLog func() error
}

func newApp() *app {
	return &app{closeLog: func() error { return nil }}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "armeria",
		Short:         "Weapons registry of a police station",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
				return err
			}
			closeLog, err := setupLogger(cfg.LogPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.closeLog = closeLog
			return nil
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(a),
		newInitCmd(a),
		newMigrateCmd(a),
		newImportComuniCmd(a),
		newImportLegacyCmd(a),
		newFiscalCodeCmd(a),
		newExportCmd(a),
		newDenunciaCmd(a),
		newBackupCmd(a),
	)
	return root
}

// openDB opens the configured database and brings its schema up to date.
func (a *app) openDB() (*sql.DB, error) {
	if _, err := os.Stat(a.cfg.DBPath); err != nil {
		return nil, fmt.Errorf("database %s: %w (run 'armeria init' first)", a.cfg.DBPath, err)
	}
	database, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("%s: %w", a.cfg.DBPath, err)
	}
	return database, nil
}

func main() {
	a := newApp()
	err := newRootCmd(a).Execute()
	// Runs on failure too, unlike cobra's post-run hooks.
	a.closeLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
