package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/armeria/internal/api"
	"github.com/erazemk/armeria/internal/auth"
	"github.com/erazemk/armeria/internal/backup"
	"github.com/erazemk/armeria/internal/config"
	"github.com/erazemk/armeria/internal/db"
	"github.com/erazemk/armeria/internal/model"
	"github.com/erazemk/armeria/internal/store"
	"github.com/erazemk/armeria/internal/web"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface and the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	d := config.Default()
	cmd.Flags().StringP("addr", "a", d.Addr, "listen address")
	cmd.Flags().StringP("user", "u", d.AdminUser, "admin username on first run")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	// Auto-init on first run.
	if _, err := os.Stat(cfg.DBPath); errors.Is(err, os.ErrNotExist) {
		database, password, err := initDatabase(cfg.DBPath, cfg.AdminUser)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(cfg.DBPath, cfg.AdminUser, password)
		fmt.Println()
	}

	database, err := a.openDB()
	if err != nil {
		return err
	}
	defer database.Close()
	slog.Info("database ready", "path", cfg.DBPath)

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}
	if n, err := store.PurgeRevokedTokens(ctx, database, time.Now()); err != nil {
		slog.Warn("purging expired revocations failed", "error", err)
	} else if n > 0 {
		slog.Info("expired revocations purged", "count", n)
	}

	apiRouter := api.NewRouter(database, api.Config{
		JWTSecret: jwtSecret,
		TokenTTL:  cfg.TokenTTL,
		Station:   cfg.Report.Station,
	})
	webRouter, err := web.NewRouter(database, web.Config{
		JWTSecret: jwtSecret,
		TokenTTL:  cfg.TokenTTL,
		Station:   cfg.Report.Station,
	})
	if err != nil {
		return fmt.Errorf("setting up web router: %w", err)
	}

	// API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/", webRouter)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var scheduler *backup.Scheduler
	if cfg.Backup.Schedule != "" {
		scheduler, err = backup.NewScheduler(database, cfg.Backup.Schedule, cfg.Backup.Dir, cfg.Backup.Keep)
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server started", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if scheduler != nil {
			scheduler.Stop(shutdownCtx)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("server stopped, closing database")
	return err
}

func newInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new database with an admin account",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if _, err := os.Stat(a.cfg.DBPath); err == nil {
				return fmt.Errorf("database %s already exists", a.cfg.DBPath)
			}
			database, password, err := initDatabase(a.cfg.DBPath, a.cfg.AdminUser)
			if err != nil {
				return err
			}
			database.Close()
			printInitResult(a.cfg.DBPath, a.cfg.AdminUser, password)
			return nil
		},
	}
	cmd.Flags().StringP("user", "u", config.Default().AdminUser, "admin username")
	return cmd
}

// initDatabase creates a new database, applies the migrations, and creates
// the admin user. The file is removed again if any step fails.
func initDatabase(path, adminUsername string) (_ *sql.DB, _ string, err error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err != nil {
			database.Close()
			os.Remove(path)
		}
	}()

	if err := db.Migrate(database); err != nil {
		return nil, "", fmt.Errorf("migrating schema: %w", err)
	}

	password, err := generatePassword(16)
	if err != nil {
		return nil, "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	if _, err := store.CreateUser(context.Background(), database, adminUsername, hash, model.RoleAdmin); err != nil {
		return nil, "", fmt.Errorf("creating admin user: %w", err)
	}
	return database, password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
