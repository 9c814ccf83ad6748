package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/conorfennell/memoria/internal/catalog"
	"github.com/conorfennell/memoria/internal/config"
	"github.com/conorfennell/memoria/internal/identity"
	"github.com/conorfennell/memoria/internal/review"
	"github.com/conorfennell/memoria/internal/schedule"
	"github.com/conorfennell/memoria/internal/storage"
	"github.com/conorfennell/memoria/internal/web"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "memoria: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// 1. Define and parse command-line flags
	fs := pflag.NewFlagSet("memoria", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	addSource := fs.String("add-source", "", "Register a fiche source (directory or git URL) and exit")
	syncOnce := fs.Bool("sync", false, "Sync all fiche sources once and exit")
	issueToken := fs.String("issue-token", "", "Print a bearer token for the given email and exit (development)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)
	slog.SetDefault(log)

	verifier := identity.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience)
	if *issueToken != "" {
		token, err := verifier.Issue(*issueToken, 24*time.Hour)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	// 2. Open the database
	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database opened", "path", cfg.DB.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncer := catalog.NewSyncer(db, cfg.Sync.ReposDir, log)

	if *addSource != "" {
		id, err := syncer.AddSource(ctx, *addSource)
		if err != nil {
			return err
		}
		fmt.Printf("Source %d: %s\n", id, *addSource)
		return nil
	}
	if *syncOnce {
		reports, err := syncer.SyncAll(ctx)
		if err != nil {
			return err
		}
		printReports(reports)
		return nil
	}

	reviews := review.NewService(db, db,
		review.WithPolicy(&schedule.Policy{MaxInterval: cfg.Review.MaxInterval}),
		review.WithLogger(log),
	)
	srv, err := web.NewServer(db, reviews, syncer, verifier, cfg.Auth.Admins, log)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	// 3. Schedule periodic source syncs
	if cfg.Sync.Schedule != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.Sync.Schedule, func() {
			if _, err := syncer.SyncAll(ctx); err != nil {
				log.Error("scheduled sync failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule sync: %w", err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		log.Info("sync scheduled", "schedule", cfg.Sync.Schedule)
	}

	// 4. Serve until interrupted
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func printReports(reports []catalog.Report) {
	var errs int
	for _, r := range reports {
		fmt.Printf("%s: %d units, %d updated, %d deleted, %d errors\n", r.Path, r.Parsed, r.Updated, r.Deleted, len(r.Errors))
		errs += len(r.Errors)
	}
	if errs > 0 {
		fmt.Println("\nErrors:")
		for _, r := range reports {
			for _, e := range r.Errors {
				fmt.Printf("- %s\n", e)
			}
		}
	}
}
