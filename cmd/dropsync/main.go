package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/timmy/dropsync/internal/api"
	"github.com/timmy/dropsync/internal/clock"
	"github.com/timmy/dropsync/internal/config"
	"github.com/timmy/dropsync/internal/domain"
	"github.com/timmy/dropsync/internal/hasher"
	"github.com/timmy/dropsync/internal/logger"
	"github.com/timmy/dropsync/internal/remote"
	"github.com/timmy/dropsync/internal/repository"
	"github.com/timmy/dropsync/internal/service"
)

func main() {
	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "run":
		runServer(args)
	case "trigger":
		runTrigger(args)
	case "run-once":
		runOnce(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q. Commands: run, trigger, run-once\n", cmd)
		os.Exit(2)
	}
}

// app bundles the wired-up components every subcommand needs.
type app struct {
	cfg       *config.Config
	logger    *logger.Logger
	scheduler *service.Scheduler
	runs      *repository.RunRepository
	logs      *repository.IngestionLogRepository
}

// buildApp loads configuration and wires the full stack. Any failure
// here is fatal: there is nothing sensible to run with a half-built
// pipeline.
func buildApp(configPath string) *app {
	appLogger := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(appLogger)

	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	for _, dir := range []string{cfg.Ingestion.StagingDir, cfg.Ingestion.ArchiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			appLogger.WithError(err).WithField("dir", dir).Fatal("Failed to create working directory")
		}
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	runRepo := repository.NewRunRepository(db)
	logRepo := repository.NewIngestionLogRepository(db)
	recordRepo := repository.NewRecordRepository(db)

	source, err := remote.NewSource(&cfg.Remote)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize remote source")
	}

	clk := clock.SystemClock{}
	job := service.NewSyncJob(source, service.NewLogIndex(logRepo), clk, service.SyncJobConfig{
		Folder:       cfg.Remote.Folder,
		StagingDir:   cfg.Ingestion.StagingDir,
		LookbackDays: cfg.Ingestion.LookbackDays,
		MaxRetries:   cfg.Schedule.MaxRetries,
		RetryDelay:   cfg.Schedule.RetryDelay(),
	}, appLogger)

	loader := service.NewLoaderService(
		db, logRepo, recordRepo,
		hasher.SHA256Hasher{}, clk,
		cfg.Ingestion.ArchiveDir, appLogger,
	)
	tracker := service.NewRunTracker(runRepo, clk)

	scheduler, err := service.NewScheduler(&cfg.Schedule, job, loader, tracker, clk, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Invalid schedule configuration")
	}

	return &app{
		cfg:       cfg,
		logger:    appLogger,
		scheduler: scheduler,
		runs:      runRepo,
		logs:      logRepo,
	}
}

// runServer starts the scheduling loop and the status API, then blocks
// until SIGINT/SIGTERM triggers a cooperative shutdown.
func runServer(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	a := buildApp(*configPath)
	defer logger.Sync()

	router := api.SetupRouter(a.scheduler, a.runs, a.logs, a.logger, a.cfg.Server.Mode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: router,
	}

	go func() {
		a.logger.WithField("port", a.cfg.Server.Port).Info("Starting status API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Fatal("Failed to start status API")
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := a.scheduler.ScheduleAndRun(); err != nil {
			a.logger.WithError(err).Error("Scheduler stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info("Received shutdown signal")
	a.scheduler.Shutdown()
	<-schedDone

	if err := srv.Close(); err != nil {
		a.logger.WithError(err).Warn("Status API close failed")
	}
	a.logger.Info("Exited")
}

// runTrigger fires one run immediately. With -force it starts even if
// another run is in flight.
func runTrigger(args []string) {
	fs := flag.NewFlagSet("trigger", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	force := fs.Bool("force", false, "Run even if another run is in flight")
	fs.Parse(args)

	a := buildApp(*configPath)
	defer logger.Sync()

	summary, err := a.scheduler.Trigger(*force)
	reportAndExit(a, summary, err)
}

// runOnce executes exactly one run and exits; used for cron-external
// invocation and smoke testing.
func runOnce(args []string) {
	fs := flag.NewFlagSet("run-once", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	a := buildApp(*configPath)
	defer logger.Sync()

	summary, err := a.scheduler.RunOnce()
	reportAndExit(a, summary, err)
}

// reportAndExit prints the run outcome and maps it to an exit code: only
// a run that ends in error status (or never produced a record) fails the
// process. Partial runs warn about the failed files and exit zero.
func reportAndExit(a *app, summary *service.RunSummary, err error) {
	if err != nil {
		if summary == nil || summary.Record == nil {
			a.logger.WithError(err).Error("Run failed")
			os.Exit(1)
		}
		// Aborted run: record closed with error status below
	}

	rec := summary.Record
	a.logger.WithFields(logger.Fields{
		"run_id":  rec.ID,
		"found":   rec.FilesFound,
		"loaded":  rec.FilesLoaded,
		"skipped": rec.Skipped,
		"failed":  rec.Failed,
		"rows":    rec.RowsIngested,
		"status":  rec.Status,
	}).Info("Run finished")

	if rec.Status == domain.RunStatusPartial {
		fmt.Fprintf(os.Stderr, "warning: %d file(s) failed:\n", len(summary.FailedFiles))
		for _, name := range summary.FailedFiles {
			fmt.Fprintf(os.Stderr, "  %s\n", name)
		}
	}
	if rec.Status == domain.RunStatusError {
		os.Exit(1)
	}
}
