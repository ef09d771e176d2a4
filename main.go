package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"startup-hub/agent"
	"startup-hub/chat"
	"startup-hub/config"
	"startup-hub/constants"
	"startup-hub/database"
	"startup-hub/handlers"
	"startup-hub/investors"
	"startup-hub/logging"
	"startup-hub/metrics"
	"startup-hub/render"
	"startup-hub/reports"
	"startup-hub/startups"
	"startup-hub/storage"
	"startup-hub/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Logging)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("startup hub stopped")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database, logging.Component(logger, "database"))
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}

	rec := metrics.NewRecorder()
	client := agent.NewClient(&http.Client{}, logging.Component(logger, "agent"), rec, agent.Endpoints(cfg.Agents)...)
	queue := tasks.New(db, cfg.Tasks, logging.Component(logger, "tasks"), rec)
	files, err := storage.New(cfg.Storage.Dir, cfg.Storage.MaxUploadBytes)
	if err != nil {
		return err
	}

	reportSvc := reports.NewService(db, client, queue, render.New(cfg.Reports.CompressPDF),
		cfg.Reports.DispatchMode, logging.Component(logger, "reports"), rec)
	startupSvc := startups.NewService(db, client, queue, files, logging.Component(logger, "startups"))
	chatMgr := chat.NewManager(db, client, logging.Component(logger, "chat"), rec)
	investorSvc := investors.NewService(db, logging.Component(logger, "investors"))

	queue.Register(constants.TaskGenerateReport, tasks.PolicyFromConfig(cfg.Reports.Retry), reportSvc.HandleJob)
	queue.Register(constants.TaskGenerateDescription, tasks.PolicyFromConfig(cfg.Reports.DescriptionRetry), startupSvc.HandleDescriptionJob)
	if err := queue.Start(ctx); err != nil {
		return err
	}
	defer queue.Stop()

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: handlers.NewRouter(handlers.Deps{
			DB:             db,
			Logger:         logging.Component(logger, "http"),
			Metrics:        rec,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Reports:        reportSvc,
			Chat:           chatMgr,
			Investors:      investorSvc,
			Startups:       startupSvc,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Str("dispatch", cfg.Reports.DispatchMode).Msg("startup hub listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
