package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"Mansoor88-6/time-targets-agent/internal/cache"
	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/client"
	"Mansoor88-6/time-targets-agent/internal/config"
	"Mansoor88-6/time-targets-agent/internal/database"
	"Mansoor88-6/time-targets-agent/internal/handler"
	"Mansoor88-6/time-targets-agent/internal/period"
	"Mansoor88-6/time-targets-agent/internal/progress"
	"Mansoor88-6/time-targets-agent/internal/repository"
	"Mansoor88-6/time-targets-agent/internal/retrieval"
	"Mansoor88-6/time-targets-agent/internal/router"
	"Mansoor88-6/time-targets-agent/internal/server"
	"Mansoor88-6/time-targets-agent/internal/service"
	"Mansoor88-6/time-targets-agent/internal/targets"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 3 * time.Second

func newRunCmd() *cobra.Command {
	var (
		token            string
		strategyTomorrow bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent until interrupted.",
		Long: `Signs in, keeps profile, projects, reports and the running entry up to date,
and logs progress towards every time target. The local HTTP API is served when enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(token, strategyTomorrow)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "API token to store in the config file before starting")
	cmd.Flags().BoolVar(&strategyTomorrow, "strategy-tomorrow", false, "Plan the remaining work starting tomorrow")
	return cmd
}

func runAgent(token string, strategyTomorrow bool) error {
	cfg, log, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting time-targets agent",
		zap.String("env", cfg.Env),
		zap.String("config_path", configPath),
	)

	if token != "" {
		cfg.API.Token = token
		if err := config.Save(configPath, cfg); err != nil {
			log.Warn("Failed to save API token to config", zap.Error(err))
		} else {
			log.Info("API token saved to config")
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := database.New(cfg.StoragePath, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	apiClient := client.NewAPIClient(
		cfg.API.BaseURL,
		cfg.API.ReportsBaseURL,
		cfg.API.UserAgent,
		cfg.APITimeout(),
		log.Logger,
	)
	healthCtx, cancelHealth := context.WithTimeout(context.Background(), cfg.APITimeout())
	if err := apiClient.HealthCheck(healthCtx); err != nil {
		log.Warn("Time-tracking API is not reachable, serving cached data", zap.Error(err))
	}
	cancelHealth()

	targetStore, err := targets.NewStore(repository.NewTimeTargetRepository(db.DB), log.Logger)
	if err != nil {
		return err
	}

	retriever := retrieval.NewDataRetriever(apiClient, cache.NewStore(db.DB, log.Logger), log.Logger)
	coordinator := service.NewModelCoordinator(
		retriever,
		targetStore,
		period.NewPreferenceStore(repository.NewSettingsRepository(db.DB)),
		service.Options{
			Calendar:             calendar.New(loc),
			FeasibilityThreshold: cfg.FeasibilityThreshold(),
			RunningEntryInterval: cfg.RunningEntryInterval(),
		},
		log.Logger,
	)
	coordinator.SetStrategyStartsTomorrow(strategyTomorrow)

	cancelStatus := retriever.Status().Subscribe(func(s retrieval.ActivityStatus) {
		fields := []zap.Field{zap.Stringer("kind", s.Kind), zap.Stringer("state", s.State)}
		if s.Err != nil {
			log.Warn("Retrieval failed", append(fields, zap.Error(s.Err))...)
			return
		}
		log.Debug("Retrieval status", fields...)
	})
	defer cancelStatus()

	watcher := newProgressWatcher(coordinator, log.Logger)
	defer watcher.stop()
	cancelIndex := coordinator.OnIndexEvent(func(e service.IndexEvent) {
		log.Debug("Project index updated",
			zap.Int("projects", e.Index.Len()),
			zap.Int("with_targets", e.Index.CountWithTargets()),
			zap.Bool("incremental", e.Update != nil),
		)
		watcher.notify(e.Index.SortedIDs()[:e.Index.CountWithTargets()])
	})
	defer cancelIndex()

	cred := cfg.Credential()
	if cred == nil {
		log.Warn("No API credentials configured, set api.token or api.email and api.password")
	}
	if err := coordinator.Start(cred); err != nil {
		return fmt.Errorf("failed to start model coordinator: %w", err)
	}

	var httpServer *server.Server
	if cfg.Server.Enabled {
		api := router.New(
			handler.NewTargetHandler(coordinator, log.Logger),
			handler.NewStatusHandler(retriever, coordinator, log.Logger),
			log.Logger,
		)
		httpServer = server.New(cfg.Server.Port, api, log.Logger)
		if err := httpServer.Start(); err != nil {
			coordinator.Stop()
			return err
		}
	} else {
		log.Info("HTTP server disabled in configuration")
	}

	log.Info("Time-targets agent started",
		zap.String("api_url", cfg.API.BaseURL),
		zap.String("timezone", loc.String()),
	)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Warn("HTTP server shutdown error", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		coordinator.Stop()
		watcher.stop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("Shutdown timeout reached")
	}

	log.Info("Time-targets agent stopped")
	return nil
}

// progressWatcher logs progress changes of every project that has a target
type progressWatcher struct {
	coordinator *service.ModelCoordinator
	logger      *zap.Logger
	ids         chan []int64
	done        chan struct{}
	cancels     map[int64]func()

	mu      sync.Mutex
	stopped bool
}

func newProgressWatcher(coordinator *service.ModelCoordinator, logger *zap.Logger) *progressWatcher {
	w := &progressWatcher{
		coordinator: coordinator,
		logger:      logger,
		ids:         make(chan []int64, 16),
		done:        make(chan struct{}),
		cancels:     make(map[int64]func()),
	}
	go w.loop()
	return w
}

// notify hands the projects with targets to the watcher without blocking the publisher
func (w *progressWatcher) notify(ids []int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	select {
	case w.ids <- append([]int64(nil), ids...):
	default:
		w.logger.Debug("Progress watcher busy, dropping index update")
	}
}

func (w *progressWatcher) loop() {
	defer close(w.done)
	for ids := range w.ids {
		wanted := make(map[int64]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
			if _, ok := w.cancels[id]; !ok {
				w.cancels[id] = w.watch(id)
			}
		}
		for id, cancel := range w.cancels {
			if !wanted[id] {
				cancel()
				delete(w.cancels, id)
			}
		}
	}
	for _, cancel := range w.cancels {
		cancel()
	}
}

func (w *progressWatcher) watch(projectID int64) func() {
	tracker := w.coordinator.ProgressTracker(projectID)
	cancelAvailability := tracker.SubscribeAvailability(func(available bool) {
		if !available {
			w.logger.Info("Progress unavailable", zap.Int64("project_id", projectID))
		}
	})
	cancelProgress := tracker.Subscribe(func(p progress.Progress) {
		fields := []zap.Field{
			zap.Int64("project_id", projectID),
			zap.Duration("worked", p.WorkedTime),
			zap.Duration("remaining", p.RemainingTimeToTarget),
			zap.Duration("worked_today", p.TimeWorkedToday),
		}
		if p.DayBaselineAdjustedToProgress.Valid {
			fields = append(fields, zap.Duration("per_day", p.DayBaselineAdjustedToProgress.Duration))
		}
		if p.Feasibility != nil {
			fields = append(fields, zap.String("feasibility", string(p.Feasibility.Level)))
		}
		w.logger.Info("Progress updated", fields...)
	})
	return func() {
		cancelProgress()
		cancelAvailability()
	}
}

func (w *progressWatcher) stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.ids)
	}
	w.mu.Unlock()
	<-w.done
}
