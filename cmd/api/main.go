package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"leihlokal/internal/api"
	"leihlokal/internal/appctx"
	"leihlokal/internal/bootstrap"
	"leihlokal/internal/config"
	"leihlokal/internal/database"
	"leihlokal/internal/domain"
	"leihlokal/internal/events"
	"leihlokal/internal/export"
	"leihlokal/internal/google"
	"leihlokal/internal/logging"
	"leihlokal/internal/metrics"
	"leihlokal/internal/models"
	"leihlokal/internal/notify"
	"leihlokal/internal/repository"
	"leihlokal/internal/schedule"
	"leihlokal/internal/service"
	"leihlokal/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}

	store, err := initStore(ctx, cfg, redisClient, &logger)
	if err != nil {
		return err
	}
	defer store.Close()

	bus := events.NewBus()
	bootstrap.AttachBus(store, bus)
	if stopAMQP := initAMQP(cfg, bus, &logger); stopAMQP != nil {
		defer stopAMQP()
	}

	notifier := initNotifier(cfg, &logger)
	opts := schedule.Options{Policy: cfg.Schedule.Policy(), Closed: cfg.Schedule.Closed()}

	var wg sync.WaitGroup
	syncWorker := initSheetsWorker(ctx, cfg, store, opts, redisClient, &wg, &logger)

	items := service.NewItemService(store, &logger)
	if err := items.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial item load failed")
	}
	defer items.Watch(bus)()

	appCtx := appctx.New(redisClient,
		time.Duration(cfg.Context.EmployeeTTL)*time.Second,
		time.Duration(cfg.Context.SettingsTTL)*time.Second,
		logging.Component(&logger, "appctx"))
	if err := appCtx.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("app context restore failed")
	}

	states := initStateRepository(redisClient, &logger)
	deps := api.Deps{
		Store:    store,
		Grid:     service.NewGridService(store, service.NewMonthLoader(store, &logger), opts, notifier, &logger),
		Bookings: service.NewBookingService(store, syncWorker, notifier, &logger),
		Items:    items,
		Drag:     service.NewDragService(store, states, &logger),
		Context:  appCtx,
	}

	startReminder(ctx, cfg, deps, notifier, &wg, &logger)

	if db, ok := store.(*database.DB); ok && cfg.Backup.Enabled {
		backup := database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			backup.Start(ctx)
		}()
	}

	startMetrics(ctx, cfg, &logger)

	err = startServers(ctx, cfg, deps, items, store, opts, &logger)
	stop()
	wg.Wait()
	return err
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *zerolog.Logger) (domain.RecordStore, error) {
	store, err := bootstrap.OpenStore(cfg, rdb, logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Store.Driver).Msg("init store")
		return nil, err
	}

	itemsPath := os.Getenv("ITEMS_PATH")
	if itemsPath == "" {
		itemsPath = cfg.ItemsFile
	}
	items, err := bootstrap.LoadItems(itemsPath)
	if err != nil {
		_ = store.Close()
		logger.Error().Err(err).Str("items_path", itemsPath).Msg("load items")
		return nil, err
	}
	if err := bootstrap.Seed(ctx, store, items, logger); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initStateRepository(rdb *redis.Client, logger *zerolog.Logger) domain.StateRepository {
	memory := repository.NewMemoryStateRepository(time.Duration(models.DefaultStateTTL) * time.Second)
	if rdb == nil {
		return memory
	}
	primary := repository.NewRedisStateRepository(rdb, time.Duration(models.DefaultStateTTL)*time.Second)
	return repository.NewFailoverStateRepository(primary, memory, logging.Component(logger, "state"))
}

func initAMQP(cfg *config.Config, bus *events.Bus, logger *zerolog.Logger) func() {
	if !cfg.AMQP.Enabled {
		return nil
	}
	fwd, err := events.NewAMQPForwarder(cfg.AMQP.URL, cfg.AMQP.Exchange, logging.Component(logger, "amqp"))
	if err != nil {
		logger.Warn().Err(err).Msg("amqp init failed, record events stay local")
		return nil
	}
	detach := fwd.Attach(bus)
	return func() {
		detach()
		fwd.Close()
	}
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	tg, err := notify.NewTelegram(cfg.Telegram, logging.Component(logger, "telegram"))
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without alerts")
		return nil
	}
	if tg == nil {
		return nil
	}
	return tg
}

func startReminder(ctx context.Context, cfg *config.Config, deps api.Deps, notifier domain.Notifier, wg *sync.WaitGroup, logger *zerolog.Logger) {
	if notifier == nil || cfg.Telegram.ReminderTime == "" {
		return
	}
	reminder, err := notify.NewReminder(deps.Bookings, deps.Items.Names, notifier, cfg.Telegram.ReminderTime, logging.Component(logger, "reminder"))
	if err != nil {
		logger.Warn().Err(err).Msg("reminder disabled")
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		reminder.Start(ctx)
	}()
}

// initSheetsWorker starts the spreadsheet mirror. It renders months with its
// own loader so background syncs never touch the dashboard view.
func initSheetsWorker(
	ctx context.Context,
	cfg *config.Config,
	store domain.RecordStore,
	opts schedule.Options,
	rdb *redis.Client,
	wg *sync.WaitGroup,
	logger *zerolog.Logger,
) domain.SyncWorker {
	if !cfg.Google.Enabled() {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Google.SheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}
	logger.Info().Msg("google sheets connected")

	grid := service.NewGridService(store, service.NewMonthLoader(store, logger), opts, nil, logger)
	render := func(ctx context.Context, month time.Time) ([]string, [][]string, error) {
		g := grid.Month(ctx, month)
		if g.Error != "" {
			return nil, nil, errors.New(g.Error)
		}
		header, rows := export.Matrix(g.Layout)
		return header, rows, nil
	}

	w := worker.NewSheetsWorker(sheetsService, render, rdb, worker.DefaultRetryPolicy(), logging.Component(logger, "sheets-worker"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Start(ctx)
	}()
	return w
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	cfg *config.Config,
	deps api.Deps,
	items *service.ItemService,
	store domain.RecordStore,
	opts schedule.Options,
	logger *zerolog.Logger,
) error {
	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		// gRPC reads get their own loader, the HTTP grid keeps the dashboard month
		grid := service.NewGridService(store, service.NewMonthLoader(store, logger), opts, nil, logger)
		var err error
		grpcServer, err = api.NewGRPCServer(&cfg.API, api.NewScheduleService(grid, items), logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	httpServer := api.NewHTTPServer(&cfg.API, deps, logger)
	if cfg.API.HTTP.Enabled {
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	logger.Info().
		Bool("grpc", cfg.API.GRPC.Enabled).
		Bool("http", cfg.API.HTTP.Enabled).
		Int("http_port", cfg.API.HTTP.Port).
		Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if cfg.API.HTTP.Enabled {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
