package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craftops/fleet/internal/api"
	"github.com/craftops/fleet/internal/backup"
	"github.com/craftops/fleet/internal/docker"
	"github.com/craftops/fleet/internal/external"
	"github.com/craftops/fleet/internal/monitoring"
	"github.com/craftops/fleet/internal/notify"
	"github.com/craftops/fleet/internal/rcon"
	"github.com/craftops/fleet/internal/repository"
	"github.com/craftops/fleet/internal/service"
	"github.com/craftops/fleet/internal/storage"
	"github.com/craftops/fleet/internal/websocket"
	"github.com/craftops/fleet/pkg/config"
	"github.com/craftops/fleet/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	appLogger := logger.NewLogger(logger.ParseLevel(cfg.LogLevel), os.Stdout, cfg.LogJSON)
	logger.SetDefault(appLogger)

	logger.Info("Starting application", map[string]interface{}{
		"app":   cfg.AppName,
		"debug": cfg.Debug,
		"port":  cfg.Port,
	})

	// Initialize database
	if err := repository.InitDB(cfg); err != nil {
		logger.Fatal("Failed to initialize database", err, nil)
	}
	logger.Info("Database initialized", nil)

	db := repository.GetDB()
	serverRepo := repository.NewServerRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	stateStore := repository.NewStateStore(db)

	// Container runtime
	runtime, err := docker.NewContainerService(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to container engine", err, nil)
	}
	defer runtime.Close()

	// Remote console
	dialer := &rcon.Dialer{
		Host:        cfg.RCONHost,
		DialTimeout: time.Duration(cfg.RCONDialTimeout) * time.Second,
		ExecTimeout: time.Duration(cfg.RCONExecTimeout) * time.Second,
	}
	consoleService := service.NewConsoleService(serverRepo, dialer)

	// Notifications
	notifier := notify.NewWebhookNotifier(cfg.NotifyWebhookURL)
	if notifier.Enabled() {
		logger.Info("Webhook notifications enabled", nil)
	}

	// Event hub for the dashboard
	hub := websocket.NewHub()
	go hub.Run()

	// Shared per-server locks
	locks := service.NewServerLocks()

	// Lifecycle
	lifecycleService := service.NewLifecycleService(
		serverRepo, runtime, locks,
		time.Duration(cfg.StopGraceSeconds)*time.Second,
	)
	lifecycleService.SetNotifier(notifier)
	lifecycleService.SetHub(hub)

	// Backups
	backupEngine, err := backup.NewEngine(serverRepo, stateStore, consoleService, runtime, cfg.ServersBasePath)
	if err != nil {
		logger.Fatal("Failed to initialize backup engine", err, nil)
	}
	backupEngine.SetNotifier(notifier)

	if cfg.OffsiteEnabled {
		sftpClient, err := storage.NewSFTPClient(cfg)
		if err != nil {
			logger.Error("Offsite storage unavailable, continuing without it", err, nil)
		} else {
			backupEngine.SetOffsiteStore(sftpClient)
			defer sftpClient.Close()
			logger.Info("Offsite backup storage enabled", map[string]interface{}{
				"host": cfg.OffsiteHost,
			})
		}
	}

	// Version upgrades
	upgradeService := service.NewUpgradeService(
		serverRepo, runtime, lifecycleService, backupEngine, locks,
		time.Duration(cfg.UpgradeSettleSeconds)*time.Second,
		time.Duration(cfg.ReadinessPollSeconds)*time.Second,
		cfg.ReadinessPollAttempts,
	)
	upgradeService.SetNotifier(notifier)

	// Weekly schedule reconciler
	scheduler := service.NewScheduler(
		serverRepo, scheduleRepo, stateStore, lifecycleService, backupEngine, locks,
		time.Duration(cfg.SchedulerIntervalSeconds)*time.Second,
	)
	scheduler.Start()
	defer scheduler.Stop()

	// Health monitor
	healthService := service.NewHealthService(
		serverRepo, stateStore, runtime, consoleService,
		time.Duration(cfg.HealthPollSeconds)*time.Second,
	)
	healthService.SetNotifier(notifier)

	if cfg.InfluxDBURL != "" {
		influxClient, err := storage.NewInfluxDBClient(storage.InfluxDBConfig{
			URL:    cfg.InfluxDBURL,
			Token:  cfg.InfluxDBToken,
			Org:    cfg.InfluxDBOrg,
			Bucket: cfg.InfluxDBBucket,
		})
		if err != nil {
			logger.Error("InfluxDB unavailable, health samples stay local", err, nil)
		} else {
			healthService.SetSink(influxClient)
			defer influxClient.Close()
			logger.Info("Health sample sink enabled", map[string]interface{}{
				"url": cfg.InfluxDBURL,
			})
		}
	}

	healthService.Start()
	defer healthService.Stop()

	// Plugin update checker
	catalog := external.NewCatalogClient(cfg.CatalogBaseURL)
	pluginService := service.NewPluginUpdateService(
		serverRepo, stateStore, catalog, cfg.ServersBasePath,
		time.Duration(cfg.HealthPollSeconds)*time.Second,
	)
	pluginService.SetNotifier(notifier)
	pluginService.Start()
	defer pluginService.Stop()

	// Metrics collection
	collector := monitoring.NewCollector(serverRepo, runtime, 30*time.Second)
	collector.Start()
	defer collector.Stop()

	// HTTP API
	router := api.SetupRouter(
		api.NewServerHandler(serverRepo, lifecycleService, cfg),
		api.NewScheduleHandler(serverRepo, scheduleRepo),
		api.NewBackupHandler(backupEngine, stateStore),
		api.NewAutomationHandler(serverRepo, stateStore, upgradeService, pluginService),
		api.NewConsoleHandler(consoleService),
		api.NewWebSocketHandler(hub),
		cfg,
	)

	go func() {
		logger.Info("HTTP API listening", map[string]interface{}{
			"port": cfg.Port,
		})
		if err := router.Run(":" + cfg.Port); err != nil {
			logger.Fatal("HTTP server failed", err, nil)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down", nil)
}
