package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftops/fleet/internal/middleware"
	"github.com/craftops/fleet/internal/repository"
	"github.com/craftops/fleet/pkg/config"
)

func SetupRouter(
	serverHandler *ServerHandler,
	scheduleHandler *ScheduleHandler,
	backupHandler *BackupHandler,
	automationHandler *AutomationHandler,
	consoleHandler *ConsoleHandler,
	wsHandler *WebSocketHandler,
	cfg *config.Config,
) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RateLimitMiddleware(middleware.GlobalRateLimiter))

	// CORS for the dashboard
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Liveness and readiness, no rate limit concerns for probes
	router.GET("/health", func(c *gin.Context) {
		if err := repository.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Event stream for the dashboard
	router.GET("/ws", wsHandler.HandleWebSocket)
	router.GET("/api/v1/ws/stats", wsHandler.GetStats)

	v1 := router.Group("/api/v1")
	{
		servers := v1.Group("/servers")
		{
			servers.GET("", serverHandler.ListServers)
			servers.POST("", serverHandler.CreateServer)
			servers.GET("/:id", serverHandler.GetServer)
			servers.DELETE("/:id", serverHandler.DeleteServer)

			servers.POST("/:id/start", serverHandler.StartServer)
			servers.POST("/:id/stop", serverHandler.StopServer)
			servers.POST("/:id/restart", serverHandler.RestartServer)
			servers.GET("/:id/status", serverHandler.GetStatus)
			servers.GET("/:id/logs", serverHandler.GetLogs)

			servers.GET("/:id/schedule", scheduleHandler.GetSchedule)
			servers.PUT("/:id/schedule", scheduleHandler.UpdateSchedule)
			servers.DELETE("/:id/schedule", scheduleHandler.DeleteSchedule)

			expensive := middleware.RateLimitMiddleware(middleware.ExpensiveRateLimiter)
			servers.POST("/:id/backups", expensive, backupHandler.CreateBackup)
			servers.GET("/:id/backups", backupHandler.ListBackups)
			servers.DELETE("/:id/backups/:backupId", backupHandler.DeleteBackup)
			servers.GET("/:id/backups/state", backupHandler.GetBackupState)

			servers.GET("/:id/health", automationHandler.GetHealthState)
			servers.PUT("/:id/health/config", automationHandler.UpdateHealthConfig)
			servers.GET("/:id/plugins/updates", automationHandler.GetPluginUpdateState)
			servers.POST("/:id/plugins/check", automationHandler.CheckPluginUpdates)
			servers.PUT("/:id/plugins/config", automationHandler.UpdatePluginConfig)
			servers.POST("/:id/upgrade", expensive, automationHandler.UpgradeVersion)

			servers.POST("/:id/command", consoleHandler.ExecuteCommand)
			servers.GET("/:id/whitelist", consoleHandler.GetWhitelist)
			servers.POST("/:id/whitelist", consoleHandler.AddWhitelistPlayer)
			servers.DELETE("/:id/whitelist/:player", consoleHandler.RemoveWhitelistPlayer)
		}
	}

	return router
}
