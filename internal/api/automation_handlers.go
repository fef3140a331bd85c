package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/middleware"
	"github.com/craftops/fleet/internal/repository"
	"github.com/craftops/fleet/internal/service"
)

// AutomationHandler serves health monitoring, plugin update and version
// upgrade endpoints.
type AutomationHandler struct {
	servers  *repository.ServerRepository
	states   *repository.StateStore
	upgrades *service.UpgradeService
	plugins  *service.PluginUpdateService
}

func NewAutomationHandler(
	servers *repository.ServerRepository,
	states *repository.StateStore,
	upgrades *service.UpgradeService,
	plugins *service.PluginUpdateService,
) *AutomationHandler {
	return &AutomationHandler{
		servers:  servers,
		states:   states,
		upgrades: upgrades,
		plugins:  plugins,
	}
}

// GetHealthState returns the server's current health verdict
func (h *AutomationHandler) GetHealthState(c *gin.Context) {
	serverID := c.Param("id")
	if _, err := h.servers.FindByID(serverID); err != nil {
		middleware.RespondError(c, err)
		return
	}

	state, err := h.states.GetHealthState(serverID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// HealthConfigRequest is the payload for tuning a server's health checks
type HealthConfigRequest struct {
	Enabled          *bool `json:"enabled"`
	IntervalSeconds  *int  `json:"interval_seconds"`
	FailureThreshold *int  `json:"failure_threshold"`
}

// UpdateHealthConfig adjusts the server's health check settings
func (h *AutomationHandler) UpdateHealthConfig(c *gin.Context) {
	serverID := c.Param("id")
	if _, err := h.servers.FindByID(serverID); err != nil {
		middleware.RespondError(c, err)
		return
	}

	var req HealthConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.Validation(err.Error()))
		return
	}

	cfg, err := h.states.GetHealthCheckConfig(serverID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.IntervalSeconds != nil {
		if *req.IntervalSeconds < 10 {
			middleware.RespondError(c, errs.Validation("interval_seconds must be at least 10"))
			return
		}
		cfg.IntervalSeconds = *req.IntervalSeconds
	}
	if req.FailureThreshold != nil {
		if *req.FailureThreshold < 1 {
			middleware.RespondError(c, errs.Validation("failure_threshold must be at least 1"))
			return
		}
		cfg.FailureThreshold = *req.FailureThreshold
	}

	if err := h.states.SaveHealthCheckConfig(cfg); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// GetPluginUpdateState returns the last plugin check result
func (h *AutomationHandler) GetPluginUpdateState(c *gin.Context) {
	serverID := c.Param("id")
	if _, err := h.servers.FindByID(serverID); err != nil {
		middleware.RespondError(c, err)
		return
	}

	state, err := h.states.GetPluginUpdateState(serverID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	updates, err := state.Updates()
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"server_id":       serverID,
		"last_check_time": state.LastCheckTime,
		"updates":         updates,
	})
}

// PluginConfigRequest is the payload for tuning plugin update checks
type PluginConfigRequest struct {
	Enabled         *bool `json:"enabled"`
	IntervalSeconds *int  `json:"interval_seconds"`
	AutoApply       *bool `json:"auto_apply"`
}

// UpdatePluginConfig adjusts the server's plugin update settings
func (h *AutomationHandler) UpdatePluginConfig(c *gin.Context) {
	serverID := c.Param("id")
	if _, err := h.servers.FindByID(serverID); err != nil {
		middleware.RespondError(c, err)
		return
	}

	var req PluginConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.Validation(err.Error()))
		return
	}

	cfg, err := h.states.GetPluginAutoUpdateConfig(serverID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.IntervalSeconds != nil {
		if *req.IntervalSeconds < 60 {
			middleware.RespondError(c, errs.Validation("interval_seconds must be at least 60"))
			return
		}
		cfg.IntervalSeconds = *req.IntervalSeconds
	}
	if req.AutoApply != nil {
		cfg.AutoApply = *req.AutoApply
	}

	if err := h.states.SavePluginAutoUpdateConfig(cfg); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// CheckPluginUpdates runs a plugin update check right now
func (h *AutomationHandler) CheckPluginUpdates(c *gin.Context) {
	server, err := h.servers.FindByID(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	findings, err := h.plugins.CheckServer(server, false)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updates": findings})
}

// UpgradeRequest is the payload for a version upgrade. Backup defaults to
// true; pass false to skip the pre-upgrade safety backup.
type UpgradeRequest struct {
	Version string `json:"version" binding:"required"`
	Backup  *bool  `json:"backup"`
}

// UpgradeVersion moves the server to a new game version
func (h *AutomationHandler) UpgradeVersion(c *gin.Context) {
	var req UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.Validation(err.Error()))
		return
	}

	withBackup := req.Backup == nil || *req.Backup
	result, err := h.upgrades.Upgrade(c.Param("id"), req.Version, withBackup)
	if err != nil {
		if result != nil {
			// Stop, backup and version write may already be durable by the
			// time a later step fails; report them with the error.
			c.JSON(http.StatusMultiStatus, gin.H{
				"error":  err.Error(),
				"result": result,
			})
			return
		}
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
