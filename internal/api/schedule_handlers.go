package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/middleware"
	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/repository"
)

// ScheduleHandler serves the weekly uptime schedule endpoints
type ScheduleHandler struct {
	servers   *repository.ServerRepository
	schedules *repository.ScheduleRepository
}

func NewScheduleHandler(servers *repository.ServerRepository, schedules *repository.ScheduleRepository) *ScheduleHandler {
	return &ScheduleHandler{
		servers:   servers,
		schedules: schedules,
	}
}

// ScheduleResponse is the decoded schedule returned to clients
type ScheduleResponse struct {
	ServerID string                `json:"server_id"`
	Enabled  bool                  `json:"enabled"`
	Timezone string                `json:"timezone"`
	Days     models.WeeklySchedule `json:"days"`
}

// UpdateScheduleRequest is the payload for replacing a server's schedule
type UpdateScheduleRequest struct {
	Enabled  bool                  `json:"enabled"`
	Timezone string                `json:"timezone"`
	Days     models.WeeklySchedule `json:"days" binding:"required"`
}

// GetSchedule returns the server's schedule, or the disabled default when
// none was ever saved.
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	serverID := c.Param("id")
	if _, err := h.servers.FindByID(serverID); err != nil {
		middleware.RespondError(c, err)
		return
	}

	sched, err := h.schedules.Get(serverID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	weekly, err := sched.Weekly()
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ScheduleResponse{
		ServerID: serverID,
		Enabled:  sched.Enabled,
		Timezone: sched.Timezone,
		Days:     weekly,
	})
}

// UpdateSchedule replaces the server's weekly schedule
func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	serverID := c.Param("id")
	if _, err := h.servers.FindByID(serverID); err != nil {
		middleware.RespondError(c, err)
		return
	}

	var req UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.Validation(err.Error()))
		return
	}
	if err := req.Days.Validate(); err != nil {
		middleware.RespondError(c, errs.Validation(err.Error()))
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		middleware.RespondError(c, errs.Validation("unknown timezone: "+timezone))
		return
	}

	sched := &models.ServerSchedule{
		ServerID: serverID,
		Enabled:  req.Enabled,
		Timezone: timezone,
	}
	if err := sched.SetWeekly(req.Days); err != nil {
		middleware.RespondError(c, err)
		return
	}
	if err := h.schedules.Save(sched); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ScheduleResponse{
		ServerID: serverID,
		Enabled:  sched.Enabled,
		Timezone: sched.Timezone,
		Days:     req.Days,
	})
}

// DeleteSchedule removes the server's schedule, reverting to the default
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	serverID := c.Param("id")
	if _, err := h.servers.FindByID(serverID); err != nil {
		middleware.RespondError(c, err)
		return
	}

	if err := h.schedules.Delete(serverID); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
