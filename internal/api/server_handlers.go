// Package api exposes the fleet's HTTP surface.
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/middleware"
	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/repository"
	"github.com/craftops/fleet/internal/service"
	"github.com/craftops/fleet/pkg/config"
)

// ServerHandler serves CRUD and lifecycle endpoints for servers
type ServerHandler struct {
	servers   *repository.ServerRepository
	lifecycle *service.LifecycleService
	cfg       *config.Config
}

func NewServerHandler(servers *repository.ServerRepository, lifecycle *service.LifecycleService, cfg *config.Config) *ServerHandler {
	return &ServerHandler{
		servers:   servers,
		lifecycle: lifecycle,
		cfg:       cfg,
	}
}

// CreateServerRequest is the payload for creating a server
type CreateServerRequest struct {
	Name       string `json:"name" binding:"required"`
	Edition    string `json:"edition"`
	Version    string `json:"version" binding:"required"`
	MemoryMB   int    `json:"memory_mb"`
	MaxPlayers int    `json:"max_players"`
}

// ListServers returns all servers
func (h *ServerHandler) ListServers(c *gin.Context) {
	servers, err := h.servers.FindAll()
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"servers": servers})
}

// GetServer returns one server with its live container state
func (h *ServerHandler) GetServer(c *gin.Context) {
	detail, err := h.lifecycle.Describe(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CreateServer provisions a new server record with allocated ports
func (h *ServerHandler) CreateServer(c *gin.Context) {
	var req CreateServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.Validation(err.Error()))
		return
	}

	edition := models.Edition(strings.ToLower(req.Edition))
	if edition == "" {
		edition = models.EditionJava
	}
	if edition != models.EditionJava && edition != models.EditionBedrock {
		middleware.RespondError(c, errs.Validation("edition must be java or bedrock"))
		return
	}

	if req.MemoryMB <= 0 {
		req.MemoryMB = 2048
	}
	if req.MaxPlayers <= 0 {
		req.MaxPlayers = 20
	}

	gamePort, rconPort, err := h.allocatePorts()
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	server := &models.GameServer{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Edition:      edition,
		Version:      req.Version,
		MemoryMB:     req.MemoryMB,
		MaxPlayers:   req.MaxPlayers,
		Port:         gamePort,
		RconPort:     rconPort,
		RconPassword: uuid.New().String(),
	}

	if err := h.servers.Create(server); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, server)
}

// DeleteServer stops a server and removes its record
func (h *ServerHandler) DeleteServer(c *gin.Context) {
	serverID := c.Param("id")

	if _, err := h.lifecycle.Stop(serverID, service.TriggerManual); err != nil && !errs.IsKind(err, errs.KindNotFound) {
		middleware.RespondError(c, err)
		return
	}

	deleted, err := h.servers.Delete(serverID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	if !deleted {
		middleware.RespondError(c, errs.NotFound("server", serverID))
		return
	}
	c.Status(http.StatusNoContent)
}

// StartServer brings a server online
func (h *ServerHandler) StartServer(c *gin.Context) {
	status, err := h.lifecycle.Start(c.Param("id"), service.TriggerManual)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// StopServer takes a server offline
func (h *ServerHandler) StopServer(c *gin.Context) {
	status, err := h.lifecycle.Stop(c.Param("id"), service.TriggerManual)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// RestartServer stops then starts a server
func (h *ServerHandler) RestartServer(c *gin.Context) {
	status, err := h.lifecycle.Restart(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetStatus reports the server's current lifecycle state
func (h *ServerHandler) GetStatus(c *gin.Context) {
	status, err := h.lifecycle.Status(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetLogs returns the server's recent console output
func (h *ServerHandler) GetLogs(c *gin.Context) {
	tail := 200
	if raw := c.Query("tail"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			middleware.RespondError(c, errs.Validation("tail must be a positive integer"))
			return
		}
		tail = parsed
	}

	logs, err := h.lifecycle.Logs(c.Param("id"), tail)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.String(http.StatusOK, logs)
}

// allocatePorts picks the lowest free game and console ports in the
// configured range.
func (h *ServerHandler) allocatePorts() (int, int, error) {
	usedPorts, err := h.servers.GetUsedPorts()
	if err != nil {
		return 0, 0, err
	}
	used := make(map[int]bool, len(usedPorts))
	for _, port := range usedPorts {
		used[port] = true
	}

	free := make([]int, 0, 2)
	for port := h.cfg.MCPortStart; port <= h.cfg.MCPortEnd && len(free) < 2; port++ {
		if !used[port] {
			free = append(free, port)
		}
	}
	if len(free) < 2 {
		return 0, 0, errs.New(errs.KindValidation, "no free ports left in the configured range")
	}
	return free[0], free[1], nil
}
