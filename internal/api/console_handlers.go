package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/middleware"
	"github.com/craftops/fleet/internal/service"
)

// ConsoleHandler serves remote console and whitelist endpoints
type ConsoleHandler struct {
	console *service.ConsoleService
}

func NewConsoleHandler(console *service.ConsoleService) *ConsoleHandler {
	return &ConsoleHandler{console: console}
}

// CommandRequest is the payload for executing a console command
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// ExecuteCommand runs one console command and returns its response
func (h *ConsoleHandler) ExecuteCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.Validation(err.Error()))
		return
	}

	response, err := h.console.Execute(c.Param("id"), req.Command)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": response})
}

// GetWhitelist returns the server's whitelist entries
func (h *ConsoleHandler) GetWhitelist(c *gin.Context) {
	entries, err := h.console.Whitelist(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"whitelist": entries})
}

// WhitelistRequest is the payload for whitelist mutations
type WhitelistRequest struct {
	Player string `json:"player" binding:"required"`
}

// AddWhitelistPlayer adds a player to the whitelist
func (h *ConsoleHandler) AddWhitelistPlayer(c *gin.Context) {
	var req WhitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, errs.Validation(err.Error()))
		return
	}

	if err := h.console.AddToWhitelist(c.Param("id"), req.Player); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveWhitelistPlayer removes a player from the whitelist
func (h *ConsoleHandler) RemoveWhitelistPlayer(c *gin.Context) {
	player := c.Param("player")
	if player == "" {
		middleware.RespondError(c, errs.Validation("player name is required"))
		return
	}

	if err := h.console.RemoveFromWhitelist(c.Param("id"), player); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
