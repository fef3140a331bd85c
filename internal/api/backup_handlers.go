package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftops/fleet/internal/backup"
	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/middleware"
	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/repository"
)

// BackupHandler serves backup create/list/delete endpoints
type BackupHandler struct {
	engine *backup.Engine
	states *repository.StateStore
}

func NewBackupHandler(engine *backup.Engine, states *repository.StateStore) *BackupHandler {
	return &BackupHandler{
		engine: engine,
		states: states,
	}
}

// CreateBackup takes a manual backup. The kind defaults to world; pass
// ?kind=full for a full archive.
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	serverID := c.Param("id")

	var info *models.BackupInfo
	var err error
	switch c.DefaultQuery("kind", string(models.BackupKindWorld)) {
	case string(models.BackupKindWorld):
		info, err = h.engine.CreateWorldBackup(serverID, models.BackupTriggerManual)
	case string(models.BackupKindFull):
		info, err = h.engine.CreateFullBackup(serverID, models.BackupTriggerManual)
	default:
		middleware.RespondError(c, errs.Validation("kind must be world or full"))
		return
	}
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// ListBackups returns the server's backups, newest first
func (h *BackupHandler) ListBackups(c *gin.Context) {
	backups, err := h.engine.List(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": backups})
}

// DeleteBackup removes one backup archive. An unknown backup ID yields 404
// without being treated as a server error.
func (h *BackupHandler) DeleteBackup(c *gin.Context) {
	deleted, err := h.engine.Delete(c.Param("id"), c.Param("backupId"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse{
			Error: "backup not found",
			Code:  errs.KindNotFound.String(),
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetBackupState returns the server's last-backup bookkeeping
func (h *BackupHandler) GetBackupState(c *gin.Context) {
	state, err := h.states.GetBackupState(c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
