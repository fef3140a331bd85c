// Package backup creates, lists and deletes world and full archives for
// managed servers.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/monitoring"
	"github.com/craftops/fleet/internal/repository"
	"github.com/craftops/fleet/pkg/logger"
)

// ConsoleExecutor issues a single remote-console command against a server.
// The engine uses it to suspend world saves around world archives.
type ConsoleExecutor interface {
	Execute(serverID, command string) (string, error)
}

// RunningProber samples whether a server's container is running
type RunningProber interface {
	Status(serverID string) (models.ServerStatus, error)
}

// Notifier is the fire-and-forget outbound notification collaborator
type Notifier interface {
	Notify(serverID, serverName, trigger, sizeText string, success bool)
}

// OffsiteStore uploads archives to remote storage
type OffsiteStore interface {
	Upload(localPath, remoteName string) (string, error)
}

// Engine creates tar.gz archives of server data. Archives live under
// <base>/.backups/<serverID>/ and are identified by their filename, an
// opaque filesystem-safe token.
type Engine struct {
	servers    *repository.ServerRepository
	states     *repository.StateStore
	console    ConsoleExecutor
	prober     RunningProber
	notifier   Notifier
	offsite    OffsiteStore
	serversDir string
	backupsDir string
}

func NewEngine(
	servers *repository.ServerRepository,
	states *repository.StateStore,
	console ConsoleExecutor,
	prober RunningProber,
	serversDir string,
) (*Engine, error) {
	backupsDir := filepath.Join(serversDir, ".backups")
	if err := os.MkdirAll(backupsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}

	return &Engine{
		servers:    servers,
		states:     states,
		console:    console,
		prober:     prober,
		serversDir: serversDir,
		backupsDir: backupsDir,
	}, nil
}

// SetNotifier wires the outbound notification collaborator
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// SetOffsiteStore wires optional offsite archive storage
func (e *Engine) SetOffsiteStore(s OffsiteStore) {
	e.offsite = s
}

// CreateWorldBackup archives the world directory only. The server may stay
// running; world saves are suspended for the duration of the copy so the
// archive is not a naive copy of a live-written directory.
func (e *Engine) CreateWorldBackup(serverID string, trigger models.BackupTrigger) (*models.BackupInfo, error) {
	server, err := e.servers.FindByID(serverID)
	if err != nil {
		return nil, err
	}

	worldDir := filepath.Join(e.serversDir, serverID, "world")
	if _, err := os.Stat(worldDir); os.IsNotExist(err) {
		e.recordOutcome(serverID, trigger, false)
		return nil, fmt.Errorf("server %s has no world directory yet", serverID)
	}

	if e.serverRunning(serverID) {
		if _, err := e.console.Execute(serverID, "save-off"); err != nil {
			logger.Warn("Failed to suspend world saves, archiving anyway", map[string]interface{}{
				"server_id": serverID,
				"error":     err.Error(),
			})
		} else {
			// Force a final flush so the archive sees a settled world.
			if _, err := e.console.Execute(serverID, "save-all"); err != nil {
				logger.Warn("save-all failed before world backup", map[string]interface{}{
					"server_id": serverID,
					"error":     err.Error(),
				})
			}
			defer func() {
				if _, err := e.console.Execute(serverID, "save-on"); err != nil {
					logger.Error("Failed to resume world saves after backup", err, map[string]interface{}{
						"server_id": serverID,
					})
				}
			}()
		}
	}

	info, err := e.archive(server, worldDir, models.BackupKindWorld, trigger)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// CreateFullBackup archives the entire server working directory, used ahead
// of destructive operations like version upgrades.
func (e *Engine) CreateFullBackup(serverID string, trigger models.BackupTrigger) (*models.BackupInfo, error) {
	server, err := e.servers.FindByID(serverID)
	if err != nil {
		return nil, err
	}

	serverDir := filepath.Join(e.serversDir, serverID)
	if _, err := os.Stat(serverDir); os.IsNotExist(err) {
		e.recordOutcome(serverID, trigger, false)
		return nil, fmt.Errorf("server directory not found: %s", serverDir)
	}

	info, err := e.archive(server, serverDir, models.BackupKindFull, trigger)
	if err != nil {
		return nil, err
	}

	if e.offsite != nil {
		localPath := filepath.Join(e.serverBackupDir(serverID), info.ID)
		if remotePath, err := e.offsite.Upload(localPath, info.ID); err != nil {
			logger.Warn("Offsite upload failed, archive kept locally", map[string]interface{}{
				"backup_id": info.ID,
				"error":     err.Error(),
			})
		} else {
			logger.Info("Backup uploaded offsite", map[string]interface{}{
				"backup_id":   info.ID,
				"remote_path": remotePath,
			})
		}
	}

	return info, nil
}

// List returns the backups for a server ordered by recency, newest first.
// Size reflects the actual archive bytes on disk.
func (e *Engine) List(serverID string) ([]models.BackupInfo, error) {
	dir := e.serverBackupDir(serverID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.BackupInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := make([]models.BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tar.gz") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, models.BackupInfo{
			ID:        entry.Name(),
			ServerID:  serverID,
			Kind:      kindFromFilename(entry.Name()),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Delete removes a backup archive. It returns false, not an error, when the
// identifier is unknown.
func (e *Engine) Delete(serverID, backupID string) (bool, error) {
	if err := ValidateBackupID(backupID); err != nil {
		return false, err
	}

	path := filepath.Join(e.serverBackupDir(serverID), backupID)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete backup: %w", err)
	}

	logger.Info("Backup deleted", map[string]interface{}{
		"server_id": serverID,
		"backup_id": backupID,
	})
	return true, nil
}

// ValidateBackupID rejects identifiers that could escape the backup
// directory, before any filesystem access.
func ValidateBackupID(backupID string) error {
	if backupID == "" {
		return errs.Validation("backup id must not be empty")
	}
	if strings.Contains(backupID, "/") || strings.Contains(backupID, "\\") {
		return errs.Validation("backup id must not contain path separators")
	}
	if strings.Contains(backupID, "..") {
		return errs.Validation("backup id must not contain traversal sequences")
	}
	if !strings.HasSuffix(backupID, ".tar.gz") {
		return errs.Validation("backup id must name a .tar.gz archive")
	}
	return nil
}

func (e *Engine) serverBackupDir(serverID string) string {
	return filepath.Join(e.backupsDir, serverID)
}

func (e *Engine) serverRunning(serverID string) bool {
	if e.prober == nil {
		return false
	}
	status, err := e.prober.Status(serverID)
	if err != nil {
		return false
	}
	return status.Running
}

// archive writes the tar.gz, records the outcome and fires the notification
func (e *Engine) archive(server *models.GameServer, sourceDir string, kind models.BackupKind, trigger models.BackupTrigger) (*models.BackupInfo, error) {
	dir := e.serverBackupDir(server.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		e.recordOutcome(server.ID, trigger, false)
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s-%s.tar.gz",
		kind,
		time.Now().UTC().Format("20060102T150405"),
		uuid.New().String()[:8],
	)
	targetPath := filepath.Join(dir, filename)

	size, err := compressDirectory(sourceDir, targetPath)
	if err != nil {
		os.Remove(targetPath)
		monitoring.BackupsTotal.WithLabelValues(server.ID, string(kind), "failed").Inc()
		e.recordOutcome(server.ID, trigger, false)
		e.notify(server, trigger, "", false)
		return nil, fmt.Errorf("failed to archive %s: %w", sourceDir, err)
	}

	info := &models.BackupInfo{
		ID:        filename,
		ServerID:  server.ID,
		Kind:      kind,
		Size:      size,
		CreatedAt: time.Now(),
	}

	monitoring.BackupsTotal.WithLabelValues(server.ID, string(kind), "succeeded").Inc()
	monitoring.BackupBytesTotal.WithLabelValues(server.ID).Add(float64(size))
	e.recordOutcome(server.ID, trigger, true)
	e.notify(server, trigger, humanSize(size), true)

	logger.Info("Backup created", map[string]interface{}{
		"server_id": server.ID,
		"backup_id": filename,
		"kind":      kind,
		"size_mb":   size / 1024 / 1024,
	})
	return info, nil
}

// recordOutcome persists the backup state after every attempt, success or
// failure.
func (e *Engine) recordOutcome(serverID string, trigger models.BackupTrigger, success bool) {
	now := time.Now()
	err := e.states.UpdateBackupState(serverID, func(state *models.BackupState) {
		state.LastBackupTime = &now
		state.LastBackupType = trigger
		state.LastBackupSuccess = success
	})
	if err != nil {
		logger.Error("Failed to persist backup state", err, map[string]interface{}{
			"server_id": serverID,
		})
	}
}

func (e *Engine) notify(server *models.GameServer, trigger models.BackupTrigger, sizeText string, success bool) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(server.ID, server.Name, string(trigger), sizeText, success)
}

// compressDirectory writes sourceDir into a tar.gz at targetPath and returns
// the archive size in bytes.
func compressDirectory(sourceDir, targetPath string) (int64, error) {
	outFile, err := os.Create(targetPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer outFile.Close()

	gzWriter := gzip.NewWriter(outFile)
	tarWriter := tar.NewWriter(gzWriter)

	err = filepath.Walk(sourceDir, func(filePath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return fmt.Errorf("failed to create tar header: %w", err)
		}
		relPath, err := filepath.Rel(sourceDir, filePath)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		if relPath == "." {
			return nil
		}
		header.Name = filepath.ToSlash(relPath)

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}

		if !fi.Mode().IsRegular() {
			return nil
		}

		file, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer file.Close()

		if _, err := io.Copy(tarWriter, file); err != nil {
			return fmt.Errorf("failed to write file to tar: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := tarWriter.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize tar stream: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize gzip stream: %w", err)
	}

	fi, err := outFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat archive: %w", err)
	}
	return fi.Size(), nil
}

func kindFromFilename(name string) models.BackupKind {
	if strings.HasPrefix(name, string(models.BackupKindFull)) {
		return models.BackupKindFull
	}
	return models.BackupKindWorld
}

func humanSize(size int64) string {
	const mb = 1024 * 1024
	if size < mb {
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	}
	if size < 1024*mb {
		return fmt.Sprintf("%.1f MB", float64(size)/mb)
	}
	return fmt.Sprintf("%.2f GB", float64(size)/(1024*mb))
}
