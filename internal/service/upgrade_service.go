package service

import (
	"fmt"
	"regexp"
	"time"

	"github.com/craftops/fleet/internal/backup"
	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/monitoring"
	"github.com/craftops/fleet/internal/notify"
	"github.com/craftops/fleet/internal/repository"
	"github.com/craftops/fleet/pkg/logger"
)

// versionPattern accepts MAJOR.MINOR with an optional PATCH, e.g. "1.21"
// or "1.21.4".
var versionPattern = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)

// UpgradeService moves a server to a new game version. The sequence is
// stop, settle, full safety backup, persist the new version, recreate the
// container against it, then poll for readiness. The backup and the
// readiness poll are advisory: their failure is reported but never aborts
// or rolls back the upgrade.
type UpgradeService struct {
	servers   *repository.ServerRepository
	runtime   ContainerRuntime
	lifecycle *LifecycleService
	backups   *backup.Engine
	locks     *ServerLocks
	notifier  *notify.WebhookNotifier

	settleDelay      time.Duration
	readinessDelay   time.Duration
	readinessRetries int
	sleep            func(time.Duration)
}

func NewUpgradeService(
	servers *repository.ServerRepository,
	runtime ContainerRuntime,
	lifecycle *LifecycleService,
	backups *backup.Engine,
	locks *ServerLocks,
	settleDelay, readinessDelay time.Duration,
	readinessRetries int,
) *UpgradeService {
	return &UpgradeService{
		servers:          servers,
		runtime:          runtime,
		lifecycle:        lifecycle,
		backups:          backups,
		locks:            locks,
		settleDelay:      settleDelay,
		readinessDelay:   readinessDelay,
		readinessRetries: readinessRetries,
		sleep:            time.Sleep,
	}
}

func (s *UpgradeService) SetNotifier(n *notify.WebhookNotifier) {
	s.notifier = n
}

// Upgrade moves serverID to targetVersion. Requesting the already-installed
// version succeeds immediately without touching the container. withBackup
// controls the pre-upgrade safety backup; callers default it to true.
// A non-nil result accompanies errors raised after the stop, because by then
// the backup and version write may already be durable.
func (s *UpgradeService) Upgrade(serverID, targetVersion string, withBackup bool) (*models.VersionUpdateResult, error) {
	if !versionPattern.MatchString(targetVersion) {
		return nil, errs.Validation(fmt.Sprintf("invalid version format: %q", targetVersion))
	}

	server, err := s.servers.FindByID(serverID)
	if err != nil {
		return nil, err
	}

	if server.Version == targetVersion {
		return &models.VersionUpdateResult{
			PreviousVersion:    server.Version,
			NewVersion:         targetVersion,
			ReadinessConfirmed: true,
		}, nil
	}

	if !s.locks.TryLock(serverID) {
		return nil, errs.New(errs.KindValidation, "another operation is already running on this server")
	}
	defer s.locks.Unlock(serverID)

	logger.Info("Starting version upgrade", map[string]interface{}{
		"server_id": serverID,
		"from":      server.Version,
		"to":        targetVersion,
	})

	result := &models.VersionUpdateResult{
		PreviousVersion: server.Version,
		NewVersion:      targetVersion,
	}

	if _, err := s.lifecycle.stop(serverID, TriggerUpgrade); err != nil {
		monitoring.UpgradesTotal.WithLabelValues("failed").Inc()
		s.announce(server, notify.EventUpgradeFailed, fmt.Sprintf("Stop before upgrade failed: %v", err))
		return result, fmt.Errorf("failed to stop server before upgrade: %w", err)
	}

	// Let the container flush and release its files before archiving them.
	s.sleep(s.settleDelay)

	if withBackup {
		if info, err := s.backups.CreateFullBackup(serverID, models.BackupTriggerManual); err != nil {
			// Some servers legitimately have nothing to archive yet; the
			// upgrade proceeds without a safety net.
			logger.Warn("Pre-upgrade backup failed, continuing", map[string]interface{}{
				"server_id": serverID,
				"error":     err.Error(),
			})
		} else {
			result.BackupPath = info.ID
		}
	}

	if err := s.servers.UpdateVersion(serverID, targetVersion); err != nil {
		monitoring.UpgradesTotal.WithLabelValues("failed").Inc()
		s.announce(server, notify.EventUpgradeFailed, fmt.Sprintf("Version persist failed: %v", err))
		return result, fmt.Errorf("failed to persist new version: %w", err)
	}
	server.Version = targetVersion

	if err := s.runtime.Recreate(server); err != nil {
		monitoring.UpgradesTotal.WithLabelValues("failed").Inc()
		s.announce(server, notify.EventUpgradeFailed, fmt.Sprintf("Container recreate failed: %v", err))
		return result, fmt.Errorf("failed to recreate container: %w", err)
	}

	result.ReadinessConfirmed = s.awaitReady(serverID)
	if !result.ReadinessConfirmed {
		logger.Warn("Server not confirmed ready after upgrade", map[string]interface{}{
			"server_id": serverID,
			"version":   targetVersion,
		})
	}

	monitoring.UpgradesTotal.WithLabelValues("succeeded").Inc()
	s.announce(server, notify.EventUpgradeComplete,
		fmt.Sprintf("%s → %s (ready: %t)", result.PreviousVersion, targetVersion, result.ReadinessConfirmed))

	logger.Info("Version upgrade complete", map[string]interface{}{
		"server_id": serverID,
		"from":      result.PreviousVersion,
		"to":        targetVersion,
		"ready":     result.ReadinessConfirmed,
	})
	return result, nil
}

// awaitReady polls the container until it reports running or the retry
// budget is spent.
func (s *UpgradeService) awaitReady(serverID string) bool {
	for attempt := 0; attempt < s.readinessRetries; attempt++ {
		s.sleep(s.readinessDelay)
		status, err := s.runtime.Status(serverID)
		if err == nil && status.Running {
			return true
		}
	}
	return false
}

func (s *UpgradeService) announce(server *models.GameServer, event notify.Event, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Send(notify.EventData{
		Event:      event,
		ServerID:   server.ID,
		ServerName: server.Name,
		Message:    message,
	})
}
