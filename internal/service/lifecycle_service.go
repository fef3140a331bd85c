package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/monitoring"
	"github.com/craftops/fleet/internal/notify"
	"github.com/craftops/fleet/internal/repository"
	"github.com/craftops/fleet/internal/websocket"
	"github.com/craftops/fleet/pkg/logger"
)

// Trigger records what initiated a lifecycle action
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
	TriggerUpgrade  Trigger = "upgrade"
)

// ContainerRuntime is the container engine surface the lifecycle layer
// depends on. The Docker implementation lives in internal/docker; tests
// substitute a fake.
type ContainerRuntime interface {
	Start(server *models.GameServer) error
	Stop(serverID string, grace time.Duration) error
	Recreate(server *models.GameServer) error
	Status(serverID string) (models.ServerStatus, error)
	ContainerInfo(serverID string) (*models.ContainerInfo, error)
	Logs(serverID string, tail int) (string, error)
}

// ServerDetail is the combined view of a server returned by Describe
type ServerDetail struct {
	Server *models.GameServer    `json:"server"`
	Status models.ServerStatus   `json:"status"`
	Info   *models.ContainerInfo `json:"info,omitempty"`
}

// LifecycleService starts and stops servers. Both operations are idempotent:
// starting a running server or stopping a stopped one succeeds without
// touching the container engine again.
type LifecycleService struct {
	servers  *repository.ServerRepository
	runtime  ContainerRuntime
	locks    *ServerLocks
	notifier *notify.WebhookNotifier
	hub      *websocket.Hub

	stopGrace time.Duration
}

func NewLifecycleService(
	servers *repository.ServerRepository,
	runtime ContainerRuntime,
	locks *ServerLocks,
	stopGrace time.Duration,
) *LifecycleService {
	return &LifecycleService{
		servers:   servers,
		runtime:   runtime,
		locks:     locks,
		stopGrace: stopGrace,
	}
}

func (s *LifecycleService) SetNotifier(n *notify.WebhookNotifier) {
	s.notifier = n
}

func (s *LifecycleService) SetHub(h *websocket.Hub) {
	s.hub = h
}

// Start brings a server online under its lock. Returns the status after the
// start request was accepted; the server may still be booting.
func (s *LifecycleService) Start(serverID string, trigger Trigger) (models.ServerStatus, error) {
	s.locks.Lock(serverID)
	defer s.locks.Unlock(serverID)
	return s.start(serverID, trigger)
}

// start is the lock-free body of Start, for callers that already hold the
// server lock.
func (s *LifecycleService) start(serverID string, trigger Trigger) (models.ServerStatus, error) {
	server, err := s.servers.FindByID(serverID)
	if err != nil {
		return models.ServerStatus{}, err
	}

	status, err := s.runtime.Status(serverID)
	if err != nil {
		return models.ServerStatus{}, err
	}
	if status.Running {
		logger.Debug("Start requested for already-running server", map[string]interface{}{
			"server_id": serverID,
		})
		return status, nil
	}

	if err := s.runtime.Start(server); err != nil {
		return models.ServerStatus{}, err
	}

	now := time.Now()
	server.LastStartedAt = &now
	if err := s.servers.Update(server); err != nil {
		logger.Warn("Failed to record start time", map[string]interface{}{
			"server_id": serverID,
			"error":     err.Error(),
		})
	}

	monitoring.ServerStartTotal.WithLabelValues(serverID, string(trigger)).Inc()
	s.announce(server, notify.EventServerStarted, fmt.Sprintf("Trigger: %s", trigger))
	s.broadcastStatus(serverID, true)

	logger.Info("Server started", map[string]interface{}{
		"server_id": serverID,
		"name":      server.Name,
		"trigger":   string(trigger),
	})
	return models.ServerStatus{Running: true, Phase: "running"}, nil
}

// Stop takes a server offline under its lock, with a graceful shutdown
// window.
func (s *LifecycleService) Stop(serverID string, trigger Trigger) (models.ServerStatus, error) {
	s.locks.Lock(serverID)
	defer s.locks.Unlock(serverID)
	return s.stop(serverID, trigger)
}

// stop is the lock-free body of Stop, for callers that already hold the
// server lock.
func (s *LifecycleService) stop(serverID string, trigger Trigger) (models.ServerStatus, error) {
	server, err := s.servers.FindByID(serverID)
	if err != nil {
		return models.ServerStatus{}, err
	}

	status, err := s.runtime.Status(serverID)
	if err != nil {
		return models.ServerStatus{}, err
	}
	if !status.Running {
		logger.Debug("Stop requested for already-stopped server", map[string]interface{}{
			"server_id": serverID,
		})
		return status, nil
	}

	if err := s.runtime.Stop(serverID, s.stopGrace); err != nil {
		return models.ServerStatus{}, err
	}

	now := time.Now()
	server.LastStoppedAt = &now
	if err := s.servers.Update(server); err != nil {
		logger.Warn("Failed to record stop time", map[string]interface{}{
			"server_id": serverID,
			"error":     err.Error(),
		})
	}

	monitoring.ServerStopTotal.WithLabelValues(serverID, string(trigger)).Inc()
	s.announce(server, notify.EventServerStopped, fmt.Sprintf("Trigger: %s", trigger))
	s.broadcastStatus(serverID, false)

	logger.Info("Server stopped", map[string]interface{}{
		"server_id": serverID,
		"name":      server.Name,
		"trigger":   string(trigger),
	})
	return models.ServerStatus{Running: false, Phase: "stopped"}, nil
}

// Restart stops then starts the server under its lock
func (s *LifecycleService) Restart(serverID string) (models.ServerStatus, error) {
	s.locks.Lock(serverID)
	defer s.locks.Unlock(serverID)

	if _, err := s.stop(serverID, TriggerManual); err != nil {
		return models.ServerStatus{}, err
	}
	return s.start(serverID, TriggerManual)
}

// Status reports the server's current lifecycle state
func (s *LifecycleService) Status(serverID string) (models.ServerStatus, error) {
	if _, err := s.servers.FindByID(serverID); err != nil {
		return models.ServerStatus{}, err
	}
	return s.runtime.Status(serverID)
}

// Describe returns the server record together with its live container state
func (s *LifecycleService) Describe(serverID string) (*ServerDetail, error) {
	server, err := s.servers.FindByID(serverID)
	if err != nil {
		return nil, err
	}

	status, err := s.runtime.Status(serverID)
	if err != nil {
		return nil, err
	}

	detail := &ServerDetail{Server: server, Status: status}
	if status.Running {
		info, err := s.runtime.ContainerInfo(serverID)
		if err == nil {
			detail.Info = info
		}
	}
	return detail, nil
}

// Logs returns the last tail lines of server output, prefixed with a short
// header describing the server so exported logs are self-identifying.
func (s *LifecycleService) Logs(serverID string, tail int) (string, error) {
	server, err := s.servers.FindByID(serverID)
	if err != nil {
		return "", err
	}

	logs, err := s.runtime.Logs(serverID, tail)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# server: %s (%s)\n", server.Name, server.ID)
	fmt.Fprintf(&b, "# edition: %s, version: %s\n", server.Edition, server.Version)
	fmt.Fprintf(&b, "# exported: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString(logs)
	return b.String(), nil
}

func (s *LifecycleService) announce(server *models.GameServer, event notify.Event, message string) {
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

func (s *LifecycleService) broadcastStatus(serverID string, running bool) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(websocket.Message{
		Type:     "server_status",
		ServerID: serverID,
		Payload:  map[string]interface{}{"running": running},
	})
}
