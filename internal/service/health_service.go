package service

import (
	"fmt"
	"time"

	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/monitoring"
	"github.com/craftops/fleet/internal/notify"
	"github.com/craftops/fleet/internal/repository"
	"github.com/craftops/fleet/internal/storage"
	"github.com/craftops/fleet/pkg/logger"
)

// ConsoleExecutor issues one remote console command against a server
type ConsoleExecutor interface {
	Execute(serverID, command string) (string, error)
}

// HealthService probes each server on its configured interval and keeps a
// verdict per server. Java servers are probed over the remote console;
// Bedrock servers have no console, so their container state is the probe.
// A server only turns unhealthy after the configured number of consecutive
// failures, and every probe persists its outcome.
type HealthService struct {
	servers  *repository.ServerRepository
	states   *repository.StateStore
	runtime  ContainerRuntime
	console  ConsoleExecutor
	notifier *notify.WebhookNotifier
	sink     *storage.InfluxDBClient

	interval time.Duration
	stopChan chan struct{}
	timeNow  func() time.Time
}

func NewHealthService(
	servers *repository.ServerRepository,
	states *repository.StateStore,
	runtime ContainerRuntime,
	console ConsoleExecutor,
	interval time.Duration,
) *HealthService {
	return &HealthService{
		servers:  servers,
		states:   states,
		runtime:  runtime,
		console:  console,
		interval: interval,
		stopChan: make(chan struct{}),
		timeNow:  time.Now,
	}
}

func (s *HealthService) SetNotifier(n *notify.WebhookNotifier) {
	s.notifier = n
}

// SetSink wires the optional time-series sink for health samples
func (s *HealthService) SetSink(sink *storage.InfluxDBClient) {
	s.sink = sink
}

// Start launches the probe loop in a background goroutine
func (s *HealthService) Start() {
	logger.Info("Starting health monitor", map[string]interface{}{
		"interval": s.interval.String(),
	})

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.pollAll()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop terminates the probe loop
func (s *HealthService) Stop() {
	close(s.stopChan)
	logger.Info("Health monitor stopped", nil)
}

func (s *HealthService) pollAll() {
	servers, err := s.servers.FindAll()
	if err != nil {
		logger.Error("Health monitor failed to list servers", err, nil)
		return
	}

	now := s.timeNow()
	for i := range servers {
		server := servers[i]

		cfg, err := s.states.GetHealthCheckConfig(server.ID)
		if err != nil || !cfg.Enabled {
			continue
		}

		state, err := s.states.GetHealthState(server.ID)
		if err != nil {
			continue
		}
		if state.LastCheckTime != nil && now.Sub(*state.LastCheckTime) < time.Duration(cfg.IntervalSeconds)*time.Second {
			continue
		}

		s.probe(&server, cfg)
	}
}

// Probe runs one health check against a server and persists the outcome.
func (s *HealthService) probe(server *models.GameServer, cfg *models.HealthCheckConfig) {
	status, err := s.runtime.Status(server.ID)
	if err != nil {
		s.record(server, models.HealthUnknown, false, cfg.FailureThreshold, false)
		return
	}

	if !status.Running {
		// A stopped server is not failing, it is simply off.
		s.record(server, models.HealthUnknown, false, cfg.FailureThreshold, true)
		return
	}

	healthy := true
	if server.Edition == models.EditionJava {
		if _, err := s.console.Execute(server.ID, "list"); err != nil {
			healthy = false
		}
	}

	if healthy {
		s.record(server, models.HealthHealthy, true, cfg.FailureThreshold, false)
	} else {
		s.record(server, "", true, cfg.FailureThreshold, false)
	}
}

// record persists the probe outcome. An empty verdict means the probe
// failed; the stored verdict then depends on the failure streak against the
// threshold.
func (s *HealthService) record(server *models.GameServer, verdict models.HealthVerdict, running bool, threshold int, resetStreak bool) {
	now := s.timeNow()
	var previous, next models.HealthVerdict

	err := s.states.UpdateHealthState(server.ID, func(state *models.HealthState) {
		previous = state.Verdict

		switch {
		case verdict == models.HealthHealthy:
			state.ConsecutiveFailures = 0
			state.Verdict = models.HealthHealthy
		case verdict == models.HealthUnknown:
			if resetStreak {
				state.ConsecutiveFailures = 0
			}
			state.Verdict = models.HealthUnknown
		default:
			// Below the threshold a running server still reads healthy;
			// only the streak flips the verdict.
			state.ConsecutiveFailures++
			if state.ConsecutiveFailures >= threshold {
				state.Verdict = models.HealthUnhealthy
			} else {
				state.Verdict = models.HealthHealthy
			}
		}

		state.LastCheckTime = &now
		next = state.Verdict
		monitoring.ServerHealthFailures.WithLabelValues(server.ID, server.Name).Set(float64(state.ConsecutiveFailures))
	})
	if err != nil {
		logger.Error("Failed to persist health state", err, map[string]interface{}{
			"server_id": server.ID,
		})
		return
	}

	if previous != next && s.notifier != nil {
		s.notifier.Send(notify.EventData{
			Event:      notify.EventHealthChanged,
			ServerID:   server.ID,
			ServerName: server.Name,
			Message:    fmt.Sprintf("%s is now %s", server.Name, next),
		})
	}

	if s.sink != nil {
		state, err := s.states.GetHealthState(server.ID)
		if err == nil {
			s.sink.WriteHealthSample(storage.HealthSample{
				ServerID:            server.ID,
				ServerName:          server.Name,
				Verdict:             string(state.Verdict),
				Running:             running,
				ConsecutiveFailures: state.ConsecutiveFailures,
				Timestamp:           now,
			})
		}
	}
}
