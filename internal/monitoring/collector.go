// Package monitoring exposes Prometheus metrics for the fleet and samples
// per-server container stats on an interval.
package monitoring

import (
	"time"

	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/repository"
	"github.com/craftops/fleet/pkg/logger"
)

// ContainerObserver samples container state for metric collection
type ContainerObserver interface {
	Status(serverID string) (models.ServerStatus, error)
	ContainerInfo(serverID string) (*models.ContainerInfo, error)
}

// Collector periodically refreshes the per-server and fleet-wide gauges
type Collector struct {
	servers  *repository.ServerRepository
	observer ContainerObserver
	interval time.Duration
	stopChan chan struct{}
}

func NewCollector(servers *repository.ServerRepository, observer ContainerObserver, interval time.Duration) *Collector {
	return &Collector{
		servers:  servers,
		observer: observer,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start launches the collection loop in a background goroutine
func (c *Collector) Start() {
	logger.Info("Starting metrics collector", map[string]interface{}{
		"interval": c.interval.String(),
	})

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stop terminates the collection loop
func (c *Collector) Stop() {
	close(c.stopChan)
	logger.Info("Metrics collector stopped", nil)
}

func (c *Collector) collect() {
	servers, err := c.servers.FindAll()
	if err != nil {
		logger.Error("Metrics collection failed to list servers", err, nil)
		return
	}

	running := 0
	for i := range servers {
		server := &servers[i]
		labels := []string{server.ID, server.Name, server.Version}

		status, err := c.observer.Status(server.ID)
		if err != nil {
			logger.Debug("Metrics probe failed", map[string]interface{}{
				"server_id": server.ID,
				"error":     err.Error(),
			})
			continue
		}

		ServerRunning.WithLabelValues(labels...).Set(BoolToFloat(status.Running))
		if !status.Running {
			ServerUptimeSeconds.WithLabelValues(labels...).Set(0)
			ServerMemoryBytes.WithLabelValues(labels...).Set(0)
			continue
		}
		running++

		info, err := c.observer.ContainerInfo(server.ID)
		if err != nil || info == nil {
			continue
		}
		ServerUptimeSeconds.WithLabelValues(labels...).Set(info.Uptime.Seconds())
		ServerMemoryBytes.WithLabelValues(labels...).Set(float64(info.MemoryBytes))
	}

	FleetTotalServers.Set(float64(len(servers)))
	FleetRunningServers.Set(float64(running))
}
