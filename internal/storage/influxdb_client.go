package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/craftops/fleet/pkg/logger"
)

// HealthSample is one health-monitor observation written as a time-series
// point.
type HealthSample struct {
	ServerID            string
	ServerName          string
	Verdict             string
	Running             bool
	ConsecutiveFailures int
	Timestamp           time.Time
}

// InfluxDBClient sinks health samples into a time-series bucket
type InfluxDBClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	org      string
	bucket   string
}

// InfluxDBConfig holds InfluxDB connection configuration
type InfluxDBConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// NewInfluxDBClient creates a new InfluxDB client and verifies connectivity
func NewInfluxDBClient(config InfluxDBConfig) (*InfluxDBClient, error) {
	client := influxdb2.NewClient(config.URL, config.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	logger.Info("InfluxDB connection established", map[string]interface{}{
		"url":    config.URL,
		"org":    config.Org,
		"bucket": config.Bucket,
	})

	return &InfluxDBClient{
		client:   client,
		writeAPI: client.WriteAPI(config.Org, config.Bucket),
		org:      config.Org,
		bucket:   config.Bucket,
	}, nil
}

// WriteHealthSample writes one sample, non-blocking
func (c *InfluxDBClient) WriteHealthSample(sample HealthSample) {
	running := 0
	if sample.Running {
		running = 1
	}

	p := influxdb2.NewPoint(
		"server_health",
		map[string]string{
			"server_id":   sample.ServerID,
			"server_name": sample.ServerName,
			"verdict":     sample.Verdict,
		},
		map[string]interface{}{
			"running":              running,
			"consecutive_failures": sample.ConsecutiveFailures,
		},
		sample.Timestamp,
	)

	c.writeAPI.WritePoint(p)
}

// Flush ensures all pending writes are sent
func (c *InfluxDBClient) Flush() {
	c.writeAPI.Flush()
}

// Close flushes pending writes and closes the client
func (c *InfluxDBClient) Close() {
	c.writeAPI.Flush()
	c.client.Close()
}
