package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for fleet monitoring
var (
	// Per-server gauges
	ServerRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "craftops_server_running",
			Help: "Whether the server container is running (0 or 1)",
		},
		[]string{"server_id", "server_name", "version"},
	)

	ServerUptimeSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "craftops_server_uptime_seconds",
			Help: "Server container uptime in seconds",
		},
		[]string{"server_id", "server_name", "version"},
	)

	ServerMemoryBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "craftops_server_memory_bytes",
			Help: "Current memory usage of the server container in bytes",
		},
		[]string{"server_id", "server_name", "version"},
	)

	ServerHealthFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "craftops_server_health_failures",
			Help: "Consecutive failed health probes for the server",
		},
		[]string{"server_id", "server_name"},
	)

	// Fleet-wide gauges
	FleetTotalServers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "craftops_fleet_total_servers",
			Help: "Total number of servers in the fleet",
		},
	)

	FleetRunningServers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "craftops_fleet_running_servers",
			Help: "Number of currently running servers",
		},
	)

	// Event counters
	ServerStartTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftops_server_starts_total",
			Help: "Total number of server starts",
		},
		[]string{"server_id", "trigger"},
	)

	ServerStopTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftops_server_stops_total",
			Help: "Total number of server stops",
		},
		[]string{"server_id", "trigger"},
	)

	SchedulerActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftops_scheduler_actions_total",
			Help: "Total scheduler reconcile actions by outcome",
		},
		[]string{"action"},
	)

	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftops_backups_total",
			Help: "Total number of backup attempts",
		},
		[]string{"server_id", "kind", "outcome"},
	)

	BackupBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftops_backup_bytes_total",
			Help: "Total bytes of backup archives written",
		},
		[]string{"server_id"},
	)

	UpgradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftops_upgrades_total",
			Help: "Total version upgrade attempts by outcome",
		},
		[]string{"outcome"},
	)

	ConsoleErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftops_console_errors_total",
			Help: "Total remote console command failures by error kind",
		},
		[]string{"server_id", "kind"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "craftops_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "craftops_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// BoolToFloat converts a boolean gauge value for Prometheus
func BoolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
