package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	Debug   bool
	Port    string

	// Logging
	LogLevel string
	LogJSON  bool

	// Database
	DatabaseType string // sqlite or postgres
	DatabasePath string // sqlite file path
	DatabaseURL  string // postgres DSN

	// Server storage
	ServersBasePath     string // Container path for server data
	HostServersBasePath string // Host path for Docker bind mounts (when the API runs in a container)
	MCPortStart         int
	MCPortEnd           int

	// RCON
	RCONHost        string // Address the RCON ports are published on
	RCONDialTimeout int    // Seconds
	RCONExecTimeout int    // Seconds

	// Scheduler & lifecycle
	SchedulerIntervalSeconds int // Tick interval for the weekly schedule loop
	StopGraceSeconds         int // Graceful container stop window
	UpgradeSettleSeconds     int // Delay between stop and reconfigure during upgrades
	ReadinessPollSeconds     int // Interval between readiness probes after recreate
	ReadinessPollAttempts    int

	// Health monitoring
	HealthPollSeconds int // Resolution of the health monitor loop

	// Plugin catalog
	CatalogBaseURL string

	// Notifications (Discord-compatible webhook)
	NotifyWebhookURL string

	// Offsite backup storage (SFTP)
	OffsiteEnabled  bool
	OffsiteHost     string
	OffsitePort     int
	OffsiteUser     string
	OffsitePassword string
	OffsitePath     string

	// InfluxDB (health sample sink)
	InfluxDBURL    string
	InfluxDBToken  string
	InfluxDBOrg    string
	InfluxDBBucket string
}

var AppConfig *Config

// Load loads configuration from environment
func Load() *Config {
	// Load .env file if exists
	_ = godotenv.Load()

	config := &Config{
		AppName:  getEnv("APP_NAME", "CraftOps"),
		Debug:    getEnvBool("DEBUG", false),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
		LogJSON:  getEnvBool("LOG_JSON", false),

		DatabaseType: getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath: getEnv("DATABASE_PATH", "./fleet.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		ServersBasePath:     getEnv("SERVERS_BASE_PATH", "./minecraft/servers"),
		HostServersBasePath: getEnv("HOST_SERVERS_BASE_PATH", ""), // If empty, use ServersBasePath
		MCPortStart:         getEnvInt("MC_PORT_START", 25565),
		MCPortEnd:           getEnvInt("MC_PORT_END", 25665),

		RCONHost:        getEnv("RCON_HOST", "127.0.0.1"),
		RCONDialTimeout: getEnvInt("RCON_DIAL_TIMEOUT", 5),
		RCONExecTimeout: getEnvInt("RCON_EXEC_TIMEOUT", 10),

		SchedulerIntervalSeconds: getEnvInt("SCHEDULER_INTERVAL", 60),
		StopGraceSeconds:         getEnvInt("STOP_GRACE_SECONDS", 30),
		UpgradeSettleSeconds:     getEnvInt("UPGRADE_SETTLE_SECONDS", 5),
		ReadinessPollSeconds:     getEnvInt("READINESS_POLL_SECONDS", 5),
		ReadinessPollAttempts:    getEnvInt("READINESS_POLL_ATTEMPTS", 6),

		HealthPollSeconds: getEnvInt("HEALTH_POLL_SECONDS", 30),

		CatalogBaseURL: getEnv("CATALOG_BASE_URL", "https://api.modrinth.com/v2"),

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),

		OffsiteEnabled:  getEnvBool("OFFSITE_BACKUP_ENABLED", false),
		OffsiteHost:     getEnv("OFFSITE_BACKUP_HOST", ""),
		OffsitePort:     getEnvInt("OFFSITE_BACKUP_PORT", 23),
		OffsiteUser:     getEnv("OFFSITE_BACKUP_USER", ""),
		OffsitePassword: getEnv("OFFSITE_BACKUP_PASSWORD", ""),
		OffsitePath:     getEnv("OFFSITE_BACKUP_PATH", "/backups"),

		InfluxDBURL:    getEnv("INFLUXDB_URL", ""),
		InfluxDBToken:  getEnv("INFLUXDB_TOKEN", ""),
		InfluxDBOrg:    getEnv("INFLUXDB_ORG", "craftops"),
		InfluxDBBucket: getEnv("INFLUXDB_BUCKET", "health"),
	}

	AppConfig = config
	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("Invalid boolean for %s, using default: %v", key, defaultValue)
			return defaultValue
		}
		return boolVal
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("Invalid integer for %s, using default: %d", key, defaultValue)
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}
