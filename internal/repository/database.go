package repository

import (
	"fmt"

	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB initializes the database connection
func InitDB(cfg *config.Config) error {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	if cfg.Debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	var err error
	switch cfg.DatabaseType {
	case "postgres", "postgresql":
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for PostgreSQL")
		}
		DB, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}

	case "sqlite":
		DB, err = gorm.Open(sqlite.Open(cfg.DatabasePath), gormConfig)
		if err != nil {
			return fmt.Errorf("failed to open SQLite database: %w", err)
		}

	default:
		return fmt.Errorf("unsupported database type: %s", cfg.DatabaseType)
	}

	return Migrate(DB)
}

// Migrate runs auto-migration for all persisted records
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GameServer{},
		&models.ServerSchedule{},
		&models.BackupState{},
		&models.HealthState{},
		&models.HealthCheckConfig{},
		&models.PluginUpdateState{},
		&models.PluginAutoUpdateConfig{},
	)
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Ping verifies the database connection is alive
func Ping() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
