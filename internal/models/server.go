package models

import (
	"time"

	"gorm.io/gorm"
)

// Edition represents the game edition a server runs
type Edition string

const (
	EditionJava    Edition = "java"
	EditionBedrock Edition = "bedrock"
)

// GameServer is the persisted configuration record for one managed server.
// The orchestration core treats it as read-mostly; only Version is written
// back during upgrades.
type GameServer struct {
	gorm.Model
	ID string `gorm:"primaryKey;size:64"`

	Name    string  `gorm:"not null"`
	Edition Edition `gorm:"not null;default:java"`
	Version string  `gorm:"not null"`

	MemoryMB   int `gorm:"not null"`
	MaxPlayers int `gorm:"default:20"`

	Port     int `gorm:"unique"`
	RconPort int `gorm:"unique"`

	RconPassword string `gorm:"size:128"`

	// Bookkeeping written by the lifecycle controller. Running state itself
	// is never persisted, it is sampled from the container runtime.
	LastStartedAt *time.Time
	LastStoppedAt *time.Time
}

// ServerStatus is the runtime view of a server, derived at query time
type ServerStatus struct {
	Running bool   `json:"running"`
	Phase   string `json:"phase,omitempty"` // transient container phase when not settled
}

// ContainerInfo is the transient resource sample for a running server
type ContainerInfo struct {
	Uptime        time.Duration `json:"uptime"`
	MemoryBytes   int64         `json:"memory_bytes"`
	MemoryLimitMB int           `json:"memory_limit_mb"`
}
