package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// BackupTrigger distinguishes who asked for a backup
type BackupTrigger string

const (
	BackupTriggerManual    BackupTrigger = "manual"
	BackupTriggerScheduled BackupTrigger = "scheduled"
)

// BackupState is the per-server automation state written after every backup
// attempt, success or failure.
type BackupState struct {
	ServerID          string `gorm:"primaryKey;size:64"`
	LastBackupTime    *time.Time
	LastBackupType    BackupTrigger
	LastBackupSuccess bool
	UpdatedAt         time.Time
}

// HealthVerdict is the rolling health classification of a server
type HealthVerdict string

const (
	HealthHealthy   HealthVerdict = "healthy"
	HealthUnhealthy HealthVerdict = "unhealthy"
	HealthUnknown   HealthVerdict = "unknown"
)

// HealthState is persisted after every health poll
type HealthState struct {
	ServerID            string `gorm:"primaryKey;size:64"`
	LastCheckTime       *time.Time
	Verdict             HealthVerdict `gorm:"default:unknown"`
	ConsecutiveFailures int
	UpdatedAt           time.Time
}

// HealthCheckConfig enables and tunes health polling for one server
type HealthCheckConfig struct {
	ServerID         string `gorm:"primaryKey;size:64"`
	Enabled          bool   `gorm:"default:false"`
	IntervalSeconds  int    `gorm:"default:60"`
	FailureThreshold int    `gorm:"default:3"`
	UpdatedAt        time.Time
}

// PluginUpdateInfo is one outdated-plugin finding
type PluginUpdateInfo struct {
	PluginID         string `json:"plugin_id"`
	InstalledVersion string `json:"installed_version"`
	LatestVersion    string `json:"latest_version"`
	DownloadURL      string `json:"download_url"`
	Filename         string `json:"filename"`
}

// PluginUpdateState records the last catalog check and its findings.
// LastCheckTime is written on every completed check, even when Findings is
// empty, so staleness stays observable.
type PluginUpdateState struct {
	ServerID      string `gorm:"primaryKey;size:64"`
	LastCheckTime *time.Time
	Findings      datatypes.JSON `gorm:"type:json"`
	UpdatedAt     time.Time
}

// Updates decodes the Findings column
func (s *PluginUpdateState) Updates() ([]PluginUpdateInfo, error) {
	if len(s.Findings) == 0 {
		return nil, nil
	}
	var infos []PluginUpdateInfo
	if err := json.Unmarshal(s.Findings, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// SetUpdates encodes the Findings column
func (s *PluginUpdateState) SetUpdates(infos []PluginUpdateInfo) error {
	data, err := json.Marshal(infos)
	if err != nil {
		return err
	}
	s.Findings = datatypes.JSON(data)
	return nil
}

// PluginAutoUpdateConfig enables and tunes plugin update checking
type PluginAutoUpdateConfig struct {
	ServerID        string `gorm:"primaryKey;size:64"`
	Enabled         bool   `gorm:"default:false"`
	IntervalSeconds int    `gorm:"default:3600"`
	AutoApply       bool   `gorm:"default:false"`
	UpdatedAt       time.Time
}
