package models

import "time"

// BackupKind distinguishes world-only archives from full working-directory
// archives.
type BackupKind string

const (
	BackupKindWorld BackupKind = "world"
	BackupKindFull  BackupKind = "full"
)

// BackupInfo describes one archive on disk. It is derived from the archive
// file itself and immutable once written; Size is the actual archive byte
// count, not the logical world size.
type BackupInfo struct {
	ID        string     `json:"id"` // filesystem-safe opaque token (the archive filename)
	ServerID  string     `json:"server_id"`
	Kind      BackupKind `json:"kind"`
	Size      int64      `json:"size"`
	CreatedAt time.Time  `json:"created_at"`
}

// VersionUpdateResult reports the durable outcome of a version upgrade,
// including partial successes: the version change and backup may already be
// applied when later steps fail.
type VersionUpdateResult struct {
	PreviousVersion    string `json:"previous_version"`
	NewVersion         string `json:"new_version"`
	BackupPath         string `json:"backup_path,omitempty"`
	ReadinessConfirmed bool   `json:"readiness_confirmed"`
}
