package repository

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/craftops/fleet/internal/models"
	"gorm.io/gorm"
)

// StateKind names one automation state family. Writes for different kinds of
// the same server never contend with each other.
type StateKind string

const (
	StateBackup       StateKind = "backup"
	StateHealth       StateKind = "health"
	StatePluginUpdate StateKind = "plugin_update"
)

// StateStore is the durable per-server automation state store. Get methods
// return a zero-value default when nothing is recorded yet, never an error
// for absence. Read-modify-write cycles are serialized per (serverID, kind)
// so concurrent writers of the same record cannot lose updates; no
// cross-kind transactional consistency is provided.
type StateStore struct {
	db    *gorm.DB
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStateStore(db *gorm.DB) *StateStore {
	return &StateStore{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *StateStore) lockFor(serverID string, kind StateKind) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s/%s", serverID, kind)
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// --- Backup state ---

func (s *StateStore) GetBackupState(serverID string) (*models.BackupState, error) {
	var state models.BackupState
	err := s.db.Where("server_id = ?", serverID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.BackupState{ServerID: serverID}, nil
		}
		return nil, err
	}
	return &state, nil
}

func (s *StateStore) SaveBackupState(state *models.BackupState) error {
	l := s.lockFor(state.ServerID, StateBackup)
	l.Lock()
	defer l.Unlock()
	return s.saveBackupState(state)
}

// UpdateBackupState runs a serialized read-modify-write cycle
func (s *StateStore) UpdateBackupState(serverID string, mutate func(*models.BackupState)) error {
	l := s.lockFor(serverID, StateBackup)
	l.Lock()
	defer l.Unlock()

	state, err := s.GetBackupState(serverID)
	if err != nil {
		return err
	}
	mutate(state)
	return s.saveBackupState(state)
}

func (s *StateStore) saveBackupState(state *models.BackupState) error {
	state.UpdatedAt = time.Now()
	return s.db.Save(state).Error
}

// --- Health state ---

func (s *StateStore) GetHealthState(serverID string) (*models.HealthState, error) {
	var state models.HealthState
	err := s.db.Where("server_id = ?", serverID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.HealthState{ServerID: serverID, Verdict: models.HealthUnknown}, nil
		}
		return nil, err
	}
	return &state, nil
}

func (s *StateStore) SaveHealthState(state *models.HealthState) error {
	l := s.lockFor(state.ServerID, StateHealth)
	l.Lock()
	defer l.Unlock()
	state.UpdatedAt = time.Now()
	return s.db.Save(state).Error
}

// UpdateHealthState runs a serialized read-modify-write cycle
func (s *StateStore) UpdateHealthState(serverID string, mutate func(*models.HealthState)) error {
	l := s.lockFor(serverID, StateHealth)
	l.Lock()
	defer l.Unlock()

	state, err := s.GetHealthState(serverID)
	if err != nil {
		return err
	}
	mutate(state)
	state.UpdatedAt = time.Now()
	return s.db.Save(state).Error
}

// --- Plugin update state ---

func (s *StateStore) GetPluginUpdateState(serverID string) (*models.PluginUpdateState, error) {
	var state models.PluginUpdateState
	err := s.db.Where("server_id = ?", serverID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.PluginUpdateState{ServerID: serverID}, nil
		}
		return nil, err
	}
	return &state, nil
}

func (s *StateStore) SavePluginUpdateState(state *models.PluginUpdateState) error {
	l := s.lockFor(state.ServerID, StatePluginUpdate)
	l.Lock()
	defer l.Unlock()
	state.UpdatedAt = time.Now()
	return s.db.Save(state).Error
}

// UpdatePluginUpdateState runs a serialized read-modify-write cycle
func (s *StateStore) UpdatePluginUpdateState(serverID string, mutate func(*models.PluginUpdateState)) error {
	l := s.lockFor(serverID, StatePluginUpdate)
	l.Lock()
	defer l.Unlock()

	state, err := s.GetPluginUpdateState(serverID)
	if err != nil {
		return err
	}
	mutate(state)
	state.UpdatedAt = time.Now()
	return s.db.Save(state).Error
}

// --- Per-server automation configs ---

func (s *StateStore) GetHealthCheckConfig(serverID string) (*models.HealthCheckConfig, error) {
	var cfg models.HealthCheckConfig
	err := s.db.Where("server_id = ?", serverID).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.HealthCheckConfig{
				ServerID:         serverID,
				Enabled:          false,
				IntervalSeconds:  60,
				FailureThreshold: 3,
			}, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *StateStore) SaveHealthCheckConfig(cfg *models.HealthCheckConfig) error {
	cfg.UpdatedAt = time.Now()
	return s.db.Save(cfg).Error
}

func (s *StateStore) GetPluginAutoUpdateConfig(serverID string) (*models.PluginAutoUpdateConfig, error) {
	var cfg models.PluginAutoUpdateConfig
	err := s.db.Where("server_id = ?", serverID).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.PluginAutoUpdateConfig{
				ServerID:        serverID,
				Enabled:         false,
				IntervalSeconds: 3600,
			}, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *StateStore) SavePluginAutoUpdateConfig(cfg *models.PluginAutoUpdateConfig) error {
	cfg.UpdatedAt = time.Now()
	return s.db.Save(cfg).Error
}
