package repository

import (
	"errors"

	"github.com/craftops/fleet/internal/models"
	"gorm.io/gorm"
)

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Get returns the schedule for a server. When none is recorded yet a
// disabled default is returned, never an error.
func (r *ScheduleRepository) Get(serverID string) (*models.ServerSchedule, error) {
	var schedule models.ServerSchedule
	err := r.db.Where("server_id = ?", serverID).First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			schedule = models.ServerSchedule{
				ServerID: serverID,
				Enabled:  false,
				Timezone: "UTC",
			}
			if err := schedule.SetWeekly(models.DefaultWeeklySchedule()); err != nil {
				return nil, err
			}
			return &schedule, nil
		}
		return nil, err
	}
	return &schedule, nil
}

// Save upserts the schedule record for its server
func (r *ScheduleRepository) Save(schedule *models.ServerSchedule) error {
	var existing models.ServerSchedule
	err := r.db.Where("server_id = ?", schedule.ServerID).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.Create(schedule).Error
		}
		return err
	}
	schedule.ID = existing.ID
	return r.db.Save(schedule).Error
}

// Delete removes the schedule record for a server
func (r *ScheduleRepository) Delete(serverID string) error {
	return r.db.Unscoped().Where("server_id = ?", serverID).Delete(&models.ServerSchedule{}).Error
}
