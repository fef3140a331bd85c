package repository

import (
	"errors"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/models"
	"gorm.io/gorm"
)

type ServerRepository struct {
	db *gorm.DB
}

func NewServerRepository(db *gorm.DB) *ServerRepository {
	return &ServerRepository{db: db}
}

func (r *ServerRepository) Create(server *models.GameServer) error {
	return r.db.Create(server).Error
}

func (r *ServerRepository) FindByID(id string) (*models.GameServer, error) {
	var server models.GameServer
	err := r.db.Where("id = ?", id).First(&server).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("server", id)
		}
		return nil, err
	}
	return &server, nil
}

func (r *ServerRepository) FindAll() ([]models.GameServer, error) {
	var servers []models.GameServer
	err := r.db.Find(&servers).Error
	return servers, err
}

func (r *ServerRepository) Update(server *models.GameServer) error {
	return r.db.Save(server).Error
}

// UpdateVersion persists only the version field, used by the upgrade flow
func (r *ServerRepository) UpdateVersion(id, version string) error {
	res := r.db.Model(&models.GameServer{}).Where("id = ?", id).Update("version", version)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("server", id)
	}
	return nil
}

func (r *ServerRepository) Delete(id string) (bool, error) {
	res := r.db.Unscoped().Where("id = ?", id).Delete(&models.GameServer{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetUsedPorts returns every allocated game and console port
func (r *ServerRepository) GetUsedPorts() ([]int, error) {
	var gamePorts, rconPorts []int
	if err := r.db.Model(&models.GameServer{}).Pluck("port", &gamePorts).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.GameServer{}).Pluck("rcon_port", &rconPorts).Error; err != nil {
		return nil, err
	}
	return append(gamePorts, rconPorts...), nil
}
