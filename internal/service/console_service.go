package service

import (
	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/monitoring"
	"github.com/craftops/fleet/internal/rcon"
	"github.com/craftops/fleet/internal/repository"
	"github.com/craftops/fleet/pkg/logger"
)

// ConsoleService executes remote console commands against servers by ID,
// resolving each server's console port and credentials from the repository.
type ConsoleService struct {
	servers *repository.ServerRepository
	dialer  *rcon.Dialer
}

func NewConsoleService(servers *repository.ServerRepository, dialer *rcon.Dialer) *ConsoleService {
	return &ConsoleService{
		servers: servers,
		dialer:  dialer,
	}
}

// Execute runs one command on the server's remote console
func (s *ConsoleService) Execute(serverID, command string) (string, error) {
	server, err := s.servers.FindByID(serverID)
	if err != nil {
		return "", err
	}

	client := s.dialer.Client(server.RconPort, server.RconPassword)
	response, err := client.Execute(command)
	if err != nil {
		monitoring.ConsoleErrorsTotal.WithLabelValues(serverID, errs.KindOf(err).String()).Inc()
		logger.Debug("Console command failed", map[string]interface{}{
			"server_id": serverID,
			"command":   command,
			"error":     err.Error(),
		})
		return "", err
	}
	return response, nil
}

// AddToWhitelist adds a player to the server's whitelist
func (s *ConsoleService) AddToWhitelist(serverID, player string) error {
	server, err := s.servers.FindByID(serverID)
	if err != nil {
		return err
	}
	if _, err := s.dialer.Client(server.RconPort, server.RconPassword).AddToWhitelist(player); err != nil {
		monitoring.ConsoleErrorsTotal.WithLabelValues(serverID, errs.KindOf(err).String()).Inc()
		return err
	}
	return nil
}

// RemoveFromWhitelist removes a player from the server's whitelist
func (s *ConsoleService) RemoveFromWhitelist(serverID, player string) error {
	server, err := s.servers.FindByID(serverID)
	if err != nil {
		return err
	}
	if _, err := s.dialer.Client(server.RconPort, server.RconPassword).RemoveFromWhitelist(player); err != nil {
		monitoring.ConsoleErrorsTotal.WithLabelValues(serverID, errs.KindOf(err).String()).Inc()
		return err
	}
	return nil
}

// Whitelist returns the server's current whitelist entries
func (s *ConsoleService) Whitelist(serverID string) ([]rcon.WhitelistEntry, error) {
	server, err := s.servers.FindByID(serverID)
	if err != nil {
		return nil, err
	}
	entries, err := s.dialer.Client(server.RconPort, server.RconPassword).Whitelist()
	if err != nil {
		monitoring.ConsoleErrorsTotal.WithLabelValues(serverID, errs.KindOf(err).String()).Inc()
		return nil, err
	}
	return entries, nil
}
