package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/craftops/fleet/internal/external"
	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/notify"
	"github.com/craftops/fleet/internal/repository"
	"github.com/craftops/fleet/pkg/logger"
)

// PluginCatalog resolves plugin projects and versions. The Modrinth
// implementation lives in internal/external; tests substitute a fake.
type PluginCatalog interface {
	GetProject(slugOrID string) (*external.CatalogProject, error)
	LatestCompatibleVersion(projectID, gameVersion string) (*external.CatalogVersion, error)
	DownloadFile(file *external.CatalogFile, targetDir string) (string, error)
}

// PluginUpdateService scans each server's installed plugin jars, compares
// them against the catalog and records what is outdated. Servers with
// auto-apply enabled get the new jars downloaded in place.
type PluginUpdateService struct {
	servers    *repository.ServerRepository
	states     *repository.StateStore
	catalog    PluginCatalog
	notifier   *notify.WebhookNotifier
	serversDir string

	interval time.Duration
	stopChan chan struct{}
	timeNow  func() time.Time
}

func NewPluginUpdateService(
	servers *repository.ServerRepository,
	states *repository.StateStore,
	catalog PluginCatalog,
	serversDir string,
	interval time.Duration,
) *PluginUpdateService {
	return &PluginUpdateService{
		servers:    servers,
		states:     states,
		catalog:    catalog,
		serversDir: serversDir,
		interval:   interval,
		stopChan:   make(chan struct{}),
		timeNow:    time.Now,
	}
}

func (s *PluginUpdateService) SetNotifier(n *notify.WebhookNotifier) {
	s.notifier = n
}

// Start launches the periodic check loop in a background goroutine
func (s *PluginUpdateService) Start() {
	logger.Info("Starting plugin update checker", map[string]interface{}{
		"interval": s.interval.String(),
	})

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.checkAll()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop terminates the check loop
func (s *PluginUpdateService) Stop() {
	close(s.stopChan)
	logger.Info("Plugin update checker stopped", nil)
}

func (s *PluginUpdateService) checkAll() {
	servers, err := s.servers.FindAll()
	if err != nil {
		logger.Error("Plugin checker failed to list servers", err, nil)
		return
	}

	now := s.timeNow()
	for i := range servers {
		server := servers[i]

		cfg, err := s.states.GetPluginAutoUpdateConfig(server.ID)
		if err != nil || !cfg.Enabled {
			continue
		}

		state, err := s.states.GetPluginUpdateState(server.ID)
		if err != nil {
			continue
		}
		if state.LastCheckTime != nil && now.Sub(*state.LastCheckTime) < time.Duration(cfg.IntervalSeconds)*time.Second {
			continue
		}

		if _, err := s.CheckServer(&server, cfg.AutoApply); err != nil {
			logger.Warn("Plugin update check failed", map[string]interface{}{
				"server_id": server.ID,
				"error":     err.Error(),
			})
		}
	}
}

// CheckServer runs one update check for a server and returns the findings.
// The check time is persisted even when nothing is outdated, so the next
// scheduled check keys off this run.
func (s *PluginUpdateService) CheckServer(server *models.GameServer, autoApply bool) ([]models.PluginUpdateInfo, error) {
	installed, err := s.scanPlugins(server.ID)
	if err != nil {
		return nil, err
	}

	findings := make([]models.PluginUpdateInfo, 0)
	replaced := make(map[string]string) // plugin ID -> installed jar filename
	for slug, jar := range installed {
		finding, err := s.checkPlugin(server, slug, jar)
		if err != nil {
			logger.Debug("Plugin lookup failed", map[string]interface{}{
				"server_id": server.ID,
				"plugin":    slug,
				"error":     err.Error(),
			})
			continue
		}
		if finding != nil {
			findings = append(findings, *finding)
			replaced[finding.PluginID] = jar.filename
		}
	}

	now := s.timeNow()
	err = s.states.UpdatePluginUpdateState(server.ID, func(state *models.PluginUpdateState) {
		state.LastCheckTime = &now
		if err := state.SetUpdates(findings); err != nil {
			logger.Error("Failed to encode plugin findings", err, map[string]interface{}{
				"server_id": server.ID,
			})
		}
	})
	if err != nil {
		return nil, err
	}

	if len(findings) > 0 {
		logger.Info("Plugin updates found", map[string]interface{}{
			"server_id": server.ID,
			"count":     len(findings),
		})
		if s.notifier != nil {
			s.notifier.Send(notify.EventData{
				Event:      notify.EventPluginUpdates,
				ServerID:   server.ID,
				ServerName: server.Name,
				Message:    fmt.Sprintf("%d plugin(s) outdated", len(findings)),
			})
		}
		if autoApply {
			s.applyUpdates(server.ID, findings, replaced)
		}
	}
	return findings, nil
}

type installedJar struct {
	filename string
	version  string
}

// scanPlugins lists the server's plugins directory and parses each jar name
// into a plugin slug and installed version. Jars without a recognizable
// version suffix are skipped.
func (s *PluginUpdateService) scanPlugins(serverID string) (map[string]installedJar, error) {
	pluginsDir := filepath.Join(s.serversDir, serverID, "plugins")
	entries, err := os.ReadDir(pluginsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]installedJar{}, nil
		}
		return nil, fmt.Errorf("failed to read plugins directory: %w", err)
	}

	installed := make(map[string]installedJar)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jar") {
			continue
		}
		name, version, ok := ParseJarName(entry.Name())
		if !ok {
			continue
		}
		installed[strings.ToLower(name)] = installedJar{
			filename: entry.Name(),
			version:  version,
		}
	}
	return installed, nil
}

// checkPlugin resolves one plugin against the catalog. Returns nil when the
// installed version is already the latest compatible release.
func (s *PluginUpdateService) checkPlugin(server *models.GameServer, slug string, jar installedJar) (*models.PluginUpdateInfo, error) {
	project, err := s.catalog.GetProject(slug)
	if err != nil {
		return nil, err
	}

	latest, err := s.catalog.LatestCompatibleVersion(project.ProjectID, server.Version)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.VersionNumber == jar.version {
		return nil, nil
	}

	file := external.PrimaryFile(latest)
	if file == nil {
		return nil, nil
	}

	return &models.PluginUpdateInfo{
		PluginID:         project.ProjectID,
		InstalledVersion: jar.version,
		LatestVersion:    latest.VersionNumber,
		DownloadURL:      file.URL,
		Filename:         file.Filename,
	}, nil
}

// applyUpdates downloads the new jars and removes the replaced ones
func (s *PluginUpdateService) applyUpdates(serverID string, findings []models.PluginUpdateInfo, replaced map[string]string) {
	pluginsDir := filepath.Join(s.serversDir, serverID, "plugins")

	for _, finding := range findings {
		path, err := s.catalog.DownloadFile(&external.CatalogFile{
			URL:      finding.DownloadURL,
			Filename: finding.Filename,
		}, pluginsDir)
		if err != nil {
			logger.Warn("Plugin download failed", map[string]interface{}{
				"server_id": serverID,
				"plugin":    finding.PluginID,
				"error":     err.Error(),
			})
			continue
		}

		if old, ok := replaced[finding.PluginID]; ok && old != finding.Filename {
			os.Remove(filepath.Join(pluginsDir, old))
		}

		logger.Info("Plugin updated", map[string]interface{}{
			"server_id": serverID,
			"plugin":    finding.PluginID,
			"version":   finding.LatestVersion,
			"path":      path,
		})
	}
}

// ParseJarName splits a plugin jar filename of the form "Name-1.2.3.jar"
// into its name and version. The version starts at the last dash followed
// by a digit, so names containing dashes still parse.
func ParseJarName(filename string) (name, version string, ok bool) {
	base := strings.TrimSuffix(filename, ".jar")
	if base == filename {
		return "", "", false
	}

	idx := -1
	for i := len(base) - 1; i > 0; i-- {
		if base[i] == '-' && i+1 < len(base) && base[i+1] >= '0' && base[i+1] <= '9' {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return "", "", false
	}
	return base[:idx], base[idx+1:], true
}
