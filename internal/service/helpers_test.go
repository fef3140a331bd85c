package service

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedServer(t *testing.T, repo *repository.ServerRepository, id, version string) *models.GameServer {
	t.Helper()
	server := &models.GameServer{
		ID:           id,
		Name:         "test-" + id,
		Edition:      models.EditionJava,
		Version:      version,
		MemoryMB:     2048,
		MaxPlayers:   20,
		Port:         25565,
		RconPort:     25575,
		RconPassword: "secret",
	}
	if err := repo.Create(server); err != nil {
		t.Fatalf("failed to seed server: %v", err)
	}
	return server
}

// fakeRuntime is an in-memory ContainerRuntime for lifecycle and upgrade
// tests.
type fakeRuntime struct {
	mu            sync.Mutex
	running       map[string]bool
	recreateErr   error
	startCalls    int
	stopCalls     int
	recreateCalls int
	statusCalls   int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{running: make(map[string]bool)}
}

func (f *fakeRuntime) Start(server *models.GameServer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	f.running[server.ID] = true
	return nil
}

func (f *fakeRuntime) Stop(serverID string, grace time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.running[serverID] = false
	return nil
}

func (f *fakeRuntime) Recreate(server *models.GameServer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recreateCalls++
	if f.recreateErr != nil {
		return f.recreateErr
	}
	f.running[server.ID] = true
	return nil
}

func (f *fakeRuntime) Status(serverID string) (models.ServerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.running[serverID] {
		return models.ServerStatus{Running: true, Phase: "running"}, nil
	}
	return models.ServerStatus{Running: false, Phase: "stopped"}, nil
}

func (f *fakeRuntime) ContainerInfo(serverID string) (*models.ContainerInfo, error) {
	return &models.ContainerInfo{Uptime: time.Minute, MemoryBytes: 1 << 20}, nil
}

func (f *fakeRuntime) Logs(serverID string, tail int) (string, error) {
	return "[Server] Done\n", nil
}

func (f *fakeRuntime) setRunning(serverID string, running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running[serverID] = running
}

func (f *fakeRuntime) calls() (start, stop, recreate int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls, f.stopCalls, f.recreateCalls
}

// fakeConsole is a scriptable ConsoleExecutor
type fakeConsole struct {
	mu       sync.Mutex
	err      error
	commands []string
}

func (f *fakeConsole) Execute(serverID, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	if f.err != nil {
		return "", f.err
	}
	return "ok", nil
}
