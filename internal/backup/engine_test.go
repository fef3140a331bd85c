package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/monitoring"
	"github.com/craftops/fleet/internal/repository"
)

type stubConsole struct{}

func (stubConsole) Execute(serverID, command string) (string, error) { return "", nil }

type stubProber struct{ running bool }

func (p stubProber) Status(serverID string) (models.ServerStatus, error) {
	return models.ServerStatus{Running: p.running}, nil
}

func newEngineFixture(t *testing.T) (*Engine, *repository.StateStore, string) {
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

	repo := repository.NewServerRepository(db)
	states := repository.NewStateStore(db)
	serversDir := t.TempDir()

	server := &models.GameServer{
		ID: "srv-1", Name: "test", Edition: models.EditionJava, Version: "1.21",
		MemoryMB: 2048, MaxPlayers: 20, Port: 25565, RconPort: 25575, RconPassword: "secret",
	}
	if err := repo.Create(server); err != nil {
		t.Fatal(err)
	}

	engine, err := NewEngine(repo, states, stubConsole{}, stubProber{}, serversDir)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return engine, states, serversDir
}

func seedWorld(t *testing.T, serversDir string) {
	t.Helper()
	worldDir := filepath.Join(serversDir, "srv-1", "world")
	if err := os.MkdirAll(filepath.Join(worldDir, "region"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(worldDir, "level.dat"), []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(worldDir, "region", "r.0.0.mca"), []byte("chunks"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWorldBackupCreatesArchive(t *testing.T) {
	engine, states, serversDir := newEngineFixture(t)
	seedWorld(t, serversDir)

	info, err := engine.CreateWorldBackup("srv-1", models.BackupTriggerManual)
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if info.Kind != models.BackupKindWorld {
		t.Errorf("kind = %q, want world", info.Kind)
	}
	if !strings.HasSuffix(info.ID, ".tar.gz") {
		t.Errorf("backup id %q is not a tar.gz token", info.ID)
	}
	if info.Size <= 0 {
		t.Error("archive size not recorded")
	}

	state, err := states.GetBackupState("srv-1")
	if err != nil {
		t.Fatal(err)
	}
	if !state.LastBackupSuccess {
		t.Error("success not recorded in backup state")
	}
	if state.LastBackupTime == nil {
		t.Error("backup time not recorded")
	}
}

func TestBackupCountsArchivedBytes(t *testing.T) {
	engine, _, serversDir := newEngineFixture(t)
	seedWorld(t, serversDir)

	counter := monitoring.BackupBytesTotal.WithLabelValues("srv-1")
	before := testutil.ToFloat64(counter)

	if _, err := engine.CreateWorldBackup("srv-1", models.BackupTriggerManual); err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	if after := testutil.ToFloat64(counter); after <= before {
		t.Errorf("backup bytes counter did not grow: before=%f after=%f", before, after)
	}
}

func TestWorldBackupWithoutWorldFails(t *testing.T) {
	engine, states, _ := newEngineFixture(t)

	if _, err := engine.CreateWorldBackup("srv-1", models.BackupTriggerScheduled); err == nil {
		t.Fatal("expected error for missing world directory")
	}

	state, _ := states.GetBackupState("srv-1")
	if state.LastBackupSuccess {
		t.Error("failed attempt recorded as success")
	}
	if state.LastBackupTime == nil {
		t.Error("failed attempt did not record its time")
	}
}

func TestListNewestFirst(t *testing.T) {
	engine, _, serversDir := newEngineFixture(t)
	seedWorld(t, serversDir)

	first, err := engine.CreateWorldBackup("srv-1", models.BackupTriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	// Filesystem mtime resolution needs a gap to order reliably.
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(serversDir, ".backups", "srv-1", first.ID), old, old); err != nil {
		t.Fatal(err)
	}
	second, err := engine.CreateWorldBackup("srv-1", models.BackupTriggerManual)
	if err != nil {
		t.Fatal(err)
	}

	backups, err := engine.List("srv-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 2 {
		t.Fatalf("got %d backups, want 2", len(backups))
	}
	if backups[0].ID != second.ID {
		t.Errorf("newest backup not first: got %q", backups[0].ID)
	}
}

func TestListUnknownServerIsEmpty(t *testing.T) {
	engine, _, _ := newEngineFixture(t)

	backups, err := engine.List("nobody")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("got %d backups, want 0", len(backups))
	}
}

func TestDeleteUnknownBackupReturnsFalse(t *testing.T) {
	engine, _, _ := newEngineFixture(t)

	deleted, err := engine.Delete("srv-1", "world-20200101T000000-deadbeef.tar.gz")
	if err != nil {
		t.Fatalf("delete errored: %v", err)
	}
	if deleted {
		t.Error("delete reported success for unknown backup")
	}
}

func TestDeleteExistingBackup(t *testing.T) {
	engine, _, serversDir := newEngineFixture(t)
	seedWorld(t, serversDir)

	info, err := engine.CreateWorldBackup("srv-1", models.BackupTriggerManual)
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := engine.Delete("srv-1", info.ID)
	if err != nil {
		t.Fatalf("delete errored: %v", err)
	}
	if !deleted {
		t.Error("delete reported failure for existing backup")
	}
}

func TestValidateBackupIDRejectsTraversal(t *testing.T) {
	bad := []string{
		"",
		"../../../etc/passwd",
		"..\\windows\\system32",
		"a/b.tar.gz",
		"..",
		"world-..-x.tar.gz",
		"backup.zip",
	}
	for _, id := range bad {
		if err := ValidateBackupID(id); !errs.IsKind(err, errs.KindValidation) {
			t.Errorf("ValidateBackupID(%q) = %v, want validation error", id, err)
		}
	}

	if err := ValidateBackupID("world-20240101T120000-abcd1234.tar.gz"); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
}
