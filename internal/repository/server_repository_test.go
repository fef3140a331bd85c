package repository

import (
	"testing"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/models"
)

func seedServer(t *testing.T, repo *ServerRepository, id string, port, rconPort int) *models.GameServer {
	t.Helper()
	server := &models.GameServer{
		ID:           id,
		Name:         "test-" + id,
		Edition:      models.EditionJava,
		Version:      "1.21",
		MemoryMB:     2048,
		MaxPlayers:   20,
		Port:         port,
		RconPort:     rconPort,
		RconPassword: "secret",
	}
	if err := repo.Create(server); err != nil {
		t.Fatalf("failed to seed server: %v", err)
	}
	return server
}

func TestFindByIDNotFound(t *testing.T) {
	repo := NewServerRepository(newTestDB(t))

	_, err := repo.FindByID("missing")
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestCreateAndFindByID(t *testing.T) {
	repo := NewServerRepository(newTestDB(t))
	seedServer(t, repo, "srv-1", 25565, 25575)

	server, err := repo.FindByID("srv-1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if server.Name != "test-srv-1" || server.Version != "1.21" {
		t.Errorf("unexpected server: %+v", server)
	}
}

func TestUpdateVersion(t *testing.T) {
	repo := NewServerRepository(newTestDB(t))
	seedServer(t, repo, "srv-1", 25565, 25575)

	if err := repo.UpdateVersion("srv-1", "1.21.4"); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	server, _ := repo.FindByID("srv-1")
	if server.Version != "1.21.4" {
		t.Errorf("version = %q, want 1.21.4", server.Version)
	}
}

func TestUpdateVersionUnknownServer(t *testing.T) {
	repo := NewServerRepository(newTestDB(t))

	err := repo.UpdateVersion("missing", "1.21.4")
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	repo := NewServerRepository(newTestDB(t))
	seedServer(t, repo, "srv-1", 25565, 25575)

	deleted, err := repo.Delete("srv-1")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !deleted {
		t.Error("delete reported false for existing server")
	}

	deleted, err = repo.Delete("srv-1")
	if err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
	if deleted {
		t.Error("delete reported true for already-deleted server")
	}
}

func TestGetUsedPorts(t *testing.T) {
	repo := NewServerRepository(newTestDB(t))
	seedServer(t, repo, "srv-1", 25565, 25575)
	seedServer(t, repo, "srv-2", 25566, 25576)

	ports, err := repo.GetUsedPorts()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	seen := make(map[int]bool, len(ports))
	for _, p := range ports {
		seen[p] = true
	}
	for _, want := range []int{25565, 25575, 25566, 25576} {
		if !seen[want] {
			t.Errorf("port %d missing from used ports %v", want, ports)
		}
	}
}
