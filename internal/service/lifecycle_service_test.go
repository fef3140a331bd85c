package service

import (
	"strings"
	"testing"
	"time"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/repository"
)

func newLifecycleFixture(t *testing.T) (*LifecycleService, *fakeRuntime, *repository.ServerRepository) {
	svc, runtime, repo, _ := newLifecycleFixtureWithLocks(t)
	return svc, runtime, repo
}

func newLifecycleFixtureWithLocks(t *testing.T) (*LifecycleService, *fakeRuntime, *repository.ServerRepository, *ServerLocks) {
	t.Helper()
	db := newTestDB(t)
	repo := repository.NewServerRepository(db)
	runtime := newFakeRuntime()
	locks := NewServerLocks()
	svc := NewLifecycleService(repo, runtime, locks, 30*time.Second)
	return svc, runtime, repo, locks
}

func TestStartIsIdempotent(t *testing.T) {
	svc, runtime, repo := newLifecycleFixture(t)
	seedServer(t, repo, "srv-1", "1.21")

	status, err := svc.Start("srv-1", TriggerManual)
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if !status.Running {
		t.Error("expected running status after start")
	}

	if _, err := svc.Start("srv-1", TriggerManual); err != nil {
		t.Fatalf("second start failed: %v", err)
	}

	starts, _, _ := runtime.calls()
	if starts != 1 {
		t.Errorf("runtime started %d times, want 1", starts)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	svc, runtime, repo := newLifecycleFixture(t)
	seedServer(t, repo, "srv-1", "1.21")
	runtime.setRunning("srv-1", true)

	if _, err := svc.Stop("srv-1", TriggerManual); err != nil {
		t.Fatalf("first stop failed: %v", err)
	}
	if _, err := svc.Stop("srv-1", TriggerManual); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}

	_, stops, _ := runtime.calls()
	if stops != 1 {
		t.Errorf("runtime stopped %d times, want 1", stops)
	}
}

func TestManualStopWaitsForServerLock(t *testing.T) {
	svc, runtime, repo, locks := newLifecycleFixtureWithLocks(t)
	seedServer(t, repo, "srv-1", "1.21")
	runtime.setRunning("srv-1", true)

	if !locks.TryLock("srv-1") {
		t.Fatal("could not take the server lock")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := svc.Stop("srv-1", TriggerManual); err != nil {
			t.Errorf("stop failed: %v", err)
		}
	}()

	select {
	case <-done:
		t.Fatal("manual stop completed while another operation held the server lock")
	case <-time.After(50 * time.Millisecond):
	}
	if _, stops, _ := runtime.calls(); stops != 0 {
		t.Fatalf("runtime stopped %d times while the server lock was held", stops)
	}

	locks.Unlock("srv-1")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not proceed after the server lock was released")
	}
	if _, stops, _ := runtime.calls(); stops != 1 {
		t.Errorf("runtime stopped %d times, want 1", stops)
	}
}

func TestStartRecordsTimestamp(t *testing.T) {
	svc, _, repo := newLifecycleFixture(t)
	seedServer(t, repo, "srv-1", "1.21")

	if _, err := svc.Start("srv-1", TriggerManual); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	server, err := repo.FindByID("srv-1")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if server.LastStartedAt == nil {
		t.Error("LastStartedAt not recorded")
	}
}

func TestStartUnknownServer(t *testing.T) {
	svc, _, _ := newLifecycleFixture(t)

	_, err := svc.Start("missing", TriggerManual)
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestLogsCarryHeader(t *testing.T) {
	svc, _, repo := newLifecycleFixture(t)
	seedServer(t, repo, "srv-1", "1.21")

	logs, err := svc.Logs("srv-1", 50)
	if err != nil {
		t.Fatalf("logs failed: %v", err)
	}
	if !strings.Contains(logs, "srv-1") {
		t.Error("log header missing server id")
	}
	if !strings.Contains(logs, "[Server] Done") {
		t.Error("log body missing container output")
	}
}
