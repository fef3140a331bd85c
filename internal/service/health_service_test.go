package service

import (
	"errors"
	"testing"
	"time"

	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/repository"
)

func newHealthFixture(t *testing.T) (*HealthService, *fakeRuntime, *fakeConsole, *repository.StateStore, *repository.ServerRepository) {
	t.Helper()
	db := newTestDB(t)
	repo := repository.NewServerRepository(db)
	states := repository.NewStateStore(db)
	runtime := newFakeRuntime()
	console := &fakeConsole{}
	svc := NewHealthService(repo, states, runtime, console, 30*time.Second)
	return svc, runtime, console, states, repo
}

func TestHealthProbeHealthyServer(t *testing.T) {
	svc, runtime, _, states, repo := newHealthFixture(t)
	server := seedServer(t, repo, "srv-1", "1.21")
	runtime.setRunning("srv-1", true)

	cfg := &models.HealthCheckConfig{ServerID: "srv-1", Enabled: true, IntervalSeconds: 60, FailureThreshold: 3}
	svc.probe(server, cfg)

	state, err := states.GetHealthState("srv-1")
	if err != nil {
		t.Fatal(err)
	}
	if state.Verdict != models.HealthHealthy {
		t.Errorf("verdict = %q, want healthy", state.Verdict)
	}
	if state.ConsecutiveFailures != 0 {
		t.Errorf("failures = %d, want 0", state.ConsecutiveFailures)
	}
	if state.LastCheckTime == nil {
		t.Error("LastCheckTime not persisted")
	}
}

func TestHealthUnhealthyAfterThreshold(t *testing.T) {
	svc, runtime, console, states, repo := newHealthFixture(t)
	server := seedServer(t, repo, "srv-1", "1.21")
	runtime.setRunning("srv-1", true)
	console.err = errors.New("connection refused")

	cfg := &models.HealthCheckConfig{ServerID: "srv-1", Enabled: true, IntervalSeconds: 60, FailureThreshold: 3}

	svc.probe(server, cfg)
	svc.probe(server, cfg)

	state, _ := states.GetHealthState("srv-1")
	if state.Verdict == models.HealthUnhealthy {
		t.Error("server flagged unhealthy before reaching the failure threshold")
	}
	if state.ConsecutiveFailures != 2 {
		t.Errorf("failures = %d, want 2", state.ConsecutiveFailures)
	}

	svc.probe(server, cfg)

	state, _ = states.GetHealthState("srv-1")
	if state.Verdict != models.HealthUnhealthy {
		t.Errorf("verdict = %q, want unhealthy after threshold", state.Verdict)
	}
}

func TestHealthFirstFailingProbesReadHealthy(t *testing.T) {
	svc, runtime, console, states, repo := newHealthFixture(t)
	server := seedServer(t, repo, "srv-1", "1.21")
	runtime.setRunning("srv-1", true)
	console.err = errors.New("connection refused")

	// A fresh server with no prior probes; failures below the threshold must
	// read healthy, not linger at unknown.
	cfg := &models.HealthCheckConfig{ServerID: "srv-1", Enabled: true, IntervalSeconds: 60, FailureThreshold: 3}
	svc.probe(server, cfg)
	svc.probe(server, cfg)

	state, err := states.GetHealthState("srv-1")
	if err != nil {
		t.Fatal(err)
	}
	if state.Verdict != models.HealthHealthy {
		t.Errorf("verdict = %q, want healthy below the failure threshold", state.Verdict)
	}
	if state.ConsecutiveFailures != 2 {
		t.Errorf("failures = %d, want 2", state.ConsecutiveFailures)
	}

	svc.probe(server, cfg)
	state, _ = states.GetHealthState("srv-1")
	if state.Verdict != models.HealthUnhealthy {
		t.Errorf("verdict = %q, want unhealthy at the threshold", state.Verdict)
	}
}

func TestHealthRecoveryResetsStreak(t *testing.T) {
	svc, runtime, console, states, repo := newHealthFixture(t)
	server := seedServer(t, repo, "srv-1", "1.21")
	runtime.setRunning("srv-1", true)
	console.err = errors.New("timeout")

	cfg := &models.HealthCheckConfig{ServerID: "srv-1", Enabled: true, IntervalSeconds: 60, FailureThreshold: 2}
	svc.probe(server, cfg)
	svc.probe(server, cfg)

	console.err = nil
	svc.probe(server, cfg)

	state, _ := states.GetHealthState("srv-1")
	if state.Verdict != models.HealthHealthy {
		t.Errorf("verdict = %q, want healthy after recovery", state.Verdict)
	}
	if state.ConsecutiveFailures != 0 {
		t.Errorf("failures = %d, want 0 after recovery", state.ConsecutiveFailures)
	}
}

func TestHealthStoppedServerIsUnknown(t *testing.T) {
	svc, _, _, states, repo := newHealthFixture(t)
	server := seedServer(t, repo, "srv-1", "1.21")

	cfg := &models.HealthCheckConfig{ServerID: "srv-1", Enabled: true, IntervalSeconds: 60, FailureThreshold: 3}
	svc.probe(server, cfg)

	state, _ := states.GetHealthState("srv-1")
	if state.Verdict != models.HealthUnknown {
		t.Errorf("verdict = %q, want unknown for stopped server", state.Verdict)
	}
	if state.ConsecutiveFailures != 0 {
		t.Errorf("failures = %d, want 0 for stopped server", state.ConsecutiveFailures)
	}
}

func TestHealthBedrockUsesContainerState(t *testing.T) {
	svc, runtime, console, states, repo := newHealthFixture(t)
	server := seedServer(t, repo, "srv-1", "1.21")
	server.Edition = models.EditionBedrock
	if err := repo.Update(server); err != nil {
		t.Fatal(err)
	}
	runtime.setRunning("srv-1", true)
	console.err = errors.New("no console on bedrock")

	cfg := &models.HealthCheckConfig{ServerID: "srv-1", Enabled: true, IntervalSeconds: 60, FailureThreshold: 3}
	svc.probe(server, cfg)

	state, _ := states.GetHealthState("srv-1")
	if state.Verdict != models.HealthHealthy {
		t.Errorf("verdict = %q, want healthy from container state alone", state.Verdict)
	}
	if len(console.commands) != 0 {
		t.Error("bedrock probe must not touch the console")
	}
}
