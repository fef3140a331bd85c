package docker

import (
	"strings"
	"testing"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/models"
)

func specServer(edition models.Edition) *models.GameServer {
	return &models.GameServer{
		ID:           "srv-1",
		Name:         "test",
		Edition:      edition,
		Version:      "1.21.1",
		MemoryMB:     2048,
		MaxPlayers:   20,
		Port:         25565,
		RconPort:     25575,
		RconPassword: "secret",
	}
}

func hasEnv(env []string, entry string) bool {
	for _, e := range env {
		if e == entry {
			return true
		}
	}
	return false
}

func TestBuildContainerSpecJava(t *testing.T) {
	spec, err := buildContainerSpec(specServer(models.EditionJava))
	if err != nil {
		t.Fatalf("buildContainerSpec: %v", err)
	}

	if spec.image != javaImage {
		t.Errorf("image = %q, want %q", spec.image, javaImage)
	}
	if !hasEnv(spec.env, "TYPE=PAPER") {
		t.Error("java spec missing TYPE=PAPER")
	}
	if !hasEnv(spec.env, "ENABLE_RCON=true") {
		t.Error("java spec missing RCON enablement")
	}
	if _, ok := spec.bindings["25575/tcp"]; !ok {
		t.Error("java spec missing RCON port binding")
	}
	if bindings := spec.bindings["25575/tcp"]; len(bindings) != 1 || bindings[0].HostIP != "127.0.0.1" {
		t.Error("RCON must bind to localhost only")
	}
}

func TestBuildContainerSpecBedrock(t *testing.T) {
	spec, err := buildContainerSpec(specServer(models.EditionBedrock))
	if err != nil {
		t.Fatalf("buildContainerSpec: %v", err)
	}

	if spec.image != bedrockImage {
		t.Errorf("image = %q, want %q", spec.image, bedrockImage)
	}
	for _, e := range spec.env {
		if strings.Contains(e, "RCON") || strings.Contains(e, "TYPE=") {
			t.Errorf("bedrock spec carries java-only env %q", e)
		}
	}
	if _, ok := spec.bindings["19132/udp"]; !ok {
		t.Error("bedrock spec missing UDP game port binding")
	}
	if _, ok := spec.bindings["25575/tcp"]; ok {
		t.Error("bedrock spec must not bind an RCON port")
	}
}

func TestBuildContainerSpecUnknownEdition(t *testing.T) {
	_, err := buildContainerSpec(specServer(models.Edition("pocket")))
	if !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
