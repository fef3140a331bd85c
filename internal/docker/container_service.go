package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/craftops/fleet/internal/errs"
	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/pkg/config"
	"github.com/craftops/fleet/pkg/logger"
)

const (
	javaImage    = "itzg/minecraft-server:latest"
	bedrockImage = "itzg/minecraft-bedrock-server:latest"
)

// ContainerService drives the Docker container backing each server. All
// engine-communication failures are surfaced as RuntimeUnavailable so the
// scheduler can retry on the next tick instead of treating them as terminal.
type ContainerService struct {
	client     *client.Client
	cfg        *config.Config
	serversDir string
}

func NewContainerService(cfg *config.Config) (*ContainerService, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	serversDir, err := filepath.Abs(cfg.ServersBasePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(serversDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create servers directory: %w", err)
	}

	return &ContainerService{
		client:     cli,
		cfg:        cfg,
		serversDir: serversDir,
	}, nil
}

// ContainerName derives the stable container name for a server id
func ContainerName(serverID string) string {
	return fmt.Sprintf("mc-%s", serverID)
}

// ServerDir returns the working directory of a server on this host
func (d *ContainerService) ServerDir(serverID string) string {
	return filepath.Join(d.serversDir, serverID)
}

// containerSpec is the edition-dependent part of a container definition
type containerSpec struct {
	image       string
	env         []string
	exposed     nat.PortSet
	bindings    nat.PortMap
	memoryBytes int64
}

// buildContainerSpec assembles image, environment and port wiring for the
// server's edition. Java servers run Paper with RCON on a localhost-only
// binding; Bedrock servers speak UDP and have no remote console.
func buildContainerSpec(server *models.GameServer) (containerSpec, error) {
	switch server.Edition {
	case models.EditionJava:
		return containerSpec{
			image: javaImage,
			env: []string{
				"EULA=TRUE",
				"TYPE=PAPER",
				fmt.Sprintf("VERSION=%s", server.Version),
				fmt.Sprintf("MEMORY=%dM", server.MemoryMB),
				fmt.Sprintf("MAX_PLAYERS=%d", server.MaxPlayers),
				"ENABLE_RCON=true",
				fmt.Sprintf("RCON_PASSWORD=%s", server.RconPassword),
				"RCON_PORT=25575",
			},
			exposed: nat.PortSet{
				"25565/tcp": struct{}{},
				"25575/tcp": struct{}{},
			},
			bindings: nat.PortMap{
				"25565/tcp": []nat.PortBinding{{
					HostIP:   "0.0.0.0",
					HostPort: strconv.Itoa(server.Port),
				}},
				// RCON only on localhost
				"25575/tcp": []nat.PortBinding{{
					HostIP:   "127.0.0.1",
					HostPort: strconv.Itoa(server.RconPort),
				}},
			},
			// 25% overhead for JVM native memory, threads and GC so the
			// heap limit does not turn into OOM kills.
			memoryBytes: int64(float64(server.MemoryMB)*1.25) * 1024 * 1024,
		}, nil
	case models.EditionBedrock:
		return containerSpec{
			image: bedrockImage,
			env: []string{
				"EULA=TRUE",
				fmt.Sprintf("VERSION=%s", server.Version),
				fmt.Sprintf("MAX_PLAYERS=%d", server.MaxPlayers),
			},
			exposed: nat.PortSet{
				"19132/udp": struct{}{},
			},
			bindings: nat.PortMap{
				"19132/udp": []nat.PortBinding{{
					HostIP:   "0.0.0.0",
					HostPort: strconv.Itoa(server.Port),
				}},
			},
			memoryBytes: int64(server.MemoryMB) * 1024 * 1024,
		}, nil
	default:
		return containerSpec{}, errs.Validation(fmt.Sprintf("unsupported edition: %q", server.Edition))
	}
}

// CreateContainer creates the container for a server from its current
// configuration. The container is created stopped.
func (d *ContainerService) CreateContainer(server *models.GameServer) error {
	ctx := context.Background()

	serverDir := d.ServerDir(server.ID)
	if err := os.MkdirAll(serverDir, 0755); err != nil {
		return fmt.Errorf("failed to create server directory: %w", err)
	}

	// Host path for the bind mount differs when the API itself runs in a
	// container.
	hostPath := serverDir
	if d.cfg.HostServersBasePath != "" {
		hostPath = filepath.Join(d.cfg.HostServersBasePath, server.ID)
	}

	spec, err := buildContainerSpec(server)
	if err != nil {
		return err
	}

	if err := d.ensureImage(ctx, spec.image); err != nil {
		logger.Warn("Failed to pull server image", map[string]interface{}{
			"image": spec.image,
			"error": err.Error(),
		})
	}

	_, err = d.client.ContainerCreate(
		ctx,
		&container.Config{
			Image:        spec.image,
			Env:          spec.env,
			ExposedPorts: spec.exposed,
			Labels: map[string]string{
				"craftops.server_id": server.ID,
				"craftops.edition":   string(server.Edition),
				"craftops.version":   server.Version,
			},
		},
		&container.HostConfig{
			PortBindings: spec.bindings,
			Binds: []string{
				fmt.Sprintf("%s:/data", hostPath),
			},
			RestartPolicy: container.RestartPolicy{
				Name: "no",
			},
			Resources: container.Resources{
				Memory: spec.memoryBytes,
			},
		},
		nil,
		nil,
		ContainerName(server.ID),
	)
	if err != nil {
		return engineErr("failed to create container", err)
	}

	logger.Info("Created container", map[string]interface{}{
		"server_id": server.ID,
		"version":   server.Version,
		"port":      server.Port,
	})
	return nil
}

// Start ensures the container exists and issues the start call. It returns
// once the engine accepts the start, it does not wait for the game process
// to finish booting.
func (d *ContainerService) Start(server *models.GameServer) error {
	ctx := context.Background()
	name := ContainerName(server.ID)

	_, err := d.client.ContainerInspect(ctx, name)
	if err != nil {
		if !client.IsErrNotFound(err) {
			return engineErr("failed to inspect container", err)
		}
		if err := d.CreateContainer(server); err != nil {
			return err
		}
	}

	if err := d.client.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return engineErr("failed to start container", err)
	}

	logger.Info("Started container", map[string]interface{}{"server_id": server.ID})
	return nil
}

// Stop issues a graceful stop with the given grace period so the game
// process can save state before termination is forced.
func (d *ContainerService) Stop(serverID string, grace time.Duration) error {
	ctx := context.Background()
	timeout := int(grace.Seconds())

	err := d.client.ContainerStop(ctx, ContainerName(serverID), container.StopOptions{Timeout: &timeout})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return engineErr("failed to stop container", err)
	}

	logger.Info("Stopped container", map[string]interface{}{"server_id": serverID})
	return nil
}

// Recreate destroys the container and rebuilds it from the server's current
// configuration. The new container is left stopped and then started; callers
// must poll for readiness, the server is not assumed running afterward.
func (d *ContainerService) Recreate(server *models.GameServer) error {
	ctx := context.Background()
	name := ContainerName(server.ID)

	err := d.client.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return engineErr("failed to remove container", err)
	}

	if err := d.CreateContainer(server); err != nil {
		return err
	}

	if err := d.client.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return engineErr("failed to start recreated container", err)
	}

	logger.Info("Recreated container", map[string]interface{}{
		"server_id": server.ID,
		"version":   server.Version,
	})
	return nil
}

// Status samples the container state. A missing container reads as stopped.
func (d *ContainerService) Status(serverID string) (models.ServerStatus, error) {
	ctx := context.Background()

	inspect, err := d.client.ContainerInspect(ctx, ContainerName(serverID))
	if err != nil {
		if client.IsErrNotFound(err) {
			return models.ServerStatus{Running: false}, nil
		}
		return models.ServerStatus{}, engineErr("failed to inspect container", err)
	}

	status := models.ServerStatus{Running: inspect.State.Running}
	switch inspect.State.Status {
	case "created", "restarting", "removing":
		status.Phase = inspect.State.Status
	}
	return status, nil
}

// ContainerInfo returns uptime and memory for a running server, nil when the
// server is not running.
func (d *ContainerService) ContainerInfo(serverID string) (*models.ContainerInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	name := ContainerName(serverID)
	inspect, err := d.client.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, nil
		}
		return nil, engineErr("failed to inspect container", err)
	}
	if !inspect.State.Running {
		return nil, nil
	}

	info := &models.ContainerInfo{}
	if startedAt, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); err == nil {
		info.Uptime = time.Since(startedAt).Round(time.Second)
	}

	statsResponse, err := d.client.ContainerStats(ctx, name, false)
	if err != nil {
		return info, nil
	}
	defer statsResponse.Body.Close()

	var stats map[string]interface{}
	if err := json.NewDecoder(statsResponse.Body).Decode(&stats); err == nil {
		if memStats, ok := stats["memory_stats"].(map[string]interface{}); ok {
			if usage, ok := memStats["usage"].(float64); ok {
				info.MemoryBytes = int64(usage)
			}
			if limit, ok := memStats["limit"].(float64); ok {
				info.MemoryLimitMB = int(limit / 1024 / 1024)
			}
		}
	}
	return info, nil
}

// Logs returns the last tail lines of container output
func (d *ContainerService) Logs(serverID string, tail int) (string, error) {
	ctx := context.Background()

	logs, err := d.client.ContainerLogs(ctx, ContainerName(serverID), container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", errs.NotFound("container for server", serverID)
		}
		return "", engineErr("failed to fetch container logs", err)
	}
	defer logs.Close()

	content, err := io.ReadAll(logs)
	if err != nil {
		return "", engineErr("failed to read container logs", err)
	}
	return string(content), nil
}

// ensureImage pulls the server image if it is not present locally
func (d *ContainerService) ensureImage(ctx context.Context, imageName string) error {
	_, _, err := d.client.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}

	logger.Info("Pulling image", map[string]interface{}{"image": imageName})
	reader, err := d.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

// Close closes the Docker client
func (d *ContainerService) Close() error {
	return d.client.Close()
}

func engineErr(reason string, err error) error {
	return errs.Wrap(errs.KindRuntimeUnavailable, reason, err)
}
