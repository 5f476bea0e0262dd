//go:build integration

package dashcache_test

import (
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var integrationBackends struct {
	redisContainer testcontainers.Container
	redisAddr      string
	natsContainer  testcontainers.Container
	natsURL        string
}

func TestMain(m *testing.M) {
	ctx := context.Background()
	drivers := selectedIntegrationDrivers()

	if drivers["redis"] {
		container, addr, err := startContainer(ctx, "redis:7-alpine", "6379/tcp", nil)
		if err != nil {
			_, _ = os.Stderr.WriteString("failed to start redis integration container: " + err.Error() + "\n")
			os.Exit(1)
		}
		integrationBackends.redisContainer = container
		integrationBackends.redisAddr = addr
	}
	if drivers["nats"] {
		container, addr, err := startContainer(ctx, "nats:2.10-alpine", "4222/tcp", []string{"-js"})
		if err != nil {
			_, _ = os.Stderr.WriteString("failed to start nats integration container: " + err.Error() + "\n")
			os.Exit(1)
		}
		integrationBackends.natsContainer = container
		integrationBackends.natsURL = "nats://" + addr
	}

	exitCode := m.Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if integrationBackends.redisContainer != nil {
		_ = integrationBackends.redisContainer.Terminate(shutdownCtx)
	}
	if integrationBackends.natsContainer != nil {
		_ = integrationBackends.natsContainer.Terminate(shutdownCtx)
	}

	os.Exit(exitCode)
}

// selectedIntegrationDrivers chooses which backends run under the integration
// tag. INTEGRATION_DRIVER may be "all" (default) or a comma-separated list
// such as "redis,sql".
func selectedIntegrationDrivers() map[string]bool {
	selected := map[string]bool{
		"lru":    true,
		"memory": true,
		"sql":    true,
		"redis":  true,
		"nats":   true,
		"tiered": true,
	}
	value := strings.TrimSpace(strings.ToLower(os.Getenv("INTEGRATION_DRIVER")))
	if value == "" || value == "all" {
		return selected
	}
	for key := range selected {
		selected[key] = false
	}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		selected[part] = true
	}
	return selected
}

func integrationDriverEnabled(name string) bool {
	return selectedIntegrationDrivers()[strings.ToLower(name)]
}

func startContainer(ctx context.Context, image string, port nat.Port, cmd []string) (testcontainers.Container, string, error) {
	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{string(port)},
		Cmd:          cmd,
		WaitingFor:   wait.ForListeningPort(port).WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", err
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	return container, net.JoinHostPort(host, mapped.Port()), nil
}
