//go:build integration

// internal/pkg/testutil/containers.go
package testutil

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

// StartContainer 启动一个容器并返回 port 映射到宿主机后的地址 host:port。
// 容器在测试结束时由 t.Cleanup 终止。
func StartContainer(t *testing.T, req testcontainers.ContainerRequest, port nat.Port, timeout time.Duration) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start container %s", req.Image)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)

	return net.JoinHostPort(host, mapped.Port())
}
