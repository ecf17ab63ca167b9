//go:build integration
// +build integration

package sqs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/martijngastkemper/worker-bundle/pkg/queue"
)

const (
	localstackPort     = "4566/tcp"
	integrationTimeout = 60 * time.Second
)

type localstackContainer struct {
	container testcontainers.Container
	endpoint  string
}

func setupLocalstack(t *testing.T) *localstackContainer {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "localstack/localstack:3.8",
		ExposedPorts: []string{localstackPort},
		Env: map[string]string{
			"SERVICES": "sqs",
		},
		WaitingFor: wait.ForHTTP("/_localstack/health").
			WithPort(localstackPort).
			WithStartupTimeout(integrationTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, nat.Port(localstackPort))
	require.NoError(t, err)

	return &localstackContainer{
		container: container,
		endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}
}

func (lc *localstackContainer) teardown(t *testing.T) {
	ctx := context.Background()
	if lc.container != nil {
		if err := lc.container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate LocalStack container: %v", err)
		}
	}
}

func newIntegrationProvider(t *testing.T, endpoint string) *Provider {
	t.Helper()
	waitTime := 1 * time.Second
	p, err := NewFromConfig(context.Background(), Config{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		DefaultWaitTime: &waitTime,
	}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return p
}

func TestIntegration_Lifecycle(t *testing.T) {
	lc := setupLocalstack(t)
	defer lc.teardown(t)

	ctx, cancel := context.WithTimeout(context.Background(), integrationTimeout)
	defer cancel()

	p := newIntegrationProvider(t, lc.endpoint)

	exists, err := p.QueueExists(ctx, "jobs")
	require.NoError(t, err)
	assert.False(t, exists)

	q, err := p.CreateQueue(ctx, "jobs", queue.Options{"VisibilityTimeout": "45"})
	require.NoError(t, err)
	assert.Equal(t, "jobs", QueueName(q.URL))

	opts, err := p.QueueOptions(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, "45", opts["VisibilityTimeout"])
	assert.Equal(t, "1", opts[AttrReceiveMessageWaitTimeSeconds])

	require.NoError(t, p.UpdateQueue(ctx, "jobs", queue.Options{"VisibilityTimeout": "60"}))
	opts, err = p.QueueOptions(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, "60", opts["VisibilityTimeout"])

	names, err := p.ListQueues(ctx, "jo")
	require.NoError(t, err)
	assert.Contains(t, names, "jobs")

	require.NoError(t, p.DeleteQueue(ctx, "jobs"))

	// Deletion may take a moment to become visible
	require.Eventually(t, func() bool {
		exists, err := p.QueueExists(ctx, "jobs")
		return err == nil && !exists
	}, 30*time.Second, 500*time.Millisecond)
}

func TestIntegration_Messages(t *testing.T) {
	lc := setupLocalstack(t)
	defer lc.teardown(t)

	ctx, cancel := context.WithTimeout(context.Background(), integrationTimeout)
	defer cancel()

	p := newIntegrationProvider(t, lc.endpoint)
	_, err := p.CreateQueue(ctx, "messages", nil)
	require.NoError(t, err)

	require.NoError(t, p.Put(ctx, "messages", map[string]any{"a": 1}))

	var got map[string]any
	ok, err := p.Get(ctx, "messages", 5*time.Second, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1)}, got)

	results, err := p.MultiPut(ctx, "messages", []any{"x", "y", "z"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.OK, "entry %d: %s %s", r.Index, r.Code, r.Message)
	}

	received := map[string]bool{}
	for len(received) < 3 {
		var s string
		ok, err := p.Get(ctx, "messages", 2*time.Second, &s)
		require.NoError(t, err)
		if ok {
			received[s] = true
		}
	}
	assert.Equal(t, map[string]bool{"x": true, "y": true, "z": true}, received)

	var empty any
	ok, err = p.Get(ctx, "messages", time.Second, &empty)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := p.Count(ctx, "messages")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
