package health

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func init() {
	log.SetOutput(io.Discard)
}

type flakyDB struct{ down atomic.Bool }

func (f *flakyDB) Ping(ctx context.Context) error {
	if f.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func status(t *testing.T, c *Checker, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestProbeTracksDatabase(t *testing.T) {
	db := &flakyDB{}
	c := NewChecker(db, time.Minute)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, c, ""))
	assert.False(t, c.Healthy())

	c.Probe(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, ServiceName))
	assert.True(t, c.Healthy())

	db.down.Store(true)
	c.Probe(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, c, ServiceName))
	assert.False(t, c.Healthy())
}

func TestWatchStopsWithContext(t *testing.T) {
	c := NewChecker(&flakyDB{}, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	require.Eventually(t, c.Healthy, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not return")
	}
	assert.False(t, c.Healthy())
}
