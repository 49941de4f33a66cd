// Package health reports whether the order service can reach its database,
// over the standard gRPC health protocol and to the HTTP /healthz probe.
package health

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const ServiceName = "entregas.OrderService"

type Pinger interface {
	Ping(ctx context.Context) error
}

type Checker struct {
	db       Pinger
	interval time.Duration
	srv      *grpchealth.Server
	healthy  atomic.Bool
}

func NewChecker(db Pinger, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	c := &Checker{db: db, interval: interval, srv: grpchealth.NewServer()}
	c.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return c
}

func (c *Checker) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, c.srv)
}

func (c *Checker) Healthy() bool { return c.healthy.Load() }

// Watch probes the database until ctx is done, then marks the service as
// shutting down so load balancers drain it.
func (c *Checker) Watch(ctx context.Context) error {
	c.Probe(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.srv.Shutdown()
			c.healthy.Store(false)
			return nil
		case <-ticker.C:
			c.Probe(ctx)
		}
	}
}

func (c *Checker) Probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := c.db.Ping(ctx)
	was := c.healthy.Load()
	if err != nil {
		c.set(healthpb.HealthCheckResponse_NOT_SERVING)
		if was {
			log.Printf("[health] database unreachable: %v", err)
		}
		return
	}
	c.set(healthpb.HealthCheckResponse_SERVING)
	if !was {
		log.Printf("[health] serving")
	}
}

func (c *Checker) set(status healthpb.HealthCheckResponse_ServingStatus) {
	c.srv.SetServingStatus("", status)
	c.srv.SetServingStatus(ServiceName, status)
	c.healthy.Store(status == healthpb.HealthCheckResponse_SERVING)
}
