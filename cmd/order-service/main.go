// @title        Entregas Order Service API
// @version      1.0
// @description  Checkout, order lifecycle and delivery coordination.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	_ "github.com/MikeMC777/entregas-ecom/docs"
	"github.com/MikeMC777/entregas-ecom/internal/agent"
	"github.com/MikeMC777/entregas-ecom/internal/auth"
	"github.com/MikeMC777/entregas-ecom/internal/cart"
	"github.com/MikeMC777/entregas-ecom/internal/checkout"
	"github.com/MikeMC777/entregas-ecom/internal/config"
	"github.com/MikeMC777/entregas-ecom/internal/dispatch"
	"github.com/MikeMC777/entregas-ecom/internal/eventsink"
	"github.com/MikeMC777/entregas-ecom/internal/health"
	ord "github.com/MikeMC777/entregas-ecom/internal/order"
	"github.com/MikeMC777/entregas-ecom/internal/product"
	"github.com/MikeMC777/entregas-ecom/internal/realtime"
	"github.com/MikeMC777/entregas-ecom/internal/store"
)

func main() {
	cfg := config.Load()
	gin.SetMode(gin.ReleaseMode)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if cfg.EnsureSchema {
		if err := store.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("schema: %v", err)
		}
	}

	hub := realtime.NewHub()
	var bus realtime.Broadcaster = hub
	var sink *eventsink.Publisher
	if cfg.EventsQueueURL != "" {
		client, err := eventsink.NewSQSClient(ctx, cfg.AWSRegion)
		if err != nil {
			log.Fatalf("sqs: %v", err)
		}
		sink = eventsink.NewPublisher(client, cfg.EventsQueueURL, 256)
		bus = realtime.Fanout{hub, sink}
		log.Printf("[events] mirroring to %s", cfg.EventsQueueURL)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	orders := ord.NewPGRepo(pool)
	products := product.NewPGRepo()
	carts := cart.NewPGRepo()
	agents := agent.NewPGRepo(pool)

	checker := health.NewChecker(pool, 10*time.Second)
	router := newRouter(deps{
		verifier: verifier,
		checkout: checkout.NewService(pool, carts, products, orders,
			checkout.Policy{Fee: cfg.DeliveryFee, FreeAbove: cfg.FreeDeliveryAbove}, bus),
		orders: ord.NewService(pool, orders, products, bus),
		dispatch: dispatch.NewCoordinator(pool, orders, agents, carts, bus,
			dispatch.NewAttemptLimiter(cfg.OTPAttemptsPerMin)),
		socket:  realtime.NewServer(hub, verifier, cfg.WSSendBuffer).Handle,
		healthy: checker.Healthy,
	})

	httpSrv := &http.Server{Addr: cfg.OrderSvcAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	grpcSrv := grpc.NewServer()
	checker.Register(grpcSrv)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return checker.Watch(gctx) })
	if sink != nil {
		g.Go(func() error { return sink.Run(gctx) })
	}
	g.Go(func() error {
		log.Printf("order-service listening on %s", cfg.OrderSvcAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			return err
		}
		log.Printf("grpc health listening on %s", cfg.GRPCHealthAddr)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("order-service: %v", err)
	}
	log.Printf("order-service stopped")
}
