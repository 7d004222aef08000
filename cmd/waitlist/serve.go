package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpcDelivery "github.com/vogiaan1904/farm-waitlist/internal/delivery/grpc"
	httpDelivery "github.com/vogiaan1904/farm-waitlist/internal/delivery/http"
	"github.com/vogiaan1904/farm-waitlist/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/farm-waitlist/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/farm-waitlist/internal/infra/redis"
	redisRepo "github.com/vogiaan1904/farm-waitlist/internal/repository/redis"
	"github.com/vogiaan1904/farm-waitlist/internal/service"
	pkgKafka "github.com/vogiaan1904/farm-waitlist/pkg/kafka"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"run"},
		Short:   "Run the HTTP and gRPC APIs with the Kafka consumer and offer sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, l := a.cfg, a.l

	entries, types, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var board redisRepo.BoardNotifier
	if cfg.Redis.Enabled {
		redisCli, err := redis.Connect(ctx, cfg.Redis, l)
		if err != nil {
			return err
		}
		defer redis.Disconnect(context.Background(), redisCli, l)
		board = redisRepo.NewRedisBoardNotifier(redisCli, cfg.Redis.BoardChannel, l)
	} else {
		l.Warn(ctx, "Redis disabled; board streaming is unavailable.")
	}

	var prod producer.Producer
	if cfg.Kafka.Enabled {
		syncProd, err := pkgKafka.NewProducer(ctx, pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		}, l)
		if err != nil {
			return err
		}
		prod = producer.NewProducer(syncProd, l)
		defer prod.Close()
	}

	svc := service.NewWaitlistService(entries, types, prod, board, l, cfg.Offer)

	if cfg.Kafka.Enabled && cfg.Kafka.ConsumerEnabled {
		consGr, err := pkgKafka.NewConsumer(ctx, pkgKafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.ConsumerGroupID,
		}, l)
		if err != nil {
			return err
		}
		consCtx, cancelCons := context.WithCancel(ctx)
		cons := consumer.NewConsumer(consGr, svc, l)
		if err := cons.Start(consCtx); err != nil {
			cancelCons()
			consGr.Close()
			return err
		}
		defer func() {
			// the consume loop only exits once its context is done
			cancelCons()
			if err := cons.Close(); err != nil {
				l.Errorf(context.Background(), "cmd.serve: closing consumer: %v", err)
			}
		}()
	}

	if cfg.Sweep.Enabled {
		sweeper := service.NewOfferSweeper(svc, l, cfg.Sweep)
		if err := sweeper.Start(ctx); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcDelivery.LoggingUnaryInterceptor(l)),
		grpc.ChainStreamInterceptor(grpcDelivery.LoggingStreamInterceptor(l)),
	)
	grpcDelivery.RegisterWaitlistServer(grpcSrv, grpcDelivery.NewGrpcService(svc, l))

	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcPort))
	if err != nil {
		return fmt.Errorf("gRPC server failed to listen: %w", err)
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpDelivery.NewRouter(httpDelivery.NewHandler(svc, l), cfg.Server.CORSOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Infof(gctx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		if err := grpcSrv.Serve(lnr); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		l.Infof(gctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		l.Info(context.Background(), "Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := httpSrv.Shutdown(shutdownCtx)

		// board streams never finish on their own
		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcSrv.Stop()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	l.Info(context.Background(), "Server exited")
	return nil
}
