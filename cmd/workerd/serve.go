package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mediaflow/internal/config"
	"mediaflow/internal/daemon"
	"mediaflow/internal/executor"
	"mediaflow/internal/protocol"
	"mediaflow/internal/reactor"
	"mediaflow/internal/transport"
)

var (
	serveTransport string
	serveURL       string
	serveBatchSize int
	serveThreads   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker loop until the controller sends stop",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveTransport != "" {
		cfg.Transport.Mode = serveTransport
	}
	if serveURL != "" {
		cfg.Transport.URL = serveURL
	}
	if serveBatchSize > 0 {
		cfg.Reactor.BatchSize = serveBatchSize
	}
	if serveThreads > 0 {
		cfg.Executor.Threads = serveThreads
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec, err := protocol.CodecByName(cfg.Transport.Codec)
	if err != nil {
		return err
	}
	ch, err := openChannel(ctx, cfg, codec)
	if err != nil {
		return err
	}
	defer ch.Close()

	logger.Info("worker starting",
		zap.String("transport", cfg.Transport.Mode),
		zap.String("codec", codec.Name()),
		zap.Int("batchSize", cfg.Reactor.BatchSize),
	)
	status, err := serve(ctx, ch, codec)
	if err != nil {
		logger.Error("worker stopped", zap.Int("status", status), zap.Error(err))
	}
	exitStatus = status
	return nil
}

// serve wires reactor, executor and daemon over ch and runs the loop.
func serve(ctx context.Context, ch transport.Channel, codec protocol.Codec) (int, error) {
	r := reactor.New(transport.SinkFor(ctx, ch), reactor.Options{
		BatchSize:     cfg.Reactor.BatchSize,
		MaxBatchBytes: cfg.Reactor.MaxBatchBytes,
		Codec:         codec,
		Logger:        logger,
	})
	exec, err := executor.New(buildRegistry(cfg), r, executor.Options{
		MaxInstances: cfg.Executor.MaxInstances,
		Threads:      cfg.Executor.Threads,
		Logger:       logger,
	})
	if err != nil {
		return 1, err
	}
	return daemon.New(ch, exec, r, daemon.Options{
		AnnounceReady: cfg.AnnounceReady(),
		Logger:        logger,
	}).Run(ctx)
}

func openChannel(ctx context.Context, cfg *config.Config, codec protocol.Codec) (transport.Channel, error) {
	switch cfg.Transport.Mode {
	case config.TransportStdio:
		return transport.Stdio(codec), nil
	case config.TransportWebsocket:
		return transport.DialWebsocket(ctx, cfg.Transport.URL, nil, codec)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport.Mode)
	}
}
