// Package daemon runs the worker's receive-dispatch-send loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"mediaflow/internal/asset"
	"mediaflow/internal/executor"
	"mediaflow/internal/processor"
	"mediaflow/internal/protocol"
	"mediaflow/internal/transport"
)

// ErrNoStop is returned when the controller closes the channel without a stop message.
var ErrNoStop = errors.New("daemon: channel closed without stop")

// Executor is the work surface the loop dispatches to.
type Executor interface {
	ExecuteProcessor(ctx context.Context, req executor.ExecuteRequest) error
	ExecuteGenerator(ctx context.Context, req executor.GenerateRequest) error
	ExecuteCollector(ctx context.Context, req executor.CollectRequest) error
	TeardownProcessor(ctx context.Context, ref processor.Ref) error
	Close(ctx context.Context)
}

// Reactor is the subset of reactor events the loop emits itself.
type Reactor interface {
	EmitReady() error
	EmitHardFailure(message string) error
}

// Options configures the loop.
type Options struct {
	// AnnounceReady sends a ready event before the first receive.
	AnnounceReady bool
	Logger        *zap.Logger
}

// Daemon owns one channel and handles its messages one at a time.
type Daemon struct {
	ch      transport.Channel
	exec    Executor
	reactor Reactor
	opts    Options
	logger  *zap.Logger
	handled int
}

// New wires a loop over ch. Run must be called once.
func New(ch transport.Channel, exec Executor, reactor Reactor, opts Options) *Daemon {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Daemon{ch: ch, exec: exec, reactor: reactor, opts: opts, logger: logger.Named("daemon")}
}

// Run processes messages until stop and returns the requested exit status. Any error
// outside a processor sends hardfailure and returns status 1.
func (d *Daemon) Run(ctx context.Context) (int, error) {
	defer d.exec.Close(context.WithoutCancel(ctx))

	if d.opts.AnnounceReady {
		if err := d.reactor.EmitReady(); err != nil {
			return 1, fmt.Errorf("daemon: announce ready: %w", err)
		}
	}
	d.logger.Info("daemon started", zap.Bool("announced", d.opts.AnnounceReady))

	for {
		msg, err := d.ch.Receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrNoStop
			}
			return d.fail(fmt.Errorf("daemon: receive: %w", err))
		}
		stop, status, err := d.dispatch(ctx, msg)
		if err != nil {
			return d.fail(err)
		}
		d.handled++
		if stop {
			d.logger.Info("stop received", zap.Int("status", status), zap.Int("handled", d.handled))
			return status, nil
		}
	}
}

func (d *Daemon) fail(err error) (int, error) {
	d.logger.Error("hard failure", zap.Error(err), zap.Int("handled", d.handled))
	if sendErr := d.reactor.EmitHardFailure(err.Error()); sendErr != nil {
		d.logger.Warn("hardfailure not delivered", zap.Error(sendErr))
	}
	return 1, err
}

func (d *Daemon) dispatch(ctx context.Context, msg protocol.Message) (stop bool, status int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("daemon: panic handling %s: %v", msg.Type, r)
		}
	}()

	d.logger.Debug("dispatch", zap.String("type", string(msg.Type)))
	switch msg.Type {
	case protocol.TypeExecute:
		var p protocol.ExecutePayload
		if err := msg.Decode(&p); err != nil {
			return false, 0, err
		}
		assets, err := fromWire(p.Assets())
		if err != nil {
			return false, 0, err
		}
		return false, 0, d.exec.ExecuteProcessor(ctx, executor.ExecuteRequest{Ref: p.Ref, Assets: assets, Execute: p.Execute})

	case protocol.TypeGenerate:
		var p protocol.GeneratePayload
		if err := msg.Decode(&p); err != nil {
			return false, 0, err
		}
		return false, 0, d.exec.ExecuteGenerator(ctx, executor.GenerateRequest{Ref: p.Ref, Execute: p.Execute})

	case protocol.TypeCollect:
		var p protocol.CollectPayload
		if err := msg.Decode(&p); err != nil {
			return false, 0, err
		}
		assets, err := fromWire(p.Objects)
		if err != nil {
			return false, 0, err
		}
		return false, 0, d.exec.ExecuteCollector(ctx, executor.CollectRequest{Ref: p.Ref, Assets: assets})

	case protocol.TypeTeardown:
		var p protocol.TeardownPayload
		if err := msg.Decode(&p); err != nil {
			return false, 0, err
		}
		return false, 0, d.exec.TeardownProcessor(ctx, p.Ref)

	case protocol.TypeStop:
		var p protocol.StopPayload
		if err := msg.Decode(&p); err != nil {
			return false, 0, err
		}
		return true, p.Status, nil

	default:
		return false, 0, fmt.Errorf("daemon: unsupported message type %q", msg.Type)
	}
}

func fromWire(wires []asset.Wire) ([]*asset.Asset, error) {
	out := make([]*asset.Asset, 0, len(wires))
	for _, w := range wires {
		a, err := asset.FromWire(w)
		if err != nil {
			return nil, fmt.Errorf("daemon: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}
