package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mediaflow/internal/asset"
	"mediaflow/internal/daemon"
	"mediaflow/internal/executor"
	"mediaflow/internal/processor"
	"mediaflow/internal/protocol"
	"mediaflow/internal/reactor"
	"mediaflow/internal/transport"
)

var (
	runProcessor string
	runArgs      string
	runExecute   []string
)

var runCmd = &cobra.Command{
	Use:   "run [paths...]",
	Short: "Run one processor locally and print the events it produces",
	Long: `run drives an in-process worker the way a controller would: transforms get one execute
message per path, collectors get a single collect, generators ignore paths. Every event the
worker sends is printed as a JSON line.`,
	RunE: runDebug,
}

func runDebug(cmd *cobra.Command, paths []string) error {
	ref := processor.Ref{ClassName: runProcessor}
	if strings.TrimSpace(runArgs) != "" {
		if err := json.Unmarshal([]byte(runArgs), &ref.Args); err != nil {
			return fmt.Errorf("parse --args: %w", err)
		}
	}
	var chain []processor.Ref
	for _, name := range runExecute {
		chain = append(chain, processor.Ref{ClassName: name})
	}

	reg := buildRegistry(cfg)
	factory, err := reg.Lookup(ref.ClassName)
	if err != nil {
		return err
	}
	kind := processor.KindOf(factory())

	codec, err := protocol.CodecByName(cfg.Transport.Codec)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	worker, ctrl := transport.Pipe(codec, len(paths)+4)
	defer ctrl.Close()

	r := reactor.New(transport.SinkFor(ctx, worker), reactor.Options{
		BatchSize:     cfg.Reactor.BatchSize,
		MaxBatchBytes: cfg.Reactor.MaxBatchBytes,
		Codec:         codec,
		Logger:        logger,
	})
	exec, err := executor.New(reg, r, executor.Options{
		MaxInstances: cfg.Executor.MaxInstances,
		Threads:      cfg.Executor.Threads,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	type outcome struct {
		status int
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		status, err := daemon.New(worker, exec, r, daemon.Options{Logger: logger}).Run(ctx)
		_ = worker.Close()
		done <- outcome{status: status, err: err}
	}()
	printed := make(chan error, 1)
	go func() {
		printed <- printEvents(ctx, ctrl, cmd.OutOrStdout())
	}()

	for _, env := range script(kind, ref, chain, paths) {
		if err := ctrl.Send(ctx, env); err != nil {
			logger.Warn("send failed", zap.String("type", string(env.Type)), zap.Error(err))
			break
		}
	}

	res := <-done
	if err := <-printed; err != nil {
		return err
	}
	if res.err != nil {
		return fmt.Errorf("worker exited with status %d: %w", res.status, res.err)
	}
	return nil
}

// script builds the controller side of one run.
func script(kind processor.Kind, ref processor.Ref, chain []processor.Ref, paths []string) []protocol.Envelope {
	var out []protocol.Envelope
	switch kind {
	case processor.KindGenerate:
		out = append(out, protocol.Envelope{Type: protocol.TypeGenerate, Payload: protocol.GeneratePayload{Ref: ref, Execute: chain}})
	case processor.KindCollect:
		objects := make([]asset.Wire, 0, len(paths))
		for _, p := range paths {
			objects = append(objects, asset.FromPath(p).ToWire())
		}
		out = append(out, protocol.Envelope{Type: protocol.TypeCollect, Payload: protocol.CollectPayload{Ref: ref, Objects: objects}})
	default:
		for _, p := range paths {
			w := asset.FromPath(p).ToWire()
			out = append(out, protocol.Envelope{Type: protocol.TypeExecute, Payload: protocol.ExecutePayload{Ref: ref, Object: &w, Execute: chain}})
		}
	}
	return append(out,
		protocol.Envelope{Type: protocol.TypeTeardown, Payload: protocol.TeardownPayload{Ref: ref}},
		protocol.Envelope{Type: protocol.TypeStop, Payload: protocol.StopPayload{}},
	)
}

type printedEvent struct {
	Type    protocol.Type `json:"type"`
	Payload any           `json:"payload,omitempty"`
}

func printEvents(ctx context.Context, ch transport.Channel, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	for {
		msg, err := ch.Receive(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		var payload any
		if err := msg.Decode(&payload); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		if err := enc.Encode(printedEvent{Type: msg.Type, Payload: payload}); err != nil {
			return err
		}
	}
}
