// Package reactor implements the event sink processors report through. It forwards
// terminal events immediately and buffers expand work into ordered batches.
package reactor

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"mediaflow/internal/asset"
	"mediaflow/internal/processor"
	"mediaflow/internal/protocol"
)

const (
	DefaultBatchSize     = 20
	DefaultMaxBatchBytes = 4 << 20
)

// Sink delivers one outbound envelope. It must be safe to call from several goroutines
// only when the reactor is; the reactor serializes calls itself.
type Sink func(env protocol.Envelope) error

// Options tunes batching. Zero values take the package defaults.
type Options struct {
	// BatchSize is the number of expand items that triggers an automatic flush.
	BatchSize int
	// MaxBatchBytes bounds the encoded size of buffered expand items. Zero disables the bound.
	MaxBatchBytes int
	// Codec measures buffered item sizes. Defaults to JSON.
	Codec  protocol.Codec
	Logger *zap.Logger
}

// Reactor implements processor.Reactor on top of a Sink.
type Reactor struct {
	sink   Sink
	opts   Options
	logger *zap.Logger

	sendMu sync.Mutex

	mu       sync.Mutex
	pipeline []processor.Ref
	pending  []asset.Wire
	bytes    int
	flushed  int
}

var _ processor.Reactor = (*Reactor)(nil)

// New returns a reactor that delivers every event through sink.
func New(sink Sink, opts Options) *Reactor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxBatchBytes < 0 {
		opts.MaxBatchBytes = 0
	}
	if opts.Codec == nil {
		opts.Codec = protocol.JSON{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reactor{sink: sink, opts: opts, logger: logger.Named("reactor")}
}

func (r *Reactor) send(t protocol.Type, payload any) error {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	if err := r.sink(protocol.Envelope{Type: t, Payload: payload}); err != nil {
		return fmt.Errorf("reactor: send %s: %w", t, err)
	}
	return nil
}

// SetPipeline binds the execute chain attached to subsequent expand batches. Items
// buffered under a different chain are flushed first.
func (r *Reactor) SetPipeline(execute []processor.Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) > 0 && !samePipeline(r.pipeline, execute) {
		if err := r.flushLocked(); err != nil {
			return err
		}
	}
	r.pipeline = append([]processor.Ref(nil), execute...)
	return nil
}

func samePipeline(a, b []processor.Ref) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key() != b[i].Key() {
			return false
		}
	}
	return true
}

// EmitObject forwards an asset that finished the current stage.
func (r *Reactor) EmitObject(a *asset.Asset) error {
	return r.emitObject(a, false)
}

// EmitSkip forwards a skipped asset so the controller can drop it from the pipeline.
func (r *Reactor) EmitSkip(a *asset.Asset) error {
	return r.emitObject(a, true)
}

func (r *Reactor) emitObject(a *asset.Asset, skip bool) error {
	if a == nil {
		return fmt.Errorf("reactor: emit nil asset")
	}
	return r.send(protocol.TypeObject, protocol.ObjectPayload{Object: a.ToWire(), Skip: skip})
}

// AddExpandFrame buffers ef and flushes when the batch is full. parent is only used for
// logging; the item's document is never merged with other items.
func (r *Reactor) AddExpandFrame(parent *asset.Frame, ef asset.ExpandFrame) error {
	if ef.Asset == nil {
		return fmt.Errorf("reactor: expand frame has no asset")
	}
	w := ef.Asset.ToWire()
	size := 0
	if r.opts.MaxBatchBytes > 0 {
		b, err := r.opts.Codec.Marshal(protocol.Envelope{Type: protocol.TypeExpand, Payload: w})
		if err != nil {
			return fmt.Errorf("reactor: measure expand item: %w", err)
		}
		size = len(b)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if parent != nil && parent.Asset != nil {
		r.logger.Debug("expand", zap.String("parent", parent.Asset.ID()), zap.String("child", w.ID))
	}
	// Never let one large item push an already non-empty batch over the byte bound.
	if r.opts.MaxBatchBytes > 0 && len(r.pending) > 0 && r.bytes+size > r.opts.MaxBatchBytes {
		if err := r.flushLocked(); err != nil {
			return err
		}
	}
	r.pending = append(r.pending, w)
	r.bytes += size
	if len(r.pending) >= r.opts.BatchSize {
		return r.flushLocked()
	}
	return nil
}

// CheckExpand flushes the buffer when it is full, or whenever it is non-empty and force
// is set. It returns the number of items sent.
func (r *Reactor) CheckExpand(force bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.pending)
	if n == 0 {
		return 0, nil
	}
	if !force && n < r.opts.BatchSize && (r.opts.MaxBatchBytes == 0 || r.bytes < r.opts.MaxBatchBytes) {
		return 0, nil
	}
	if err := r.flushLocked(); err != nil {
		return 0, err
	}
	return n, nil
}

// Pending reports how many expand items are buffered.
func (r *Reactor) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Flushed reports how many expand items have been sent so far.
func (r *Reactor) Flushed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushed
}

func (r *Reactor) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}
	batch := r.pending
	r.pending = nil
	r.bytes = 0
	execute := r.pipeline
	if execute == nil {
		execute = []processor.Ref{}
	}
	r.flushed += len(batch)
	r.logger.Debug("flush expand batch", zap.Int("size", len(batch)), zap.Int("chain", len(execute)))
	return r.send(protocol.TypeExpand, protocol.ExpandPayload{Execute: execute, Assets: batch})
}

// EmitError sends an error event. assetID and path are empty for batch-level failures.
func (r *Reactor) EmitError(ref processor.Ref, message string, fatal bool, assetID, path string) error {
	return r.send(protocol.TypeError, protocol.ErrorPayload{
		Message:   message,
		Processor: ref.ClassName,
		Path:      path,
		Fatal:     fatal,
		ID:        assetID,
	})
}

// EmitStatus is best effort; send failures are logged and dropped.
func (r *Reactor) EmitStatus(message string) {
	if err := r.send(protocol.TypeStatus, protocol.StatusPayload{Message: message}); err != nil {
		r.logger.Debug("status dropped", zap.Error(err))
	}
}

// EmitStats reports timing for a torn-down processor.
func (r *Reactor) EmitStats(stats protocol.StatsPayload) error {
	return r.send(protocol.TypeStats, stats)
}

// EmitHardFailure reports a failure that ends the worker.
func (r *Reactor) EmitHardFailure(message string) error {
	return r.send(protocol.TypeHardFailure, protocol.HardFailurePayload{Message: message})
}

// EmitReady announces the worker pid and codec to the controller.
func (r *Reactor) EmitReady() error {
	return r.send(protocol.TypeReady, protocol.ReadyPayload{PID: os.Getpid(), Codec: r.opts.Codec.Name()})
}
