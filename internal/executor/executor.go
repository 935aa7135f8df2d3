// Package executor resolves processor references into cached instances and drives them
// through their lifecycle, turning every outcome into reactor events.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mediaflow/internal/arg"
	"mediaflow/internal/asset"
	"mediaflow/internal/processor"
	"mediaflow/internal/protocol"
)

const (
	DefaultMaxInstances = 64
	DefaultThreads      = 4
)

// Reactor is the part of the reactor the executor drives directly.
type Reactor interface {
	processor.Reactor
	EmitSkip(a *asset.Asset) error
	SetPipeline(execute []processor.Ref) error
	CheckExpand(force bool) (int, error)
	EmitStats(stats protocol.StatsPayload) error
}

// Options bounds the executor. Zero values take the package defaults.
type Options struct {
	// MaxInstances bounds the instance cache. The least recently used instance is torn
	// down when the bound is exceeded.
	MaxInstances int
	// Threads bounds the pool used for processors that declare UseThreads.
	Threads int
	Logger  *zap.Logger
}

// Instance is a cached, initialized processor.
type Instance struct {
	Ref  processor.Ref
	Key  string
	Proc processor.Processor

	env   *processor.Env
	stats Stats

	mu    sync.Mutex
	state processor.State
}

// State returns the lifecycle state of the instance.
func (i *Instance) State() processor.State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Stats returns the timing collected so far.
func (i *Instance) Stats() Snapshot { return i.stats.Snapshot() }

// ExecuteRequest runs a transform over Assets. Execute is attached to any expand batch.
type ExecuteRequest struct {
	Ref     processor.Ref
	Assets  []*asset.Asset
	Execute []processor.Ref
}

// GenerateRequest runs a generator whose output is tagged with Execute.
type GenerateRequest struct {
	Ref     processor.Ref
	Execute []processor.Ref
}

// CollectRequest hands a finished batch of assets to a collector.
type CollectRequest struct {
	Ref    processor.Ref
	Assets []*asset.Asset
}

// Executor owns the processor instance cache. It is created at process start and closed
// at process exit.
type Executor struct {
	registry *processor.Registry
	reactor  Reactor
	opts     Options
	logger   *zap.Logger
	cache    *lru.Cache[string, *Instance]

	discarded atomic.Int64
}

// New builds an executor over registry that reports through reactor.
func New(registry *processor.Registry, reactor Reactor, opts Options) (*Executor, error) {
	if registry == nil {
		return nil, fmt.Errorf("executor: registry is required")
	}
	if reactor == nil {
		return nil, fmt.Errorf("executor: reactor is required")
	}
	if opts.MaxInstances <= 0 {
		opts.MaxInstances = DefaultMaxInstances
	}
	if opts.Threads <= 0 {
		opts.Threads = DefaultThreads
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		registry: registry,
		reactor:  reactor,
		opts:     opts,
		logger:   logger.Named("executor"),
	}
	cache, err := lru.NewWithEvict[string, *Instance](opts.MaxInstances, func(_ string, inst *Instance) {
		_ = e.retire(context.Background(), inst, false)
	})
	if err != nil {
		return nil, fmt.Errorf("executor: create instance cache: %w", err)
	}
	e.cache = cache
	return e, nil
}

// Instances reports how many live instances are cached.
func (e *Executor) Instances() int { return e.cache.Len() }

// Lookup returns the cached instance for ref without touching recency.
func (e *Executor) Lookup(ref processor.Ref) (*Instance, bool) {
	return e.cache.Peek(ref.Key())
}

// Resolve returns the cached instance for ref, constructing and initializing it on a miss.
func (e *Executor) Resolve(ctx context.Context, ref processor.Ref) (*Instance, error) {
	if err := ref.Validate(); err != nil {
		return nil, &ConfigError{Ref: ref, Err: err}
	}
	key := ref.Key()
	if inst, ok := e.cache.Get(key); ok {
		return inst, nil
	}

	factory, err := e.registry.Lookup(ref.ClassName)
	if err != nil {
		return nil, &ConfigError{Ref: ref, Err: err}
	}
	proc := factory()
	if proc == nil {
		return nil, &ConfigError{Ref: ref, Err: errors.New("factory returned nil")}
	}
	cfg, err := arg.Resolve(proc.Arguments(), ref.Args)
	if err != nil {
		return nil, &ConfigError{Ref: ref, Err: err}
	}
	inst := &Instance{
		Ref:  ref,
		Key:  key,
		Proc: proc,
		env: &processor.Env{
			Ref:     ref,
			Config:  cfg,
			Reactor: e.reactor,
			Logger:  e.logger.With(zap.String("processor", ref.ClassName), zap.String("image", ref.Image)),
		},
	}
	if err := e.guard(func() error { return proc.Init(ctx, inst.env) }); err != nil {
		return nil, &ConfigError{Ref: ref, Err: fmt.Errorf("init: %w", err)}
	}
	inst.state = processor.StateInitialized
	e.cache.Add(key, inst)
	e.logger.Info("processor initialized", zap.String("processor", ref.String()), zap.String("kind", string(processor.KindOf(proc))))
	return inst, nil
}

// ExecuteProcessor runs a transform over every asset and emits exactly one terminal event
// per asset. Returned errors are transport failures only.
func (e *Executor) ExecuteProcessor(ctx context.Context, req ExecuteRequest) error {
	if err := e.reactor.SetPipeline(req.Execute); err != nil {
		return err
	}
	inst, err := e.Resolve(ctx, req.Ref)
	if err != nil {
		return e.configFailure(req.Ref, req.Assets, err)
	}
	t, ok := inst.Proc.(processor.Transformer)
	if !ok {
		return e.configFailure(req.Ref, req.Assets, &ConfigError{Ref: req.Ref, Err: fmt.Errorf("%s is not a transform", processor.KindOf(inst.Proc))})
	}

	if inst.Proc.Traits().UseThreads && len(req.Assets) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Threads)
		for _, a := range req.Assets {
			g.Go(func() (err error) {
				// A panic here would kill the process from a pool goroutine.
				defer func() {
					if r := recover(); r != nil {
						e.logger.Error("worker pool panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
						err = fmt.Errorf("executor: panic in pool: %v", r)
					}
				}()
				return e.processOne(gctx, inst, t, a)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for _, a := range req.Assets {
			if err := e.processOne(ctx, inst, t, a); err != nil {
				return err
			}
		}
	}
	_, err = e.reactor.CheckExpand(true)
	return err
}

func (e *Executor) processOne(ctx context.Context, inst *Instance, t processor.Transformer, a *asset.Asset) error {
	frame := asset.NewFrame(a)
	env := inst.env.ForAsset(a)

	start := time.Now()
	var res processor.Result
	if err := e.guard(func() error {
		res = t.Process(ctx, env, frame)
		return nil
	}); err != nil {
		res = processor.Recoverable(err)
	}
	if res.Outcome == processor.OutcomeContinue && frame.Skip {
		res = processor.Skip()
	}
	f, failed := classify(res, inst.Proc.Traits())
	inst.stats.Observe(time.Since(start), failed)

	switch {
	case failed:
		a.AddError(asset.AssetError{Processor: inst.Ref.ClassName, Message: f.message, Fatal: f.fatal})
		env.Logger.Warn("process failed", zap.Bool("fatal", f.fatal), zap.String("error", f.message))
		return e.reactor.EmitError(inst.Ref, f.message, f.fatal, a.ID(), a.AttrString("source.path"))
	case res.Outcome == processor.OutcomeSkip:
		env.Logger.Debug("asset skipped")
		return e.reactor.EmitSkip(a)
	default:
		return e.reactor.EmitObject(a)
	}
}

// ExecuteGenerator runs a generator. Its whole output leaves through expand batches.
func (e *Executor) ExecuteGenerator(ctx context.Context, req GenerateRequest) error {
	if err := e.reactor.SetPipeline(req.Execute); err != nil {
		return err
	}
	inst, err := e.Resolve(ctx, req.Ref)
	if err != nil {
		return e.configFailure(req.Ref, nil, err)
	}
	g, ok := inst.Proc.(processor.Generator)
	if !ok {
		return e.configFailure(req.Ref, nil, &ConfigError{Ref: req.Ref, Err: fmt.Errorf("%s is not a generator", processor.KindOf(inst.Proc))})
	}

	var sendErr error
	produced := 0
	consumer := processor.ConsumerFunc(func(frame *asset.Frame) error {
		if frame == nil || frame.Asset == nil {
			return errors.New("executor: generator produced an empty frame")
		}
		if frame.Skip {
			return nil
		}
		if err := e.reactor.AddExpandFrame(nil, asset.ExpandFrame{Asset: frame.Asset}); err != nil {
			sendErr = err
			return err
		}
		produced++
		return nil
	})

	start := time.Now()
	genErr := e.guard(func() error { return g.Generate(ctx, inst.env, consumer) })
	if sendErr != nil {
		return sendErr
	}
	f, failed := classifyErr(genErr, inst.Proc.Traits())
	inst.stats.Observe(time.Since(start), failed)
	inst.env.Logger.Info("generate finished", zap.Int("produced", produced), zap.Bool("failed", failed))

	// Items produced before a failure are still flushed.
	if _, err := e.reactor.CheckExpand(true); err != nil {
		return err
	}
	if failed {
		return e.reactor.EmitError(inst.Ref, f.message, f.fatal, "", "")
	}
	return nil
}

// ExecuteCollector hands a completed batch to a collector. Success emits nothing; a
// failure emits one error event for the batch.
func (e *Executor) ExecuteCollector(ctx context.Context, req CollectRequest) error {
	if err := e.reactor.SetPipeline(nil); err != nil {
		return err
	}
	inst, err := e.Resolve(ctx, req.Ref)
	if err != nil {
		return e.configFailure(req.Ref, nil, err)
	}
	c, ok := inst.Proc.(processor.Collector)
	if !ok {
		return e.configFailure(req.Ref, nil, &ConfigError{Ref: req.Ref, Err: fmt.Errorf("%s is not a collector", processor.KindOf(inst.Proc))})
	}
	frames := make([]*asset.Frame, 0, len(req.Assets))
	for _, a := range req.Assets {
		frames = append(frames, asset.NewFrame(a))
	}

	start := time.Now()
	collectErr := e.guard(func() error { return c.Collect(ctx, inst.env, frames) })
	f, failed := classifyErr(collectErr, inst.Proc.Traits())
	inst.stats.Observe(time.Since(start), failed)

	if _, err := e.reactor.CheckExpand(true); err != nil {
		return err
	}
	if failed {
		inst.env.Logger.Warn("collect failed", zap.Int("frames", len(frames)), zap.String("error", f.message))
		return e.reactor.EmitError(inst.Ref, f.message, f.fatal, "", "")
	}
	return nil
}

// TeardownProcessor tears down and evicts the instance for ref, then emits its stats.
// Unknown or already torn-down references are ignored.
func (e *Executor) TeardownProcessor(ctx context.Context, ref processor.Ref) error {
	key := ref.Key()
	inst, ok := e.cache.Peek(key)
	if !ok {
		e.logger.Debug("teardown of inactive processor", zap.String("processor", ref.String()))
		return nil
	}
	err := e.retire(ctx, inst, true)
	e.cache.Remove(key)
	return err
}

// Discarded counts expand items and events dropped by processors during implicit
// teardown (eviction or Close).
func (e *Executor) Discarded() int64 { return e.discarded.Load() }

// Close tears down every cached instance without emitting events.
func (e *Executor) Close(ctx context.Context) {
	for _, key := range e.cache.Keys() {
		if inst, ok := e.cache.Peek(key); ok {
			_ = e.retire(ctx, inst, false)
		}
	}
	e.cache.Purge()
}

// retire moves inst to TornDown exactly once. With emit set, trailing expands, teardown
// errors and stats are reported through the reactor. Without it the processor talks to a
// quiet reactor and whatever it emits is counted and dropped.
func (e *Executor) retire(ctx context.Context, inst *Instance, emit bool) error {
	inst.mu.Lock()
	if inst.state != processor.StateInitialized {
		inst.mu.Unlock()
		return nil
	}
	inst.state = processor.StateTornDown
	inst.mu.Unlock()

	env := inst.env
	var quiet *quietReactor
	if !emit {
		quiet = &quietReactor{}
		scoped := *inst.env
		scoped.Reactor = quiet
		env = &scoped
	}
	tdErr := e.guard(func() error { return inst.Proc.Teardown(ctx, env) })
	if quiet != nil && quiet.dropped > 0 {
		e.discarded.Add(int64(quiet.dropped))
		e.logger.Warn("output dropped at implicit teardown",
			zap.String("processor", inst.Ref.String()),
			zap.Int("dropped", quiet.dropped),
		)
	}
	snap := inst.stats.Snapshot()
	e.logger.Info("processor torn down",
		zap.String("processor", inst.Ref.String()),
		zap.Int64("count", snap.Count),
		zap.Int64("errors", snap.Errors),
		zap.Duration("avg", snap.Avg),
		zap.Bool("reported", emit),
	)
	if tdErr != nil {
		e.logger.Warn("teardown failed", zap.String("processor", inst.Ref.String()), zap.Error(tdErr))
	}
	if !emit {
		return nil
	}
	if _, err := e.reactor.CheckExpand(true); err != nil {
		return err
	}
	if tdErr != nil {
		if err := e.reactor.EmitError(inst.Ref, "teardown: "+tdErr.Error(), false, "", ""); err != nil {
			return err
		}
	}
	return e.reactor.EmitStats(snap.Payload(inst.Ref))
}

// configFailure reports a fatal error per work item, or once when there are none.
func (e *Executor) configFailure(ref processor.Ref, assets []*asset.Asset, cause error) error {
	msg := cause.Error()
	e.logger.Error("processor unavailable", zap.String("processor", ref.String()), zap.Error(cause))
	if len(assets) == 0 {
		return e.reactor.EmitError(ref, msg, true, "", "")
	}
	for _, a := range assets {
		a.AddError(asset.AssetError{Processor: ref.ClassName, Message: msg, Fatal: true})
		if err := e.reactor.EmitError(ref, msg, true, a.ID(), a.AttrString("source.path")); err != nil {
			return err
		}
	}
	return nil
}

// guard converts a panic inside fn into an error and logs the stack.
func (e *Executor) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("processor panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// quietReactor stands in for the reactor while an instance is torn down on eviction or at
// exit, when nothing may reach the controller.
type quietReactor struct {
	dropped int
}

func (q *quietReactor) EmitObject(*asset.Asset) error {
	q.dropped++
	return nil
}

func (q *quietReactor) AddExpandFrame(*asset.Frame, asset.ExpandFrame) error {
	q.dropped++
	return nil
}

func (q *quietReactor) EmitError(processor.Ref, string, bool, string, string) error {
	q.dropped++
	return nil
}

func (q *quietReactor) EmitStatus(string) {}
