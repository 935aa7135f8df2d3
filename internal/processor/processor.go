// Package processor defines the pluggable unit of work run by the worker daemon and the
// registry that maps class names to factories.
package processor

import (
	"context"

	"mediaflow/internal/arg"
	"mediaflow/internal/asset"
)

// Traits are capabilities a processor declares about itself.
type Traits struct {
	// UseThreads allows the executor to call Process concurrently on one instance.
	UseThreads bool
	// FatalErrors makes every failure of this processor fatal.
	FatalErrors bool
}

// Processor is the lifecycle shared by all processor variants.
type Processor interface {
	Arguments() []arg.Argument
	Init(ctx context.Context, env *Env) error
	Teardown(ctx context.Context, env *Env) error
	Traits() Traits
}

// Transformer mutates one asset per call.
type Transformer interface {
	Processor
	Process(ctx context.Context, env *Env, frame *asset.Frame) Result
}

// Consumer receives frames produced by a Generator.
type Consumer interface {
	Accept(frame *asset.Frame) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(frame *asset.Frame) error

func (f ConsumerFunc) Accept(frame *asset.Frame) error { return f(frame) }

// Generator produces a finite sequence of new assets.
type Generator interface {
	Processor
	Generate(ctx context.Context, env *Env, consumer Consumer) error
}

// Collector consumes a completed batch of frames.
type Collector interface {
	Processor
	Collect(ctx context.Context, env *Env, frames []*asset.Frame) error
}

// Kind is the capability a processor implements.
type Kind string

const (
	KindUnknown   Kind = "unknown"
	KindTransform Kind = "transform"
	KindGenerate  Kind = "generate"
	KindCollect   Kind = "collect"
)

// KindOf reports which variant p implements.
func KindOf(p Processor) Kind {
	switch p.(type) {
	case Transformer:
		return KindTransform
	case Generator:
		return KindGenerate
	case Collector:
		return KindCollect
	default:
		return KindUnknown
	}
}

// State is the lifecycle state of a cached processor instance.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateTornDown:
		return "torn_down"
	default:
		return "uninitialized"
	}
}

// Base gives processors default lifecycle methods. Embed it and override what you need.
type Base struct{}

func (Base) Arguments() []arg.Argument { return nil }
func (Base) Init(context.Context, *Env) error { return nil }
func (Base) Teardown(context.Context, *Env) error { return nil }
func (Base) Traits() Traits { return Traits{} }
