package processor

import (
	"go.uber.org/zap"

	"mediaflow/internal/arg"
	"mediaflow/internal/asset"
)

// Reactor is the only channel a processor has to the outside world.
type Reactor interface {
	// EmitObject forwards an asset that finished this pipeline stage.
	EmitObject(a *asset.Asset) error
	// AddExpandFrame queues sub-work produced while handling parent (nil for generators).
	AddExpandFrame(parent *asset.Frame, ef asset.ExpandFrame) error
	// EmitError records a failure against a processor and, when known, an asset.
	EmitError(ref Ref, message string, fatal bool, assetID, path string) error
	// EmitStatus sends advisory progress text. Delivery is not guaranteed.
	EmitStatus(message string)
}

// Env is handed to every processor call. It replaces any ambient per-asset state.
type Env struct {
	Ref     Ref
	Config  arg.Config
	Reactor Reactor
	Logger  *zap.Logger
}

// ArgValue returns the resolved argument value or nil.
func (e *Env) ArgValue(name string) any {
	return e.Config.ArgValue(name)
}

// ForAsset returns a copy of env whose logger carries the asset id.
func (e *Env) ForAsset(a *asset.Asset) *Env {
	out := *e
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if a != nil {
		out.Logger = out.Logger.With(zap.String("asset", a.ID()))
	}
	return &out
}

// Expand is a convenience for AddExpandFrame on the env's reactor.
func (e *Env) Expand(parent *asset.Frame, ef asset.ExpandFrame) error {
	return e.Reactor.AddExpandFrame(parent, ef)
}
