package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mediaflow/internal/asset"
	"mediaflow/internal/processor"
)

// Collect logs the batch it receives and reports its size as status.
type Collect struct {
	processor.Base
	total int
}

func (c *Collect) Collect(_ context.Context, env *processor.Env, frames []*asset.Frame) error {
	ids := make([]string, 0, len(frames))
	for _, f := range frames {
		if f.Skip {
			continue
		}
		ids = append(ids, f.Asset.ID())
	}
	c.total += len(ids)
	env.Logger.Info("collected batch", zap.Strings("ids", ids), zap.Int("total", c.total))
	env.Reactor.EmitStatus(fmt.Sprintf("collected %d assets", len(ids)))
	return nil
}

func (c *Collect) Teardown(_ context.Context, env *processor.Env) error {
	env.Logger.Info("collector finished", zap.Int("total", c.total))
	return nil
}
