package core

import (
	"context"
	"fmt"

	"mediaflow/internal/arg"
	"mediaflow/internal/asset"
	"mediaflow/internal/processor"
)

// ExpandClips fans a multi-page or multi-segment asset out into one clip per unit. The
// page count comes from media.length when present, otherwise from the count argument.
type ExpandClips struct{ processor.Base }

func (*ExpandClips) Arguments() []arg.Argument {
	return []arg.Argument{
		arg.New("count", arg.KindInt).WithDefault(1),
		arg.New("clipType", arg.KindString).WithDefault("page"),
		arg.New("inherit", arg.KindList).WithDefault([]any{"media"}),
	}
}

func (*ExpandClips) Process(_ context.Context, env *processor.Env, f *asset.Frame) processor.Result {
	if f.Clip != nil {
		// Already a clip; expanding again would recurse.
		return processor.Continue()
	}
	count, ok := f.Asset.AttrInt("media.length")
	if !ok {
		count = env.Config.Int("count")
	}
	if count <= 1 {
		return processor.Continue()
	}
	clipType := env.Config.String("clipType")
	inherit := env.Config.Strings("inherit")
	for i := int64(1); i <= count; i++ {
		ef, err := asset.NewClipExpandFrame(f.Asset, asset.Clip{
			Type:     clipType,
			Start:    float64(i),
			Stop:     float64(i),
			Timeline: "full",
		}, inherit...)
		if err != nil {
			return processor.Recoverable(fmt.Errorf("clip %d: %w", i, err))
		}
		if err := env.Expand(f, ef); err != nil {
			return processor.Fatal(err)
		}
	}
	if err := f.Asset.SetAttr("media.length", count); err != nil {
		return processor.Recoverable(err)
	}
	return processor.Continue()
}

// Fail always fails. It exists to exercise error handling end to end.
type Fail struct{ processor.Base }

func (*Fail) Arguments() []arg.Argument {
	return []arg.Argument{
		arg.New("message", arg.KindString).WithDefault("induced failure"),
		arg.New("fatal", arg.KindBool).WithDefault(false),
	}
}

func (*Fail) Process(_ context.Context, env *processor.Env, _ *asset.Frame) processor.Result {
	err := fmt.Errorf("%s", env.Config.String("message"))
	if env.Config.Bool("fatal") {
		return processor.Fatal(err)
	}
	return processor.Recoverable(err)
}
