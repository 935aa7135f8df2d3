package core

import (
	"context"
	"reflect"
	"sort"

	"mediaflow/internal/arg"
	"mediaflow/internal/asset"
	"mediaflow/internal/processor"
)

// SetAttributes writes each entry of attrs onto the asset. Keys are dot paths.
type SetAttributes struct{ processor.Base }

func (*SetAttributes) Arguments() []arg.Argument {
	return []arg.Argument{
		arg.New("attrs", arg.KindMap).Require().Describe("dot path to value"),
	}
}

func (*SetAttributes) Traits() processor.Traits { return processor.Traits{UseThreads: true} }

func (*SetAttributes) Process(_ context.Context, env *processor.Env, f *asset.Frame) processor.Result {
	attrs := env.Config.Map("attrs")
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := f.Asset.SetAttr(k, attrs[k]); err != nil {
			return processor.Recoverable(err)
		}
	}
	return processor.Continue()
}

// DeleteAttributes removes each listed dot path. Missing paths are ignored.
type DeleteAttributes struct{ processor.Base }

func (*DeleteAttributes) Arguments() []arg.Argument {
	return []arg.Argument{arg.New("paths", arg.KindList).Require()}
}

func (*DeleteAttributes) Traits() processor.Traits { return processor.Traits{UseThreads: true} }

func (*DeleteAttributes) Process(_ context.Context, env *processor.Env, f *asset.Frame) processor.Result {
	for _, p := range env.Config.Strings("paths") {
		f.Asset.DelAttr(p)
	}
	return processor.Continue()
}

// SkipMatching drops assets whose attribute at path equals value. With no value, any
// asset that has the attribute is dropped.
type SkipMatching struct{ processor.Base }

func (*SkipMatching) Arguments() []arg.Argument {
	return []arg.Argument{
		arg.New("path", arg.KindString).Require(),
		arg.New("value", arg.KindAny),
	}
}

func (*SkipMatching) Process(_ context.Context, env *processor.Env, f *asset.Frame) processor.Result {
	got, ok := f.Asset.Attr(env.Config.String("path"))
	if !ok {
		return processor.Continue()
	}
	want := env.ArgValue("value")
	if want == nil || equalValues(got, want) {
		env.Logger.Debug("skipping matching asset")
		f.Skip = true
	}
	return processor.Continue()
}

func equalValues(a, b any) bool {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
