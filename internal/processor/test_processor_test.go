package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaflow/internal/arg"
	"mediaflow/internal/asset"
)

type noopTransform struct{ Base }

func (noopTransform) Process(context.Context, *Env, *asset.Frame) Result { return Continue() }

type noopGenerator struct{ Base }

func (noopGenerator) Arguments() []arg.Argument {
	return []arg.Argument{arg.New("paths", arg.KindList).Require()}
}

func (noopGenerator) Generate(context.Context, *Env, Consumer) error { return nil }

func TestRegistryLookupUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Lookup("nope.Missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownProcessor))

	var unknown *UnknownProcessorError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope.Missing", unknown.ClassName)
}

func TestRegistryRegisterAndDescribe(t *testing.T) {
	reg := NewRegistry()
	require.Error(t, reg.Register(" ", func() Processor { return noopTransform{} }))
	require.Error(t, reg.Register("x", nil))
	reg.MustRegister("b.Gen", func() Processor { return noopGenerator{} })
	reg.MustRegister("a.Noop", func() Processor { return noopTransform{} })

	assert.Equal(t, []string{"a.Noop", "b.Gen"}, reg.Names())

	infos := reg.Describe()
	require.Len(t, infos, 2)
	assert.Equal(t, KindTransform, infos[0].Kind)
	assert.Equal(t, KindGenerate, infos[1].Kind)
	require.Len(t, infos[1].Arguments, 1)
	assert.True(t, infos[1].Arguments[0].Required)
}

func TestRefKeyIdentity(t *testing.T) {
	a := Ref{ClassName: "core.SetAttributes", Image: "img:1", Args: map[string]any{"b": 1, "a": "x"}}
	b := Ref{ClassName: "core.SetAttributes", Image: "img:1", Args: map[string]any{"a": "x", "b": float64(1)}}
	assert.Equal(t, a.Key(), b.Key())

	c := b
	c.Image = "img:2"
	assert.NotEqual(t, a.Key(), c.Key())

	d := Ref{ClassName: "core.SetAttributes", Image: "img:1", Args: map[string]any{"a": "y", "b": 1}}
	assert.NotEqual(t, a.Key(), d.Key())

	assert.Error(t, Ref{}.Validate())
	assert.Equal(t, "core.SetAttributes@img:1", a.String())
}

func TestResultFromError(t *testing.T) {
	assert.Equal(t, OutcomeContinue, FromError(nil).Outcome)
	assert.Equal(t, OutcomeRecoverable, FromError(errors.New("x")).Outcome)

	fatal := Fatalf("disk %s gone", "sda")
	assert.True(t, IsFatal(fatal))
	assert.Equal(t, OutcomeFatal, FromError(fatal).Outcome)
	assert.Equal(t, "disk sda gone", fatal.Error())

	assert.Error(t, Recoverable(nil).Err)
	assert.Equal(t, "skip", Skip().Outcome.String())
}

func TestEnvForAssetKeepsOriginal(t *testing.T) {
	env := &Env{Ref: Ref{ClassName: "x"}}
	scoped := env.ForAsset(asset.New("abc"))
	assert.NotNil(t, scoped.Logger)
	assert.Nil(t, env.Logger)
	assert.Equal(t, env.Ref, scoped.Ref)
}
