package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaflow/internal/asset"
	"mediaflow/internal/executor"
	"mediaflow/internal/processor"
	"mediaflow/internal/protocol"
	"mediaflow/internal/reactor"
)

type events struct {
	mu   sync.Mutex
	envs []protocol.Envelope
}

func (e *events) send(env protocol.Envelope) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.envs = append(e.envs, env)
	return nil
}

func (e *events) ofType(t protocol.Type) []protocol.Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []protocol.Envelope
	for _, env := range e.envs {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func (e *events) expandedAssets(t *testing.T) []*asset.Asset {
	t.Helper()
	var out []*asset.Asset
	for _, env := range e.ofType(protocol.TypeExpand) {
		for _, w := range env.Payload.(protocol.ExpandPayload).Assets {
			a, err := asset.FromWire(w)
			require.NoError(t, err)
			out = append(out, a)
		}
	}
	return out
}

func newExecutor(t *testing.T) (*executor.Executor, *events) {
	t.Helper()
	reg := processor.NewRegistry()
	Register(reg)
	ev := &events{}
	exec, err := executor.New(reg, reactor.New(ev.send, reactor.Options{}), executor.Options{})
	require.NoError(t, err)
	return exec, ev
}

func TestRegisterNames(t *testing.T) {
	reg := processor.NewRegistry()
	Register(reg)
	assert.Equal(t, []string{
		"core.Collect", "core.DeleteAttributes", "core.ExpandClips", "core.Fail",
		"core.FileGenerator", "core.PathGenerator", "core.SetAttributes", "core.SkipMatching",
	}, reg.Names())
}

func TestSetAndDeleteAttributes(t *testing.T) {
	exec, ev := newExecutor(t)
	ctx := context.Background()
	a := asset.New("a1")
	require.NoError(t, a.SetAttr("tmp.scratch", true))

	require.NoError(t, exec.ExecuteProcessor(ctx, executor.ExecuteRequest{
		Ref:    processor.Ref{ClassName: "core.SetAttributes", Args: map[string]any{"attrs": map[string]any{"foo.bar": 1, "label": "cat"}}},
		Assets: []*asset.Asset{a},
	}))
	require.NoError(t, exec.ExecuteProcessor(ctx, executor.ExecuteRequest{
		Ref:    processor.Ref{ClassName: "core.DeleteAttributes", Args: map[string]any{"paths": []any{"tmp", "missing.path"}}},
		Assets: []*asset.Asset{a},
	}))

	require.Len(t, ev.ofType(protocol.TypeObject), 2)
	v, ok := a.AttrInt("foo.bar")
	require.True(t, ok)
	assert.EqualValues(t, 1, v)
	assert.Equal(t, "cat", a.AttrString("label"))
	assert.False(t, a.AttrExists("tmp"))
}

func TestSetAttributesRequiresAttrs(t *testing.T) {
	exec, ev := newExecutor(t)
	require.NoError(t, exec.ExecuteProcessor(context.Background(), executor.ExecuteRequest{
		Ref:    processor.Ref{ClassName: "core.SetAttributes"},
		Assets: []*asset.Asset{asset.New("a1")},
	}))
	errs := ev.ofType(protocol.TypeError)
	require.Len(t, errs, 1)
	assert.True(t, errs[0].Payload.(protocol.ErrorPayload).Fatal)
}

func TestSkipMatching(t *testing.T) {
	exec, ev := newExecutor(t)
	match := asset.New("match")
	require.NoError(t, match.SetAttr("media.width", 640))
	other := asset.New("other")
	require.NoError(t, other.SetAttr("media.width", 1024))
	bare := asset.New("bare")

	require.NoError(t, exec.ExecuteProcessor(context.Background(), executor.ExecuteRequest{
		Ref:    processor.Ref{ClassName: "core.SkipMatching", Args: map[string]any{"path": "media.width", "value": 640.0}},
		Assets: []*asset.Asset{match, other, bare},
	}))
	skipped := map[string]bool{}
	for _, env := range ev.ofType(protocol.TypeObject) {
		p := env.Payload.(protocol.ObjectPayload)
		skipped[p.Object.ID] = p.Skip
	}
	assert.Equal(t, map[string]bool{"match": true, "other": false, "bare": false}, skipped)
}

func TestPathGenerator(t *testing.T) {
	exec, ev := newExecutor(t)
	require.NoError(t, exec.ExecuteGenerator(context.Background(), executor.GenerateRequest{
		Ref: processor.Ref{ClassName: "core.PathGenerator", Args: map[string]any{
			"paths": []any{"/a/one.jpg", "/a/two.jpg"},
			"attrs": map[string]any{"tags.batch": "b1"},
		}},
	}))
	assets := ev.expandedAssets(t)
	require.Len(t, assets, 2)
	assert.Equal(t, "one.jpg", assets[0].AttrString("source.filename"))
	assert.Equal(t, "b1", assets[1].AttrString("tags.batch"))
	assert.Equal(t, asset.IDFromPath("/a/two.jpg"), assets[1].ID())
}

func TestFileGeneratorFiltersExtensions(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	for _, name := range []string{"a.JPG", "b.txt", "sub/c.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("data"), 0o644))
	}

	exec, ev := newExecutor(t)
	require.NoError(t, exec.ExecuteGenerator(context.Background(), executor.GenerateRequest{
		Ref: processor.Ref{ClassName: "core.FileGenerator", Args: map[string]any{"root": root, "extensions": []any{"jpg", ".png"}}},
	}))
	assets := ev.expandedAssets(t)
	require.Len(t, assets, 2)
	assert.Equal(t, "a.JPG", assets[0].AttrString("source.filename"))
	assert.Equal(t, "png", assets[1].AttrString("source.extension"))
	size, ok := assets[0].AttrInt("source.filesize")
	require.True(t, ok)
	assert.EqualValues(t, 4, size)
	require.Len(t, ev.ofType(protocol.TypeStatus), 1)
}

func TestFileGeneratorSkipsHiddenDirs(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{".git", "node_modules", "shots"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, dir, "x.png"), []byte("px"), 0o644))
	}

	exec, ev := newExecutor(t)
	require.NoError(t, exec.ExecuteGenerator(context.Background(), executor.GenerateRequest{
		Ref: processor.Ref{ClassName: "core.FileGenerator", Args: map[string]any{"root": root}},
	}))
	assets := ev.expandedAssets(t)
	require.Len(t, assets, 1)
	assert.Equal(t, filepath.Join(root, "shots", "x.png"), assets[0].AttrString("source.path"))
}

func TestFileGeneratorMissingRootFailsInit(t *testing.T) {
	exec, ev := newExecutor(t)
	require.NoError(t, exec.ExecuteGenerator(context.Background(), executor.GenerateRequest{
		Ref: processor.Ref{ClassName: "core.FileGenerator", Args: map[string]any{"root": filepath.Join(t.TempDir(), "nope")}},
	}))
	errs := ev.ofType(protocol.TypeError)
	require.Len(t, errs, 1)
	assert.True(t, errs[0].Payload.(protocol.ErrorPayload).Fatal)
}

func TestExpandClips(t *testing.T) {
	exec, ev := newExecutor(t)
	doc := asset.FromPath("/docs/report.pdf")
	require.NoError(t, doc.SetAttr("media.type", "document"))

	require.NoError(t, exec.ExecuteProcessor(context.Background(), executor.ExecuteRequest{
		Ref:     processor.Ref{ClassName: "core.ExpandClips", Args: map[string]any{"count": 3}},
		Assets:  []*asset.Asset{doc},
		Execute: []processor.Ref{{ClassName: "core.SetAttributes"}},
	}))

	clips := ev.expandedAssets(t)
	require.Len(t, clips, 3)
	ids := map[string]bool{}
	for i, c := range clips {
		ids[c.ID()] = true
		start, ok := c.AttrFloat("clip.start")
		require.True(t, ok)
		assert.EqualValues(t, i+1, start)
		assert.Equal(t, "page", c.AttrString("clip.type"))
		assert.Equal(t, "/docs/report.pdf", c.AttrString("source.path"))
		assert.Equal(t, "document", c.AttrString("media.type"))
		assert.Equal(t, doc.ID(), c.AttrString("clip.sourceId"))
	}
	assert.Len(t, ids, 3)
	n, ok := doc.AttrInt("media.length")
	require.True(t, ok)
	assert.EqualValues(t, 3, n)
	assert.Len(t, ev.ofType(protocol.TypeObject), 1)
}

func TestExpandClipsDoesNotReexpandClips(t *testing.T) {
	exec, ev := newExecutor(t)
	ctx := context.Background()
	doc := asset.FromPath("/docs/book.pdf")
	require.NoError(t, doc.SetAttr("media.length", 3))
	ref := processor.Ref{ClassName: "core.ExpandClips"}

	require.NoError(t, exec.ExecuteProcessor(ctx, executor.ExecuteRequest{Ref: ref, Assets: []*asset.Asset{doc}}))
	clips := ev.expandedAssets(t)
	require.Len(t, clips, 3)
	n, ok := clips[0].AttrInt("media.length")
	require.True(t, ok)
	assert.EqualValues(t, 3, n)

	require.NoError(t, exec.ExecuteProcessor(ctx, executor.ExecuteRequest{Ref: ref, Assets: []*asset.Asset{clips[0]}}))
	assert.Len(t, ev.expandedAssets(t), 3)
	objs := ev.ofType(protocol.TypeObject)
	require.Len(t, objs, 2)
	assert.Equal(t, clips[0].ID(), objs[1].Payload.(protocol.ObjectPayload).Object.ID)
}

func TestFail(t *testing.T) {
	exec, ev := newExecutor(t)
	ctx := context.Background()
	require.NoError(t, exec.ExecuteProcessor(ctx, executor.ExecuteRequest{
		Ref:    processor.Ref{ClassName: "core.Fail", Args: map[string]any{"message": "nope"}},
		Assets: []*asset.Asset{asset.New("a")},
	}))
	require.NoError(t, exec.ExecuteProcessor(ctx, executor.ExecuteRequest{
		Ref:    processor.Ref{ClassName: "core.Fail", Args: map[string]any{"fatal": "true"}},
		Assets: []*asset.Asset{asset.New("b")},
	}))
	errs := ev.ofType(protocol.TypeError)
	require.Len(t, errs, 2)
	first := errs[0].Payload.(protocol.ErrorPayload)
	assert.Equal(t, "nope", first.Message)
	assert.False(t, first.Fatal)
	second := errs[1].Payload.(protocol.ErrorPayload)
	assert.Equal(t, "induced failure", second.Message)
	assert.True(t, second.Fatal)
}

func TestCollect(t *testing.T) {
	exec, ev := newExecutor(t)
	require.NoError(t, exec.ExecuteCollector(context.Background(), executor.CollectRequest{
		Ref:    processor.Ref{ClassName: "core.Collect"},
		Assets: []*asset.Asset{asset.New("a"), asset.New("b")},
	}))
	status := ev.ofType(protocol.TypeStatus)
	require.Len(t, status, 1)
	assert.Equal(t, "collected 2 assets", status[0].Payload.(protocol.StatusPayload).Message)
	assert.Empty(t, ev.ofType(protocol.TypeError))
}
