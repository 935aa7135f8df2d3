package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mediaflow/internal/arg"
	"mediaflow/internal/asset"
	"mediaflow/internal/processor"
)

// Register adds the storage processors. cfg supplies the endpoint and credentials; open
// defaults to OpenMinio.
func Register(reg *processor.Registry, cfg Config, open Opener) {
	if open == nil {
		open = OpenMinio
	}
	reg.MustRegister("storage.BucketGenerator", func() processor.Processor {
		return &BucketGenerator{cfg: cfg, open: open}
	})
	reg.MustRegister("storage.ObjectStat", func() processor.Processor {
		return &ObjectStat{cfg: cfg, open: open}
	})
}

// connect opens a store, letting an "endpoint" argument override the configured one.
func connect(env *processor.Env, cfg Config, open Opener) (ObjectStore, error) {
	if ep := strings.TrimSpace(env.Config.String("endpoint")); ep != "" {
		cfg.Endpoint = ep
	}
	return open(cfg)
}

// BucketGenerator lists a bucket prefix and produces one asset per object.
type BucketGenerator struct {
	processor.Base
	cfg   Config
	open  Opener
	store ObjectStore
}

func (*BucketGenerator) Arguments() []arg.Argument {
	return []arg.Argument{
		arg.New("bucket", arg.KindString).Require(),
		arg.New("prefix", arg.KindString).WithDefault(""),
		arg.New("recursive", arg.KindBool).WithDefault(true),
		arg.New("endpoint", arg.KindString),
	}
}

func (g *BucketGenerator) Init(ctx context.Context, env *processor.Env) error {
	store, err := connect(env, g.cfg, g.open)
	if err != nil {
		return err
	}
	bucket := env.Config.String("bucket")
	ok, err := store.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}
	g.store = store
	return nil
}

func (g *BucketGenerator) Generate(ctx context.Context, env *processor.Env, c processor.Consumer) error {
	bucket := env.Config.String("bucket")
	count := 0
	err := g.store.Walk(ctx, bucket, env.Config.String("prefix"), env.Config.Bool("recursive"), func(obj Object) error {
		a := asset.FromPath(FormatURL(bucket, obj.Key))
		setObjectAttrs(a, obj)
		count++
		return c.Accept(asset.NewFrame(a))
	})
	if err != nil {
		return fmt.Errorf("list %s: %w", FormatURL(bucket, env.Config.String("prefix")), err)
	}
	env.Logger.Info("bucket listed", zap.String("bucket", bucket), zap.Int("objects", count))
	return nil
}

// ObjectStat fills source.* metadata for assets whose source.path is an s3 url.
type ObjectStat struct {
	processor.Base
	cfg   Config
	open  Opener
	store ObjectStore
}

func (*ObjectStat) Arguments() []arg.Argument {
	return []arg.Argument{
		arg.New("endpoint", arg.KindString),
		arg.New("skipMissing", arg.KindBool).WithDefault(false),
	}
}

func (*ObjectStat) Traits() processor.Traits { return processor.Traits{UseThreads: true} }

func (s *ObjectStat) Init(_ context.Context, env *processor.Env) error {
	store, err := connect(env, s.cfg, s.open)
	if err != nil {
		return err
	}
	s.store = store
	return nil
}

func (s *ObjectStat) Process(ctx context.Context, env *processor.Env, f *asset.Frame) processor.Result {
	src := f.Asset.AttrString("source.path")
	if !strings.HasPrefix(src, "s3://") {
		return processor.Continue()
	}
	bucket, key, err := ParseURL(src)
	if err != nil {
		return processor.Recoverable(err)
	}
	obj, err := s.store.Stat(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) && env.Config.Bool("skipMissing") {
			return processor.Skip()
		}
		return processor.Recoverable(fmt.Errorf("stat %s: %w", src, err))
	}
	setObjectAttrs(f.Asset, obj)
	return processor.Continue()
}

func setObjectAttrs(a *asset.Asset, obj Object) {
	_ = a.SetAttr("source.filesize", obj.Size)
	if obj.ETag != "" {
		_ = a.SetAttr("source.checksum", obj.ETag)
	}
	if obj.ContentType != "" {
		_ = a.SetAttr("source.mimetype", obj.ContentType)
	}
	if !obj.LastModified.IsZero() {
		_ = a.SetAttr("source.modified", obj.LastModified.UTC().Format(time.RFC3339))
	}
}
