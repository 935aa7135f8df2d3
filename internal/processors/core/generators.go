package core

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"mediaflow/internal/arg"
	"mediaflow/internal/asset"
	"mediaflow/internal/processor"
)

// PathGenerator produces one asset per listed path, each carrying a copy of attrs.
type PathGenerator struct{ processor.Base }

func (*PathGenerator) Arguments() []arg.Argument {
	return []arg.Argument{
		arg.New("paths", arg.KindList).Require(),
		arg.New("attrs", arg.KindMap).WithDefault(map[string]any{}),
	}
}

func (*PathGenerator) Generate(ctx context.Context, env *processor.Env, c processor.Consumer) error {
	attrs := env.Config.Map("attrs")
	for _, p := range env.Config.Strings("paths") {
		if err := ctx.Err(); err != nil {
			return err
		}
		ef, err := asset.NewExpandFrame(p, attrs)
		if err != nil {
			return fmt.Errorf("path %s: %w", p, err)
		}
		if err := c.Accept(asset.NewFrame(ef.Asset)); err != nil {
			return err
		}
	}
	return nil
}

// FileGenerator walks a local directory tree in lexical order.
type FileGenerator struct{ processor.Base }

func (*FileGenerator) Arguments() []arg.Argument {
	return []arg.Argument{
		arg.New("root", arg.KindString).Require(),
		arg.New("extensions", arg.KindList).Describe("lowercase extensions without dot; empty means all"),
	}
}

func (*FileGenerator) Init(_ context.Context, env *processor.Env) error {
	root := env.Config.String("root")
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return err
	}
	env.Logger.Debug("file generator root", zap.String("root", abs))
	return nil
}

func (*FileGenerator) Generate(ctx context.Context, env *processor.Env, c processor.Consumer) error {
	exts := make(map[string]bool)
	for _, e := range env.Config.Strings("extensions") {
		exts[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))] = true
	}
	root := env.Config.String("root")
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if len(exts) > 0 && !exts[ext] {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		a := asset.FromPath(abs)
		if info, err := d.Info(); err == nil {
			_ = a.SetAttr("source.filesize", info.Size())
		}
		count++
		return c.Accept(asset.NewFrame(a))
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}
	env.Reactor.EmitStatus(fmt.Sprintf("found %d files", count))
	return nil
}

// skipDir reports VCS, dependency and hidden directories that never hold media.
func skipDir(name string) bool {
	switch name {
	case ".git", ".hg", ".svn", "node_modules", "vendor", ".cache":
		return true
	}
	return strings.HasPrefix(name, ".")
}
