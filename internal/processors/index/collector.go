package index

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mediaflow/internal/arg"
	"mediaflow/internal/asset"
	"mediaflow/internal/processor"
)

// Defaults fill the dsn and table arguments when a ref omits them.
type Defaults struct {
	DSN   string
	Table string
}

// Register adds the index collectors. open defaults to OpenPostgres.
func Register(reg *processor.Registry, defaults Defaults, open Opener) {
	if open == nil {
		open = OpenPostgres
	}
	reg.MustRegister("index.PostgresCollector", func() processor.Processor {
		return &PostgresCollector{defaults: defaults, open: open, now: time.Now}
	})
}

// PostgresCollector upserts every non-skipped asset of a batch in one transaction.
type PostgresCollector struct {
	processor.Base
	defaults Defaults
	open     Opener
	now      func() time.Time

	writer  Writer
	table   string
	indexed int
}

func (c *PostgresCollector) Arguments() []arg.Argument {
	table := c.defaults.Table
	if table == "" {
		table = "assets"
	}
	dsn := arg.New("dsn", arg.KindString)
	if c.defaults.DSN != "" {
		dsn = dsn.WithDefault(c.defaults.DSN)
	} else {
		dsn = dsn.Require()
	}
	return []arg.Argument{
		dsn,
		arg.New("table", arg.KindString).WithDefault(table),
	}
}

func (c *PostgresCollector) Init(ctx context.Context, env *processor.Env) error {
	c.table = strings.TrimSpace(env.Config.String("table"))
	if err := validTable(c.table); err != nil {
		return err
	}
	w, err := c.open(ctx, env.Config.String("dsn"))
	if err != nil {
		return fmt.Errorf("connect index: %w", err)
	}
	c.writer = w
	return nil
}

func (c *PostgresCollector) Collect(ctx context.Context, env *processor.Env, frames []*asset.Frame) error {
	now := c.now().UTC()
	rows := make([]Row, 0, len(frames))
	for _, f := range frames {
		if f.Skip {
			continue
		}
		doc, err := json.Marshal(f.Asset.ToWire())
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.Asset.ID(), err)
		}
		rows = append(rows, Row{ID: f.Asset.ID(), Document: doc, IndexedAt: now})
	}
	if err := c.writer.Upsert(ctx, c.table, rows); err != nil {
		return err
	}
	c.indexed += len(rows)
	env.Logger.Info("indexed batch", zap.String("table", c.table), zap.Int("rows", len(rows)))
	return nil
}

func (c *PostgresCollector) Teardown(_ context.Context, env *processor.Env) error {
	if c.writer == nil {
		return nil
	}
	env.Logger.Info("index closed", zap.Int("indexed", c.indexed))
	return c.writer.Close()
}
