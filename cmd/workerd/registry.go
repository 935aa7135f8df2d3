package main

import (
	"mediaflow/internal/config"
	"mediaflow/internal/processor"
	"mediaflow/internal/processors/core"
	"mediaflow/internal/processors/index"
	"mediaflow/internal/processors/storage"
)

// buildRegistry registers every built-in processor. Storage and index processors take
// their connection defaults from cfg.
func buildRegistry(cfg *config.Config) *processor.Registry {
	reg := processor.NewRegistry()
	core.Register(reg)
	storage.Register(reg, storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	}, nil)
	index.Register(reg, index.Defaults{
		DSN:   cfg.Index.DatabaseURL,
		Table: cfg.Index.Table,
	}, nil)
	return reg
}
