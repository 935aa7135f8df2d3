// Package logging builds the worker's zap logger. Output goes to stderr because stdout
// may carry the protocol stream.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects level, encoding and static fields.
type Options struct {
	Verbose bool
	// Format is "json" (default) or "console".
	Format string
	// Fields are attached to every entry, e.g. the worker id.
	Fields map[string]string
}

// New builds a production zap logger writing to stderr.
func New(opts Options) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if opts.Format == "console" {
		config.Encoding = "console"
		config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	if opts.Verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	if len(opts.Fields) > 0 {
		config.InitialFields = make(map[string]any, len(opts.Fields))
		for k, v := range opts.Fields {
			config.InitialFields[k] = v
		}
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, nil
}
