// Command workerd is the media worker daemon. It speaks the worker protocol over stdio or
// a controller websocket and runs registered processors.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mediaflow/internal/config"
	"mediaflow/internal/logging"
)

var (
	cfgPath   string
	verbose   bool
	codecName string

	cfg    *config.Config
	logger *zap.Logger

	// exitStatus is set by serve from the stop message.
	exitStatus int
)

var rootCmd = &cobra.Command{
	Use:   "workerd",
	Short: "Media worker daemon",
	Long: `workerd receives execute, generate, collect and teardown messages from a controller,
runs the named processors against assets and streams results back.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if codecName != "" {
			loaded.Transport.Codec = codecName
		}
		if verbose {
			loaded.Log.Verbose = true
		}
		cfg = loaded

		logger, err = logging.New(logging.Options{
			Verbose: cfg.Log.Verbose,
			Format:  cfg.Log.Format,
			Fields:  map[string]string{"env": cfg.Env},
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "workerd.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&codecName, "codec", "", "Wire codec: json or msgpack")

	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "Transport: stdio or websocket")
	serveCmd.Flags().StringVar(&serveURL, "url", "", "Controller websocket url")
	serveCmd.Flags().IntVar(&serveBatchSize, "batch-size", 0, "Expand batch size")
	serveCmd.Flags().IntVar(&serveThreads, "threads", 0, "Pool size for thread-safe processors")

	runCmd.Flags().StringVarP(&runProcessor, "processor", "p", "", "Processor class name (required)")
	runCmd.Flags().StringVarP(&runArgs, "args", "a", "", "Processor arguments as a JSON object")
	runCmd.Flags().StringSliceVar(&runExecute, "then", nil, "Class names of the chain attached to expand events")
	_ = runCmd.MarkFlagRequired("processor")

	processorsCmd.Flags().BoolVar(&processorsJSON, "json", false, "Print as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(processorsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitStatus)
}
