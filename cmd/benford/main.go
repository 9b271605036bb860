// Command benford serves the Benford analysis web API and runs one-off analyses.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/miradorstack/benford-lab/internal/config"
	"github.com/miradorstack/benford-lab/internal/utils"
)

// Version is set at build time.
var Version = "0.1.0"

type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:     "benford",
		Short:   "Test numeric CSV columns against Benford's Law",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.load()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file (default: $BENFORD_CONFIG)")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newAnalyzeCmd(a))
	root.AddCommand(newSweepCmd(a))
	return root
}

// load reads the config, builds the logger and reports rejected settings.
func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.logger = utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(a.logger)
	for _, w := range cfg.Warnings {
		a.logger.Warn("config value rejected", slog.String("detail", w))
	}
	a.cfg = cfg
	return nil
}
