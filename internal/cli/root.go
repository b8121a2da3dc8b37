// Package cli implements the geointerrupt command line.
package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/geointerrupt/internal/config"
)

// Version is the release reported by the version command and the unload
// notice. Overridden at build time with -ldflags "-X".
var Version = "dev"

type context struct {
	configFile *string
	metrics    *string
}

func NewRootCmd() *cobra.Command {
	var configFile, metricsAddr string

	root := &cobra.Command{
		Use:   "geointerrupt",
		Short: "Cooperative interrupt relay for geometry subsystems",
	}
	root.PersistentFlags().
		StringVarP(&configFile, "config", "c", "", "Path to configuration file")

	ctx := &context{configFile: &configFile, metrics: &metricsAddr}
	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newBenchCmd())
	root.AddCommand(newConfigCmd(ctx))
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true
	return root
}

// Execute runs the CLI entrypoint. SIGTERM ends the command; the interrupt
// signal is left to the host dispatcher.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (c *context) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*c.configFile)
	if err != nil {
		return nil, err
	}
	if *c.metrics != "" {
		cfg.MetricsAddr = *c.metrics
	}
	return cfg, nil
}
