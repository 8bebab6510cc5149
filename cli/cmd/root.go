package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/sportsagg/common/config"
	"github.com/telhawk-systems/sportsagg/common/logging"
	"github.com/telhawk-systems/sportsagg/cli/pkg/output"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	cfgFile string
	output  string
	natsURL string
	verbose bool
	noColor bool
}

// loadConfig reads the shared service config and applies flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if o.natsURL != "" {
		cfg.NATS.URL = o.natsURL
	}
	return cfg, nil
}

// logger logs to stderr so stdout stays parseable.
func (o *globalOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return logging.NewWithWriter(cmd.ErrOrStderr(), level, "text").Logger
}

// NewRootCmd builds the sportsctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "sportsctl",
		Short: "sportsagg operator CLI",
		Long: `sportsctl is the command-line interface for the sports game aggregator.

Compute game fingerprints, run store migrations, and publish or seed
game reports onto the message bus.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if opts.noColor {
				color.NoColor = true
			}
			switch opts.output {
			case output.FormatTable, output.FormatJSON, output.FormatYAML:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (use table, json or yaml)", opts.output)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default: $SPORTSAGG_CONFIG_DIR/config.yaml)")
	flags.StringVarP(&opts.output, "output", "o", output.FormatTable, "output format: table, json, yaml")
	flags.StringVar(&opts.natsURL, "nats-url", "", "override nats.url from the config")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newFingerprintCmd(opts),
		newMigrateCmd(opts),
		newPublishCmd(opts),
		newSeedCmd(opts),
	)
	return root
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		output.Error("%v", err)
	}
	return err
}
