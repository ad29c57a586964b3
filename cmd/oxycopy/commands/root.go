package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-copy/internal/config"
	"github.com/Carmen-Shannon/oxy-copy/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// options is the state shared by every subcommand of one root command.
type options struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
}

// NewRootCommand builds the oxycopy command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	o := &options{v: viper.New()}

	root := &cobra.Command{
		Use:   "oxycopy",
		Short: "Host for the AttribData copy kernel",
		Long: `oxycopy plans, runs and verifies the AttribData copy compute kernel.

Every dispatch is checked on the host before it runs: work group counts against
the device limits, the highest written index against both buffer lengths, and
overlapping writes are reported or rejected. Jobs run on the GPU through WebGPU
or on the CPU reference executor.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&o.cfgFile, "config", "", "config file (default is ./oxycopy.yaml or $HOME/.oxycopy/oxycopy.yaml)")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().String("backend", "auto", "executor backend: auto, cpu or gpu")
	root.PersistentFlags().Bool("force-fallback", false, "force the software fallback adapter")
	_ = o.v.BindPFlag("backend.kind", root.PersistentFlags().Lookup("backend"))
	_ = o.v.BindPFlag("backend.force_fallback_adapter", root.PersistentFlags().Lookup("force-fallback"))

	root.AddCommand(
		newRunCommand(o),
		newPlanCommand(o),
		newDeviceCommand(o),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	defer logging.Close()
	return NewRootCommand().ExecuteContext(ctx)
}

// load reads the configuration and initializes logging from it.
func (o *options) load() (*config.Config, error) {
	cfg, err := config.LoadWith(o.v, o.cfgFile)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Init(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.Console); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	if used := o.v.ConfigFileUsed(); used != "" {
		logging.Debugf("using config file %s", used)
	}
	return cfg, nil
}

// bindFlags binds a command's local flags to config keys. Commands bind at run time so
// that flags of the same key on sibling commands do not replace each other.
func (o *options) bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := o.v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// addDispatchFlags registers the shared dispatch and planner flags and returns their config keys.
func addDispatchFlags(cmd *cobra.Command) map[string]string {
	f := cmd.Flags()
	f.Uint32("x", 1, "work groups along x")
	f.Uint32("y", 1, "work groups along y")
	f.Uint32("z", 2, "work groups along z")
	f.Uint32("length", 0, "records in both buffers (0 = the dispatch's required length)")
	f.String("overlap-policy", "report", "overlapping writes: report or reject")
	f.Int("workers", 0, "planner and CPU workers (0 = one per CPU)")
	f.Uint32("max-workgroups", 65535, "max work groups per dimension")
	return map[string]string{
		"x":              "dispatch.x",
		"y":              "dispatch.y",
		"z":              "dispatch.z",
		"length":         "buffers.length",
		"overlap-policy": "planner.overlap_policy",
		"workers":        "planner.workers",
		"max-workgroups": "planner.max_workgroups_per_dimension",
	}
}
