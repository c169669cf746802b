// Package cmd provides the vsxc command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configFileFlag string
	rootFlag       string
	ignoreFlag     string
	parallelFlag   int
	verboseFlag    bool
	logFileFlag    string
)

const rootLongDescription = `vsxc keeps a recency-ranked list of the files in a workspace and
packs the workspace, or a selection of it, into a zip archive.

Entries whose basename matches the ignore pattern (a regular expression)
are left out of listings, watches and whole-tree archives.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "vsxc",
		Short:        "Recent files and workspace archives",
		Long:         rootLongDescription,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := loadConfig(configFileFlag); err != nil {
				return err
			}
			configureLogger()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringVarP(&configFileFlag, configFlagName, "c", "", "config file (default ./"+configFileName+")")

	flags.StringVarP(&rootFlag, rootFlagName, "r", defaultRoot, "workspace root directory")
	bindFlagToConfig(flags.Lookup(rootFlagName), rootKey)

	flags.StringVarP(&ignoreFlag, ignoreFlagName, "i", defaultIgnore, "regular expression matched against basenames to ignore")
	bindFlagToConfig(flags.Lookup(ignoreFlagName), ignoreKey)

	flags.IntVarP(&parallelFlag, parallelFlagName, "p", defaultParallelism, "directories read concurrently while indexing (0 = number of CPUs)")
	bindFlagToConfig(flags.Lookup(parallelFlagName), parallelismKey)

	flags.BoolVarP(&verboseFlag, verboseFlagName, "v", false, "enable debug logging")
	bindFlagToConfig(flags.Lookup(verboseFlagName), logVerboseKey)

	flags.StringVar(&logFileFlag, logFileFlagName, "", "also write logs to this rotating file")
	bindFlagToConfig(flags.Lookup(logFileFlagName), logFileKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// ignoreCanceled treats a cancelled context as a clean shutdown.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
