// Package commands is the command line interface of maternal-rl.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeu5/maternal-rl/config"
	"github.com/zeu5/maternal-rl/explorer"
	"github.com/zeu5/maternal-rl/logging"
)

var (
	episodes   int
	horizon    int
	saveFile   string
	runs       int
	maxSteps   int
	configFile string
	envFile    string
	logLevel   string
	seed       uint64
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "maternal-rl",
		Short:         "Train and evaluate intervention policies on a simulated maternal health environment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCommand.PersistentFlags().IntVarP(&episodes, "episodes", "e", 1000, "Number of episodes to run")
	rootCommand.PersistentFlags().IntVar(&horizon, "horizon", 1000, "Horizon of each episode")
	rootCommand.PersistentFlags().StringVarP(&saveFile, "save", "s", "results", "Save the result data in the specified folder")
	rootCommand.PersistentFlags().IntVar(&runs, "runs", 1, "Number of experiment runs")
	rootCommand.PersistentFlags().IntVar(&maxSteps, "max-steps", 1000, "Steps before an episode terminates")
	rootCommand.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML experiment configuration")
	rootCommand.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before the configuration")
	rootCommand.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: trace, debug, info, warn or error")
	rootCommand.PersistentFlags().Uint64Var(&seed, "seed", 0, "Seed of the environment random source, unset seeds from the clock")
	// adding the subcommands here
	rootCommand.AddCommand(TrainCommand())
	rootCommand.AddCommand(VisualizeCommand())
	rootCommand.AddCommand(ServeCommand())
	rootCommand.AddCommand(explorer.ExploreCommand())
	return rootCommand
}

// loadConfig builds the configuration from the config file, the environment
// and the flags set on cmd, in increasing order of precedence
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	if err := config.LoadEnvFiles(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("episodes") {
		cfg.Experiment.Episodes = episodes
	}
	if flags.Changed("horizon") {
		cfg.Experiment.Horizon = horizon
	}
	if flags.Changed("save") {
		cfg.Record.Path = saveFile
	}
	if flags.Changed("runs") {
		cfg.Experiment.Runs = runs
	}
	if flags.Changed("max-steps") {
		cfg.Environment.MaxSteps = maxSteps
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("seed") {
		s := seed
		cfg.Environment.Seed = &s
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logging.NewLogger(cfg.Logging.Level, os.Stderr), nil
}
