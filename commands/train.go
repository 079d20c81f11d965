package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/spf13/cobra"
	"github.com/zeu5/maternal-rl/config"
	"github.com/zeu5/maternal-rl/maternal"
	"github.com/zeu5/maternal-rl/policies"
	"github.com/zeu5/maternal-rl/recorder"
	"github.com/zeu5/maternal-rl/types"
	"github.com/zeu5/maternal-rl/util"
)

// NewPolicy builds the policy described by p. A non-nil seed makes it deterministic.
func NewPolicy(p config.PolicyConfig, seed *uint64) (types.Policy, error) {
	switch p.Kind {
	case config.KindRandom:
		if seed != nil {
			return types.NewRandomPolicyWithSeed(*seed), nil
		}
		return types.NewRandomPolicy(), nil
	case config.KindThreshold:
		return maternal.NewThresholdPolicy(), nil
	case config.KindQLearning:
		if seed != nil {
			return policies.NewQLearningPolicyWithSeed(p.LearningRate, p.Discount, p.Epsilon, *seed), nil
		}
		return policies.NewQLearningPolicy(p.LearningRate, p.Discount, p.Epsilon), nil
	case config.KindSoftMax:
		if seed != nil {
			return policies.NewSoftMaxPolicyWithSeed(p.LearningRate, p.Discount, p.Temperature, *seed), nil
		}
		return policies.NewSoftMaxPolicy(p.LearningRate, p.Discount, p.Temperature), nil
	}
	return nil, fmt.Errorf("unknown policy kind: %s", p.Kind)
}

// newRecorder returns the trace recorders enabled in cfg, nil when there are none
func newRecorder(ctx context.Context, cfg *config.Config) (types.Recorder, error) {
	recorders := make(recorder.Multi, 0)
	if cfg.Record.Traces {
		r, err := recorder.NewFileRecorder(path.Join(cfg.Record.Path, "traces"))
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, r)
	}
	if cfg.Record.RedisAddr != "" {
		r, err := recorder.NewRedisRecorder(ctx, recorder.RedisConfig{
			Addr:   cfg.Record.RedisAddr,
			Key:    cfg.Record.RedisKey,
			MaxLen: cfg.Record.RedisMaxLen,
		})
		if err != nil {
			recorders.Close()
			return nil, err
		}
		recorders = append(recorders, r)
	}
	if len(recorders) == 0 {
		return nil, nil
	}
	return recorders, nil
}

// Train compares every configured policy on its own environment and writes
// plots, metrics and decision summaries to the record path
func Train(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*types.Comparison, error) {
	envConfig, err := cfg.Environment.Maternal()
	if err != nil {
		return nil, err
	}
	if envConfig.RenderMode != maternal.RenderNone {
		logger.Warn("training runs headless", "render_mode", envConfig.RenderMode)
		envConfig.RenderMode = maternal.RenderNone
	}

	rec, err := newRecorder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		defer rec.Close()
	}

	c, err := types.NewComparison(&types.ComparisonConfig{
		Runs:                   cfg.Experiment.Runs,
		Episodes:               cfg.Experiment.Episodes,
		Horizon:                cfg.Experiment.Horizon,
		RecordPath:             cfg.Record.Path,
		Timeout:                cfg.Experiment.Timeout,
		ConsecutiveErrorsAbort: cfg.Experiment.ConsecutiveErrorsAbort,
		Recorder:               rec,
		RecordPolicy:           cfg.Record.Policies,
		Logger:                 logger,
	})
	if err != nil {
		return nil, err
	}
	c.AddAnalysis("rewards", types.NewRewardAnalyzer(), types.RewardPlotComparator(cfg.Record.Path))
	c.AddAnalysis("metrics", types.NewRewardAnalyzer(), types.MetricsComparator(cfg.Record.Path, logger))
	c.AddAnalysis("decisions", maternal.NewDecisionAnalyzer(), maternal.DecisionComparator(cfg.Record.Path, logger))

	for _, p := range cfg.Policies {
		policy, err := NewPolicy(p, cfg.Environment.Seed)
		if err != nil {
			return nil, err
		}
		opts := make([]maternal.Option, 0)
		if cfg.Environment.Seed != nil {
			// every policy sees the same sequence of patients
			opts = append(opts, maternal.WithSeed(*cfg.Environment.Seed))
		}
		env, err := maternal.NewRLEnvironment(envConfig, opts...)
		if err != nil {
			return nil, err
		}
		c.AddExperiment(types.NewExperiment(p.Name, policy, env))
	}

	if err := util.WriteJSON(path.Join(cfg.Record.Path, "config.json"), cfg); err != nil {
		return nil, err
	}
	if err := c.Run(ctx); err != nil {
		return c, err
	}
	return c, nil
}

// printMetrics writes the training summary of the last run of every experiment
func printMetrics(w io.Writer, c *types.Comparison) {
	for _, e := range c.Experiments {
		stats := c.Stats(e.Name)
		if len(stats) == 0 {
			continue
		}
		last := stats[len(stats)-1]
		fmt.Fprintf(w, "\n%s:\n", e.Name)
		fmt.Fprintf(w, "Episodes: %d (valid %d, errors %d, timeouts %d)\n", last.Episodes, last.Valid, last.WithError, last.TimedOut)
		fmt.Fprintf(w, "Total Steps: %d\n", last.Timesteps)
		fmt.Fprintf(w, "Total Training Time: %.2fs\n", last.TotalDuration.Seconds())
		if ds, ok := c.DataSet("metrics", e.Name); ok {
			m := ds.(*types.RewardDataSet).Metrics()
			fmt.Fprintf(w, "Average Reward/Episode: %.2f\n", m.AverageReward)
			fmt.Fprintf(w, "Average Steps/Episode: %.2f\n", m.AverageSteps)
			fmt.Fprintf(w, "Final Episode Reward: %.2f\n", m.FinalReward)
		}
	}
}

func TrainCommand() *cobra.Command {
	var cpuProfile string
	var memProfile string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and compare the configured policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := util.EnsureDir(cfg.Record.Path); err != nil {
				return err
			}
			stopProfiling, err := startProfiling(cfg.Record.Path, cpuProfile, memProfile, logger)
			if err != nil {
				return err
			}

			ctx, stop := interruptContext(cmd.Context())
			defer stop()

			c, err := Train(ctx, cfg, logger)
			if perr := stopProfiling(); perr != nil {
				logger.Warn("profiling failed", "error", perr)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\nTraining Metrics:")
			printMetrics(cmd.OutOrStdout(), c)
			return nil
		},
	}
	cmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "Write a CPU profile to this file in the save folder")
	cmd.Flags().StringVar(&memProfile, "memprofile", "", "Write a heap profile to this file in the save folder")
	return cmd
}
