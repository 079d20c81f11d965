package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/zeu5/maternal-rl/config"
	"github.com/zeu5/maternal-rl/logging"
	"github.com/zeu5/maternal-rl/maternal"
	"github.com/zeu5/maternal-rl/policies"
	"github.com/zeu5/maternal-rl/render"
	"github.com/zeu5/maternal-rl/types"
)

type visualizeOptions struct {
	qTablePath string
	mode       string
	gifPath    string
	fps        int
	gifDelay   int
	maxFrames  int
}

// Visualize plays one episode with a trained Q-table, or the threshold rule
// when no table is given, printing every step to out
func Visualize(cfg *config.Config, opts visualizeOptions, out io.Writer, logger *slog.Logger) error {
	envConfig, err := cfg.Environment.Maternal()
	if err != nil {
		return err
	}
	if opts.mode != "" {
		mode, err := maternal.ParseRenderMode(opts.mode)
		if err != nil {
			return err
		}
		envConfig.RenderMode = mode
	}

	var policy types.Policy = maternal.NewThresholdPolicy()
	if opts.qTablePath != "" {
		qTable, err := policies.LoadQTable(opts.qTablePath)
		if err != nil {
			return fmt.Errorf("loading policy: %w", err)
		}
		policy = policies.NewGreedyPolicy(qTable)
		logger.Info("loaded q-table", "path", opts.qTablePath, "states", len(qTable.States()))
	}

	renderer, err := render.New(envConfig.RenderMode, out)
	if err != nil {
		return err
	}
	switch r := renderer.(type) {
	case *render.Terminal:
		r.SetFrameRate(opts.fps)
	case *render.Raster:
		if opts.gifPath != "" {
			r.SetMaxFrames(opts.maxFrames)
		}
	}
	defer renderer.Close()

	envOpts := []maternal.Option{maternal.WithRenderer(renderer)}
	if cfg.Environment.Seed != nil {
		envOpts = append(envOpts, maternal.WithSeed(*cfg.Environment.Seed))
	}
	rlEnv, err := maternal.NewRLEnvironment(envConfig, envOpts...)
	if err != nil {
		return err
	}
	env := rlEnv.Environment()

	state, err := rlEnv.Reset(nil)
	if err != nil {
		return err
	}
	totalReward := 0.0
	for frame := 1; !env.Terminated(); frame++ {
		action, ok := policy.NextAction(frame-1, state, state.Actions())
		if !ok {
			break
		}
		outcome, err := rlEnv.Step(action, nil)
		if err != nil {
			return err
		}
		if envConfig.RenderMode == maternal.RenderRGBArray {
			if err := env.Render(); err != nil {
				return err
			}
		}
		totalReward += outcome.Reward
		next := outcome.Next.(*maternal.VitalsState)
		intervention := action.(maternal.Intervention)
		if envConfig.RenderMode != maternal.RenderHuman {
			fmt.Fprintf(out, "Step %d: HR=%.1f, BP=%.1f, Action=%d\n", frame, next.Vitals.HeartRate, next.Vitals.BloodPressure, int(intervention))
		}
		logger.Log(context.Background(), logging.LevelTrace, "step",
			"step", frame,
			"action", intervention,
			"reward", outcome.Reward,
			"next", next.Hash(),
		)
		state = next
	}
	fmt.Fprintf(out, "Episode finished after %d steps with total reward %.2f\n", env.CurrentStep(), totalReward)

	if raster, ok := renderer.(*render.Raster); ok && opts.gifPath != "" {
		if err := render.SaveGIF(opts.gifPath, raster.Frames(), opts.gifDelay); err != nil {
			return fmt.Errorf("writing gif: %w", err)
		}
		logger.Info("saved animation", "path", opts.gifPath, "frames", len(raster.Frames()))
	}
	return nil
}

func VisualizeCommand() *cobra.Command {
	opts := visualizeOptions{}

	cmd := &cobra.Command{
		Use:   "visualize",
		Short: "Play one episode with a trained policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return Visualize(cfg, opts, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().StringVarP(&opts.qTablePath, "policy", "p", "", "Q-table recorded by train, the threshold rule is used when empty")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "human", "Render mode: human, rgb_array or none")
	cmd.Flags().StringVar(&opts.gifPath, "gif", "", "Save the rgb_array frames as an animated GIF")
	cmd.Flags().IntVar(&opts.fps, "fps", 15, "Frames per second of the human display, 0 for no limit")
	cmd.Flags().IntVar(&opts.gifDelay, "gif-delay", 7, "Delay between GIF frames in 100ths of a second")
	cmd.Flags().IntVar(&opts.maxFrames, "max-frames", 1000, "Frames kept for the GIF")
	return cmd
}
