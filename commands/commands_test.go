package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/maternal-rl/config"
	"github.com/zeu5/maternal-rl/logging"
	"github.com/zeu5/maternal-rl/policies"
	"github.com/zeu5/maternal-rl/types"
)

func smallConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	seed := uint64(1)
	cfg.Environment.MaxSteps = 10
	cfg.Environment.Seed = &seed
	cfg.Experiment.Episodes = 20
	cfg.Experiment.Horizon = 10
	cfg.Record.Path = filepath.Join(t.TempDir(), "results")
	cfg.Record.Traces = true
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewPolicy(t *testing.T) {
	seed := uint64(3)
	for _, p := range config.Default().Policies {
		policy, err := NewPolicy(p, &seed)
		require.NoError(t, err, p.Kind)
		assert.NotNil(t, policy)
		policy, err = NewPolicy(p, nil)
		require.NoError(t, err, p.Kind)
		assert.NotNil(t, policy)
	}
	_, err := NewPolicy(config.PolicyConfig{Name: "x", Kind: "sarsa"}, nil)
	assert.Error(t, err)
}

func TestTrainWritesArtifacts(t *testing.T) {
	cfg := smallConfig(t)
	c, err := Train(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)

	for _, name := range []string{"qlearning", "softmax", "random", "threshold"} {
		stats := c.Stats(name)
		require.Len(t, stats, 1, name)
		assert.Equal(t, 20, stats[0].Episodes)
		assert.Equal(t, 20, stats[0].Terminated)
		assert.Equal(t, 200, stats[0].Timesteps)
	}

	out := cfg.Record.Path
	for _, f := range []string{
		"config.json",
		"comparison_config.json",
		"0_rewards.png",
		"0_metrics.json",
		"0_decisions.json",
		filepath.Join("policies", "qlearning_0.json"),
		filepath.Join("policies", "softmax_0.json"),
		filepath.Join("traces", "threshold_0.jsonl"),
	} {
		assert.FileExists(t, filepath.Join(out, f))
	}

	bs, err := os.ReadFile(filepath.Join(out, "0_metrics.json"))
	require.NoError(t, err)
	metrics := make(map[string]types.TrainingMetrics)
	require.NoError(t, json.Unmarshal(bs, &metrics))
	assert.Equal(t, 20, metrics["threshold"].TotalEpisodes)
	assert.InDelta(t, 10.0, metrics["threshold"].AverageSteps, 1e-9)
	assert.Greater(t, metrics["threshold"].AverageReward, metrics["random"].AverageReward)

	traces, err := os.ReadFile(filepath.Join(out, "traces", "threshold_0.jsonl"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(traces)), "\n"), 20)

	buf := &bytes.Buffer{}
	printMetrics(buf, c)
	assert.Contains(t, buf.String(), "threshold:")
	assert.Contains(t, buf.String(), "Total Steps: 200")
	assert.Contains(t, buf.String(), "Average Steps/Episode: 10.00")
	assert.Contains(t, buf.String(), "Average Reward/Episode: ")
	assert.Contains(t, buf.String(), "Final Episode Reward: ")
}

func TestTrainCancelled(t *testing.T) {
	cfg := smallConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Train(ctx, cfg, logging.Discard())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVisualizeThreshold(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Environment.MaxSteps = 3
	out := &bytes.Buffer{}
	require.NoError(t, Visualize(cfg, visualizeOptions{mode: "none"}, out, logging.Discard()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Step 1: HR="))
	assert.Contains(t, lines[2], "Step 3:")
	assert.Contains(t, lines[2], "Action=")
	assert.Contains(t, lines[3], "Episode finished after 3 steps")
}

func TestVisualizeTrainedTableToGIF(t *testing.T) {
	cfg := smallConfig(t)
	_, err := Train(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)

	tablePath := filepath.Join(cfg.Record.Path, "policies", "qlearning_0.json")
	_, err = policies.LoadQTable(tablePath)
	require.NoError(t, err)

	cfg.Environment.MaxSteps = 4
	gifPath := filepath.Join(t.TempDir(), "episode.gif")
	out := &bytes.Buffer{}
	err = Visualize(cfg, visualizeOptions{
		qTablePath: tablePath,
		mode:       "rgb_array",
		gifPath:    gifPath,
		gifDelay:   5,
		maxFrames:  10,
	}, out, logging.Discard())
	require.NoError(t, err)
	assert.FileExists(t, gifPath)
	assert.Contains(t, out.String(), "Step 4:")
}

func TestVisualizeHuman(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Environment.MaxSteps = 2
	out := &bytes.Buffer{}
	require.NoError(t, Visualize(cfg, visualizeOptions{mode: "human"}, out, logging.Discard()))
	assert.Contains(t, out.String(), "Step 2/2")
	assert.Contains(t, out.String(), "episode terminated")
}

func TestVisualizeRejectsUnknownMode(t *testing.T) {
	cfg := smallConfig(t)
	err := Visualize(cfg, visualizeOptions{mode: "hologram"}, &bytes.Buffer{}, logging.Discard())
	assert.Error(t, err)
}

func TestRootCommandFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("environment:\n  max_steps: 50\n"), 0o644))

	root := GetRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{
		"visualize",
		"--config", configPath,
		"--env-file", filepath.Join(dir, "absent.env"),
		"--mode", "none",
		"--max-steps", "2",
		"--seed", "9",
		"--log-level", "error",
	})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Step 2:")
	assert.Contains(t, out.String(), "Episode finished after 2 steps")
}

func TestRootCommandRejectsInvalidConfig(t *testing.T) {
	root := GetRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"visualize", "--env-file", filepath.Join(t.TempDir(), "absent.env"), "--max-steps", "0"})
	assert.Error(t, root.Execute())
}
