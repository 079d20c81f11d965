package types

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zeu5/maternal-rl/util"
)

type experimentRunConfig struct {
	// execution configuration
	RunID      string
	CurrentRun int
	Episodes   int
	Horizon    int
	Analyzers  []Analyzer
	Timeout    time.Duration
	Context    context.Context
	Logger     *slog.Logger

	// threshold to abort the experiment
	ConsecutiveErrorsAbort int

	// recording
	Recorder     Recorder
	RecordPolicy bool
	RecordPath   string
}

// Experiment encapsulates the different parameters to configure an agent and analyze the traces
type Experiment struct {
	Name        string
	policy      Policy
	environment Environment
}

// NewExperiment creates a new experiment instance
func NewExperiment(name string, policy Policy, environment Environment) *Experiment {
	return &Experiment{
		Name:        name,
		policy:      policy,
		environment: environment,
	}
}

// ExperimentStats counts how the episodes of a run ended
type ExperimentStats struct {
	Episodes      int
	Valid         int
	WithError     int
	TimedOut      int
	Terminated    int
	HorizonEnd    int
	Timesteps     int
	Aborted       bool
	TotalDuration time.Duration
}

// Run the experiment for the specified number of episodes
func (e *Experiment) Run(rConfig *experimentRunConfig) (stats ExperimentStats) {
	logger := rConfig.Logger.With("experiment", e.Name, "run", rConfig.CurrentRun)
	start := time.Now()
	defer func() {
		stats.TotalDuration = time.Since(start)
	}()

	agent := NewAgent(&AgentConfig{
		Episodes:    rConfig.Episodes,
		Horizon:     rConfig.Horizon,
		Policy:      e.policy,
		Environment: e.environment,
	})

	consecutiveErrors := 0
	progressEvery := rConfig.Episodes / 10
	if progressEvery == 0 {
		progressEvery = 1
	}

	for episode := 0; episode < rConfig.Episodes; episode++ {
		select {
		case <-rConfig.Context.Done():
			return stats
		default:
		}

		eCtx := NewEpisodeContext(rConfig.Context, rConfig.CurrentRun, episode, rConfig.Horizon, e.Name, rConfig.Timeout)
		e.runEpisode(eCtx, agent)

		stats.Episodes += 1
		stats.Timesteps += eCtx.Timesteps

		switch {
		case eCtx.TimedOut:
			stats.TimedOut += 1
		case eCtx.Err != nil:
			stats.WithError += 1
			logger.Debug("episode failed", "episode", episode, "error", eCtx.Err)
		default:
			stats.Valid += 1
			if eCtx.Terminated {
				stats.Terminated += 1
			} else if eCtx.HorizonEnd {
				stats.HorizonEnd += 1
			}
		}
		if eCtx.Valid() {
			consecutiveErrors = 0
		} else {
			consecutiveErrors += 1
		}

		// analyze the trace, even if the episode timed out or ended with an error
		for _, a := range rConfig.Analyzers {
			a.Analyze(rConfig.CurrentRun, episode, e.Name, eCtx.Trace)
		}

		if rConfig.Recorder != nil {
			if err := rConfig.Recorder.Record(rConfig.Context, NewEpisodeRecord(rConfig.RunID, eCtx)); err != nil {
				logger.Warn("failed to record episode", "episode", episode, "error", err)
			}
		}

		if (episode+1)%progressEvery == 0 {
			logger.Debug("progress", "episodes", episode+1, "of", rConfig.Episodes, "valid", stats.Valid, "errors", stats.WithError)
		}

		if consecutiveErrors >= rConfig.ConsecutiveErrorsAbort {
			logger.Error("aborting experiment", "consecutive_failures", consecutiveErrors, "last_error", eCtx.Err)
			stats.Aborted = true
			break
		}
	}

	if rConfig.RecordPolicy {
		policyPath := path.Join(rConfig.RecordPath, "policies", e.Name+"_"+strconv.Itoa(rConfig.CurrentRun)+".json")
		if err := e.policy.Record(policyPath); err != nil {
			logger.Warn("failed to record policy", "path", policyPath, "error", err)
		}
	}
	return stats
}

// runEpisode runs the agent and converts a panic into an episode error
func (e *Experiment) runEpisode(eCtx *EpisodeContext, agent *Agent) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			eCtx.SetError(fmt.Errorf("episode panicked: %v", r))
		}
		eCtx.RunDuration = time.Since(start)
		eCtx.Cancel()
	}()

	agent.RunEpisode(eCtx)
}

// Reset forgets everything the policy learnt
func (e *Experiment) Reset() {
	e.policy.Reset()
}

// Generic Dataset that contains information after processing the traces
type DataSet interface{}

// Analyzer compresses the information in the traces to a DataSet
type Analyzer interface {
	// run, episode, experiment, trace
	Analyze(int, int, string, *Trace)
	// Resulting dataset
	DataSet() DataSet
	// Reset the analyzer
	Reset()
}

// Comparator differentiates between different datasets with associated names
// run, experiment names, datasets
type Comparator func(int, []string, []DataSet) error

func NoopComparator() Comparator {
	return func(_ int, _ []string, _ []DataSet) error { return nil }
}

// ComparisonConfig contains the configuration for the comparison
type ComparisonConfig struct {
	Runs     int // number of runs
	Episodes int // number of episodes
	Horizon  int // number of steps

	RecordPath string        // path to store the results
	Timeout    time.Duration // timeout for each episode

	// threshold to abort the experiment
	ConsecutiveErrorsAbort int

	// record flags
	Recorder     Recorder
	RecordPolicy bool

	Logger *slog.Logger
}

// Comparison contains the different experiments to compare
// The traces obtained from the experiments are analyzed
// The analyzed datasets are then compared
type Comparison struct {
	Experiments []*Experiment
	RunID       string
	analyzers   map[string]Analyzer
	comparators map[string]Comparator
	cConfig     *ComparisonConfig
	stats       map[string][]ExperimentStats

	// datasets of the latest run, by analysis then experiment
	lastDataSets map[string]map[string]DataSet
}

// NewComparison creates a comparison instance and its output folders
func NewComparison(config *ComparisonConfig) (*Comparison, error) {
	if config.Runs <= 0 || config.Episodes <= 0 || config.Horizon <= 0 {
		return nil, fmt.Errorf("runs, episodes and horizon must be positive, got %d, %d, %d", config.Runs, config.Episodes, config.Horizon)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ConsecutiveErrorsAbort <= 0 {
		config.ConsecutiveErrorsAbort = 10
	}

	folders := []string{config.RecordPath}
	if config.RecordPolicy {
		folders = append(folders, path.Join(config.RecordPath, "policies"))
	}
	for _, f := range folders {
		if err := util.EnsureDir(f); err != nil {
			return nil, err
		}
	}

	return &Comparison{
		Experiments: make([]*Experiment, 0),
		RunID:       uuid.NewString(),
		analyzers:   make(map[string]Analyzer),
		comparators: make(map[string]Comparator),
		cConfig:     config,
		stats:       make(map[string][]ExperimentStats),

		lastDataSets: make(map[string]map[string]DataSet),
	}, nil
}

// AddAnalysis adds an analyzer and comparator to the comparison
func (c *Comparison) AddAnalysis(name string, analyzer Analyzer, comparator Comparator) {
	c.analyzers[name] = analyzer
	c.comparators[name] = comparator
}

// Add experiments to compare
func (c *Comparison) AddExperiment(e *Experiment) {
	c.Experiments = append(c.Experiments, e)
}

// Stats of every run of the named experiment
func (c *Comparison) Stats(name string) []ExperimentStats {
	return c.stats[name]
}

// DataSet returns the dataset the named analysis produced for experiment in the latest run
func (c *Comparison) DataSet(analysis, experiment string) (DataSet, bool) {
	ds, ok := c.lastDataSets[analysis][experiment]
	return ds, ok
}

// Run the comparison
func (c *Comparison) Run(ctx context.Context) error {
	if err := c.recordConfig(); err != nil {
		return err
	}
	logger := c.cConfig.Logger.With("run_id", c.RunID)

	analyzerNames := make([]string, 0, len(c.analyzers))
	for name := range c.analyzers {
		analyzerNames = append(analyzerNames, name)
	}
	sort.Strings(analyzerNames)

	for run := 0; run < c.cConfig.Runs; run++ {
		logger.Info("starting run", "run", run+1, "of", c.cConfig.Runs)
		datasets := make(map[string][]DataSet)
		for _, name := range analyzerNames {
			datasets[name] = make([]DataSet, len(c.Experiments))
		}

		names := make([]string, len(c.Experiments))
		for i, e := range c.Experiments {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats := e.Run(c.prepareRunConfig(ctx, run))
			c.stats[e.Name] = append(c.stats[e.Name], stats)
			logger.Info("experiment finished",
				"experiment", e.Name,
				"run", run,
				"episodes", stats.Episodes,
				"valid", stats.Valid,
				"errors", stats.WithError,
				"timeouts", stats.TimedOut,
				"duration", stats.TotalDuration,
			)
			for _, name := range analyzerNames {
				a := c.analyzers[name]
				datasets[name][i] = a.DataSet()
				a.Reset()
			}
			names[i] = e.Name
			e.Reset()
		}
		for _, name := range analyzerNames {
			byExperiment := make(map[string]DataSet, len(names))
			for i, e := range names {
				byExperiment[e] = datasets[name][i]
			}
			c.lastDataSets[name] = byExperiment
			if err := c.comparators[name](run, names, datasets[name]); err != nil {
				return fmt.Errorf("comparator %s: %w", name, err)
			}
		}
	}
	return nil
}

// prepare the run configuration for the experiment
func (c *Comparison) prepareRunConfig(ctx context.Context, run int) *experimentRunConfig {
	rCfg := &experimentRunConfig{
		RunID:                  c.RunID,
		CurrentRun:             run,
		Episodes:               c.cConfig.Episodes,
		Horizon:                c.cConfig.Horizon,
		Analyzers:              make([]Analyzer, 0, len(c.analyzers)),
		Timeout:                c.cConfig.Timeout,
		Context:                ctx,
		Logger:                 c.cConfig.Logger,
		ConsecutiveErrorsAbort: c.cConfig.ConsecutiveErrorsAbort,
		Recorder:               c.cConfig.Recorder,
		RecordPolicy:           c.cConfig.RecordPolicy,
		RecordPath:             c.cConfig.RecordPath,
	}
	for _, a := range c.analyzers {
		rCfg.Analyzers = append(rCfg.Analyzers, a)
	}
	return rCfg
}

// record the configuration of the comparison
func (c *Comparison) recordConfig() error {
	cfg := c.cConfig
	out := make(map[string]interface{})
	out["run_id"] = c.RunID
	out["runs"] = cfg.Runs
	out["episodes"] = cfg.Episodes
	out["horizon"] = cfg.Horizon
	out["record_traces"] = cfg.Recorder != nil
	out["record_policy"] = cfg.RecordPolicy
	if cfg.Timeout != 0 {
		out["timeout"] = cfg.Timeout.String()
	}

	experiments := make([]string, 0, len(c.Experiments))
	for _, e := range c.Experiments {
		experiments = append(experiments, e.Name)
	}
	out["experiments"] = experiments

	analyzers := make([]string, 0, len(c.analyzers))
	for name := range c.analyzers {
		analyzers = append(analyzers, name)
	}
	sort.Strings(analyzers)
	out["analyzers"] = analyzers

	return util.WriteJSON(path.Join(cfg.RecordPath, "comparison_config.json"), out)
}
