package types

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/maternal-rl/logging"
)

type counterAction string

func (a counterAction) Hash() string { return string(a) }

var counterActions = []Action{counterAction("inc"), counterAction("stay")}

type counterState int

func (s counterState) Hash() string { return strconv.Itoa(int(s)) }

func (s counterState) Actions() []Action { return counterActions }

func (s counterState) Values() []float64 { return []float64{float64(s)} }

// counterEnv counts "inc" actions and terminates after limit steps
type counterEnv struct {
	limit   int
	step    int
	value   int
	failAt  int
	panicAt int
	sleep   time.Duration
}

func (c *counterEnv) Reset(_ *EpisodeContext) (State, error) {
	c.step, c.value = 0, 0
	return counterState(0), nil
}

func (c *counterEnv) Step(a Action, sCtx *StepContext) (*Outcome, error) {
	c.step += 1
	if c.failAt > 0 && c.step == c.failAt {
		return nil, errors.New("step failed")
	}
	if c.panicAt > 0 && c.step == c.panicAt {
		panic("boom")
	}
	if c.sleep > 0 {
		time.Sleep(c.sleep)
	}
	reward := 0.0
	if a.Hash() == "inc" {
		c.value += 1
		reward = 1
	}
	return &Outcome{
		Next:       counterState(c.value),
		Reward:     reward,
		Terminated: c.limit > 0 && c.step >= c.limit,
	}, nil
}

// fixedPolicy always picks the first action and counts its callbacks
type fixedPolicy struct {
	mtx        sync.Mutex
	updates    int
	iterations int
	resets     int
	recorded   []string
}

func (f *fixedPolicy) NextAction(_ int, _ State, actions []Action) (Action, bool) {
	return actions[0], true
}

func (f *fixedPolicy) Update(_ int, _ State, _ Action, _ *Outcome) { f.updates += 1 }

func (f *fixedPolicy) UpdateIteration(_ int, _ *Trace) { f.iterations += 1 }

func (f *fixedPolicy) Reset() { f.resets += 1 }

func (f *fixedPolicy) Record(path string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.recorded = append(f.recorded, path)
	return nil
}

type memRecorder struct {
	records []*EpisodeRecord
}

func (m *memRecorder) Record(_ context.Context, r *EpisodeRecord) error {
	m.records = append(m.records, r)
	return nil
}

func (m *memRecorder) Close() error { return nil }

func TestTrace(t *testing.T) {
	tr := NewTrace()
	_, _, _, ok := tr.Get(0)
	assert.False(t, ok)

	tr.Append(0, counterState(0), counterAction("inc"), &Outcome{Next: counterState(1), Reward: 1})
	tr.Append(1, counterState(1), counterAction("stay"), &Outcome{Next: counterState(1), Reward: -0.5, Terminated: true})

	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, 0.5, tr.TotalReward())
	s, a, next, ok := tr.Get(0)
	require.True(t, ok)
	assert.Equal(t, counterState(0), s)
	assert.Equal(t, counterAction("inc"), a)
	assert.Equal(t, counterState(1), next)
	assert.False(t, tr.Done(0))
	assert.True(t, tr.Done(1))
	r, ok := tr.Reward(1)
	require.True(t, ok)
	assert.Equal(t, -0.5, r)
	_, ok = tr.Reward(2)
	assert.False(t, ok)
	assert.False(t, tr.Done(2))
}

func TestAgentStopsOnTermination(t *testing.T) {
	policy := &fixedPolicy{}
	agent := NewAgent(&AgentConfig{Horizon: 10, Policy: policy, Environment: &counterEnv{limit: 4}})
	eCtx := NewEpisodeContext(context.Background(), 0, 0, 10, "counter", 0)
	defer eCtx.Cancel()
	agent.RunEpisode(eCtx)

	assert.NoError(t, eCtx.Err)
	assert.True(t, eCtx.Terminated)
	assert.False(t, eCtx.HorizonEnd)
	assert.Equal(t, 4, eCtx.Timesteps)
	assert.Equal(t, 4.0, eCtx.Trace.TotalReward())
	assert.Equal(t, 4, policy.updates)
	assert.Equal(t, 1, policy.iterations)
}

func TestAgentStopsAtHorizon(t *testing.T) {
	agent := NewAgent(&AgentConfig{Horizon: 5, Policy: &fixedPolicy{}, Environment: &counterEnv{}})
	eCtx := NewEpisodeContext(context.Background(), 0, 0, 5, "counter", 0)
	defer eCtx.Cancel()
	agent.RunEpisode(eCtx)

	assert.False(t, eCtx.Terminated)
	assert.True(t, eCtx.HorizonEnd)
	assert.Equal(t, 5, eCtx.Trace.Len())
}

func TestAgentRecordsStepError(t *testing.T) {
	agent := NewAgent(&AgentConfig{Horizon: 5, Policy: &fixedPolicy{}, Environment: &counterEnv{failAt: 2}})
	eCtx := NewEpisodeContext(context.Background(), 0, 0, 5, "counter", 0)
	defer eCtx.Cancel()
	agent.RunEpisode(eCtx)

	assert.Error(t, eCtx.Err)
	assert.False(t, eCtx.Valid())
	assert.Equal(t, 1, eCtx.Timesteps)
}

func TestEpisodeTimeout(t *testing.T) {
	agent := NewAgent(&AgentConfig{Horizon: 1000, Policy: &fixedPolicy{}, Environment: &counterEnv{sleep: 5 * time.Millisecond}})
	eCtx := NewEpisodeContext(context.Background(), 0, 0, 1000, "counter", 20*time.Millisecond)
	defer eCtx.Cancel()
	agent.RunEpisode(eCtx)

	assert.True(t, eCtx.TimedOut)
	assert.False(t, eCtx.Valid())
	assert.Less(t, eCtx.Timesteps, 1000)
}

func TestEpisodeRecord(t *testing.T) {
	agent := NewAgent(&AgentConfig{Horizon: 3, Policy: &fixedPolicy{}, Environment: &counterEnv{limit: 3}})
	eCtx := NewEpisodeContext(context.Background(), 2, 7, 3, "counter", 0)
	defer eCtx.Cancel()
	agent.RunEpisode(eCtx)

	r := NewEpisodeRecord("run", eCtx)
	assert.Equal(t, "counter", r.Experiment)
	assert.Equal(t, 2, r.Run)
	assert.Equal(t, 7, r.Episode)
	assert.True(t, r.Terminated)
	assert.Equal(t, 3.0, r.TotalReward)
	require.Len(t, r.Steps, 3)
	assert.Equal(t, "1", r.Steps[1].State)
	assert.Equal(t, []float64{1}, r.Steps[1].Observation)
	assert.Equal(t, "inc", r.Steps[1].Action)
	assert.True(t, r.Steps[2].Done)
}

func TestRandomPolicySeeded(t *testing.T) {
	a, b := NewRandomPolicyWithSeed(5), NewRandomPolicyWithSeed(5)
	for i := 0; i < 20; i++ {
		x, ok := a.NextAction(i, counterState(0), counterActions)
		require.True(t, ok)
		y, _ := b.NextAction(i, counterState(0), counterActions)
		assert.Equal(t, x, y)
	}
	_, ok := a.NextAction(0, counterState(0), nil)
	assert.False(t, ok)
}

func TestRewardMetrics(t *testing.T) {
	empty := (&RewardDataSet{}).Metrics()
	assert.Equal(t, 0, empty.TotalEpisodes)

	a := NewRewardAnalyzer()
	for _, limit := range []int{2, 4} {
		eCtx := NewEpisodeContext(context.Background(), 0, 0, 10, "counter", 0)
		NewAgent(&AgentConfig{Horizon: 10, Policy: &fixedPolicy{}, Environment: &counterEnv{limit: limit}}).RunEpisode(eCtx)
		eCtx.Cancel()
		a.Analyze(0, 0, "counter", eCtx.Trace)
	}
	m := a.DataSet().(*RewardDataSet).Metrics()
	assert.Equal(t, 2, m.TotalEpisodes)
	assert.InDelta(t, 3.0, m.AverageReward, 1e-9)
	assert.InDelta(t, 3.0, m.AverageSteps, 1e-9)
	assert.Equal(t, 4.0, m.FinalReward)
	assert.Equal(t, 6, m.TotalTimesteps)
	assert.InDelta(t, 1.0, m.RewardPerStep, 1e-9)
	assert.Greater(t, m.RewardStdDev, 0.0)

	a.Reset()
	assert.Empty(t, a.DataSet().(*RewardDataSet).EpisodeRewards)
}

func TestComparisonRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	rec := &memRecorder{}
	c, err := NewComparison(&ComparisonConfig{
		Runs:         2,
		Episodes:     3,
		Horizon:      10,
		RecordPath:   dir,
		Recorder:     rec,
		RecordPolicy: true,
		Logger:       logging.Discard(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.RunID)

	policy := &fixedPolicy{}
	c.AddExperiment(NewExperiment("counter", policy, &counterEnv{limit: 4}))

	compared := make([]int, 0)
	c.AddAnalysis("rewards", NewRewardAnalyzer(), func(run int, names []string, ds []DataSet) error {
		compared = append(compared, run)
		assert.Equal(t, []string{"counter"}, names)
		assert.Len(t, ds[0].(*RewardDataSet).EpisodeRewards, 3)
		return nil
	})
	c.AddAnalysis("metrics", NewRewardAnalyzer(), MetricsComparator(dir, logging.Discard()))
	c.AddAnalysis("noop", NewRewardAnalyzer(), NoopComparator())

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []int{0, 1}, compared)
	stats := c.Stats("counter")
	require.Len(t, stats, 2)
	assert.Equal(t, 3, stats[0].Valid)
	assert.Equal(t, 3, stats[0].Terminated)
	assert.Equal(t, 12, stats[1].Timesteps)
	ds, ok := c.DataSet("metrics", "counter")
	require.True(t, ok)
	assert.Equal(t, 3, ds.(*RewardDataSet).Metrics().TotalEpisodes)
	_, ok = c.DataSet("metrics", "absent")
	assert.False(t, ok)
	assert.Len(t, rec.records, 6)
	assert.Equal(t, c.RunID, rec.records[0].RunID)
	assert.Equal(t, 2, policy.resets)
	assert.Equal(t, []string{
		filepath.Join(dir, "policies", "counter_0.json"),
		filepath.Join(dir, "policies", "counter_1.json"),
	}, policy.recorded)

	assert.FileExists(t, filepath.Join(dir, "comparison_config.json"))
	assert.FileExists(t, filepath.Join(dir, "1_metrics.json"))
}

func TestExperimentRecoversPanicsAndAborts(t *testing.T) {
	c, err := NewComparison(&ComparisonConfig{
		Runs:                   1,
		Episodes:               20,
		Horizon:                5,
		RecordPath:             t.TempDir(),
		ConsecutiveErrorsAbort: 3,
		Logger:                 logging.Discard(),
	})
	require.NoError(t, err)
	c.AddExperiment(NewExperiment("panics", &fixedPolicy{}, &counterEnv{panicAt: 1}))
	require.NoError(t, c.Run(context.Background()))

	stats := c.Stats("panics")
	require.Len(t, stats, 1)
	assert.True(t, stats[0].Aborted)
	assert.Equal(t, 3, stats[0].Episodes)
	assert.Equal(t, 3, stats[0].WithError)
}

func TestNewComparisonValidates(t *testing.T) {
	_, err := NewComparison(&ComparisonConfig{Runs: 0, Episodes: 1, Horizon: 1, RecordPath: t.TempDir()})
	assert.Error(t, err)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	_, err = NewComparison(&ComparisonConfig{Runs: 1, Episodes: 1, Horizon: 1, RecordPath: filepath.Join(blocker, "sub")})
	assert.Error(t, err)
}
