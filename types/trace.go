package types

import (
	"context"
	"time"
)

// Trace of an episode as tuples (state, action, reward, nextState)
type Trace struct {
	states     []State
	actions    []Action
	rewards    []float64
	nextStates []State
	done       []bool
}

func NewTrace() *Trace {
	return &Trace{
		states:     make([]State, 0),
		actions:    make([]Action, 0),
		rewards:    make([]float64, 0),
		nextStates: make([]State, 0),
		done:       make([]bool, 0),
	}
}

func (t *Trace) Append(step int, state State, action Action, outcome *Outcome) {
	t.states = append(t.states, state)
	t.actions = append(t.actions, action)
	t.rewards = append(t.rewards, outcome.Reward)
	t.nextStates = append(t.nextStates, outcome.Next)
	t.done = append(t.done, outcome.Done())
}

func (t *Trace) Len() int {
	return len(t.states)
}

func (t *Trace) Get(i int) (State, Action, State, bool) {
	if i < 0 || i >= len(t.states) {
		return nil, nil, nil, false
	}
	return t.states[i], t.actions[i], t.nextStates[i], true
}

// Reward of the i-th step
func (t *Trace) Reward(i int) (float64, bool) {
	if i < 0 || i >= len(t.rewards) {
		return 0, false
	}
	return t.rewards[i], true
}

// Done reports whether the i-th step ended the episode
func (t *Trace) Done(i int) bool {
	if i < 0 || i >= len(t.done) {
		return false
	}
	return t.done[i]
}

// TotalReward is the undiscounted return of the trace
func (t *Trace) TotalReward() float64 {
	total := 0.0
	for _, r := range t.rewards {
		total += r
	}
	return total
}

// Recorder persists episode records outside the process
type Recorder interface {
	Record(context.Context, *EpisodeRecord) error
	Close() error
}

// EpisodeRecord is the serializable form of a trace
type EpisodeRecord struct {
	RunID       string       `json:"run_id"`
	Experiment  string       `json:"experiment"`
	Run         int          `json:"run"`
	Episode     int          `json:"episode"`
	Steps       []StepRecord `json:"steps"`
	TotalReward float64      `json:"total_reward"`
	Terminated  bool         `json:"terminated"`
	RecordedAt  time.Time    `json:"recorded_at"`
}

// StepRecord is one transition of an EpisodeRecord
type StepRecord struct {
	Step        int       `json:"step"`
	State       string    `json:"state"`
	Observation []float64 `json:"observation,omitempty"`
	Action      string    `json:"action"`
	Reward      float64   `json:"reward"`
	Done        bool      `json:"done"`
}

// NewEpisodeRecord converts the trace of a finished episode
func NewEpisodeRecord(runID string, eCtx *EpisodeContext) *EpisodeRecord {
	t := eCtx.Trace
	steps := make([]StepRecord, t.Len())
	for i := 0; i < t.Len(); i++ {
		state, action, _, _ := t.Get(i)
		reward, _ := t.Reward(i)
		steps[i] = StepRecord{
			Step:   i,
			State:  state.Hash(),
			Action: action.Hash(),
			Reward: reward,
			Done:   t.Done(i),
		}
		if o, ok := state.(Observable); ok {
			steps[i].Observation = o.Values()
		}
	}
	return &EpisodeRecord{
		RunID:       runID,
		Experiment:  eCtx.Experiment,
		Run:         eCtx.Run,
		Episode:     eCtx.Episode,
		Steps:       steps,
		TotalReward: t.TotalReward(),
		Terminated:  eCtx.Terminated,
		RecordedAt:  time.Now().UTC(),
	}
}
