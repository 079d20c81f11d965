package types

import (
	"context"
	"errors"
	"time"
)

// EpisodeContext wraps static and dynamic information of an episode
// Static: episode number, horizon, experiment
// Dynamic: trace, error, timeout and how the episode ended
type EpisodeContext struct {
	Context context.Context
	cancel  context.CancelFunc

	Run        int
	Episode    int
	Horizon    int
	Experiment string

	Trace     *Trace
	Timesteps int

	Err         error
	TimedOut    bool
	Terminated  bool // the environment signalled termination before the horizon
	HorizonEnd  bool // the horizon was reached
	RunDuration time.Duration
}

// NewEpisodeContext creates the context of a single episode.
// A zero timeout means the episode only stops on parent cancellation.
func NewEpisodeContext(parent context.Context, run, episode, horizon int, experiment string, timeout time.Duration) *EpisodeContext {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return &EpisodeContext{
		Context:    ctx,
		cancel:     cancel,
		Run:        run,
		Episode:    episode,
		Horizon:    horizon,
		Experiment: experiment,
		Trace:      NewTrace(),
	}
}

// SetError records the first error of the episode
func (e *EpisodeContext) SetError(err error) {
	if e.Err == nil {
		e.Err = err
	}
}

// Cancel releases the resources of the episode context
func (e *EpisodeContext) Cancel() {
	e.cancel()
}

// Stopped checks the context and marks a timeout when the deadline passed
func (e *EpisodeContext) Stopped() bool {
	select {
	case <-e.Context.Done():
		if errors.Is(e.Context.Err(), context.DeadlineExceeded) {
			e.TimedOut = true
		}
		return true
	default:
		return false
	}
}

// Valid is true when the episode ended without errors or timeouts
func (e *EpisodeContext) Valid() bool {
	return e.Err == nil && !e.TimedOut
}

// StepContext is the episode context at a given step
func (e *EpisodeContext) StepContext(step int) *StepContext {
	return &StepContext{
		Step:           step,
		EpisodeContext: e,
	}
}

// StepContext carries the step number along with its episode
type StepContext struct {
	Step int
	*EpisodeContext
}
