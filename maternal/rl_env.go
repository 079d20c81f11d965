package maternal

import (
	"errors"
	"fmt"

	"github.com/zeu5/maternal-rl/types"
)

// VitalsState is the types.State view of the environment after a step
type VitalsState struct {
	Vitals VitalSigns
	Step   int
}

var _ types.State = &VitalsState{}
var _ types.Observable = &VitalsState{}

// Hash abstracts the vitals to their severity band and risk flags.
// The raw readings are continuous and never repeat.
func (s *VitalsState) Hash() string {
	return fmt.Sprintf("%s|a%d|b%d", s.Vitals.Severity(), s.Vitals.RiskFlagA, s.Vitals.RiskFlagB)
}

// Actions are always the five interventions
func (s *VitalsState) Actions() []types.Action {
	return allActions
}

func (s *VitalsState) Values() []float64 {
	o := s.Vitals.Observation()
	return o[:]
}

// RLEnvironment wraps an Environment as a types.Environment
type RLEnvironment struct {
	env *Environment
}

var _ types.Environment = &RLEnvironment{}

// NewRLEnvironment creates the underlying environment with the given config
func NewRLEnvironment(config Config, opts ...Option) (*RLEnvironment, error) {
	env, err := NewEnvironment(config, opts...)
	if err != nil {
		return nil, err
	}
	return &RLEnvironment{env: env}, nil
}

// Environment exposes the wrapped core
func (r *RLEnvironment) Environment() *Environment {
	return r.env
}

func (r *RLEnvironment) Reset(_ *types.EpisodeContext) (types.State, error) {
	r.env.Reset()
	return r.state(), nil
}

func (r *RLEnvironment) Step(a types.Action, sCtx *types.StepContext) (*types.Outcome, error) {
	if sCtx != nil {
		if err := sCtx.Context.Err(); err != nil {
			return nil, err
		}
	}
	intervention, ok := a.(Intervention)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected action type %T", ErrInvalidAction, a)
	}
	result, err := r.env.Step(intervention)
	if err != nil && !errors.Is(err, ErrRender) {
		return nil, err
	}
	// a render failure still returns the applied transition
	return &types.Outcome{
		Next:       r.state(),
		Reward:     result.Reward,
		Terminated: result.Terminated,
		Truncated:  result.Truncated,
	}, err
}

func (r *RLEnvironment) state() *VitalsState {
	return &VitalsState{
		Vitals: r.env.Vitals(),
		Step:   r.env.CurrentStep(),
	}
}
