package types

// Environment explored by an RL agent
type Environment interface {
	// Reset called at the start of each episode
	Reset(*EpisodeContext) (State, error)
	// Step applies the action and returns the resulting transition.
	// A non-nil Outcome returned with an error is a transition that was applied.
	Step(Action, *StepContext) (*Outcome, error)
}

// State of the system that RL policies observe
type State interface {
	// Indexed by the Hash
	// Should be deterministic
	Hash() string
	// Actions possible from the state
	Actions() []Action
}

// Observable states expose a numeric observation vector that is recorded with traces
type Observable interface {
	Values() []float64
}

// And Action that RL policy can take
type Action interface {
	// Index of the action
	// Should be deterministic
	Hash() string
}

// Outcome of a single step
type Outcome struct {
	Next       State
	Reward     float64
	Terminated bool
	Truncated  bool
}

// Done is true when the episode cannot continue past this step
func (o *Outcome) Done() bool {
	return o.Terminated || o.Truncated
}
