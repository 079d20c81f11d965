package types

type AgentConfig struct {
	Episodes    int
	Horizon     int
	Policy      Policy
	Environment Environment
}

// RL Agent configured with the corresponding
// policy and environment
type Agent struct {
	config      *AgentConfig
	policy      Policy
	environment Environment
}

// Instantiates a new Agent
func NewAgent(config *AgentConfig) *Agent {
	return &Agent{
		config:      config,
		policy:      config.Policy,
		environment: config.Environment,
	}
}

// RunEpisode runs a single episode up to the horizon or until the environment
// terminates. The outcome is stored in eCtx.
func (a *Agent) RunEpisode(eCtx *EpisodeContext) {
	state, err := a.environment.Reset(eCtx)
	if err != nil {
		eCtx.SetError(err)
		return
	}

	for i := 0; i < eCtx.Horizon; i++ {
		if eCtx.Stopped() {
			return
		}
		actions := state.Actions()
		if len(actions) == 0 {
			break
		}
		nextAction, ok := a.policy.NextAction(i, state, actions)
		if !ok {
			break
		}
		outcome, err := a.environment.Step(nextAction, eCtx.StepContext(i))
		if outcome != nil {
			a.policy.Update(i, state, nextAction, outcome)
			eCtx.Trace.Append(i, state, nextAction, outcome)
			eCtx.Timesteps += 1
		}
		if err != nil {
			eCtx.SetError(err)
			return
		}
		state = outcome.Next
		if outcome.Done() {
			eCtx.Terminated = true
			break
		}
	}
	if !eCtx.Terminated && eCtx.Timesteps >= eCtx.Horizon {
		eCtx.HorizonEnd = true
	}
	a.policy.UpdateIteration(eCtx.Episode, eCtx.Trace)
}
