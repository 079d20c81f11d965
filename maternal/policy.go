package maternal

import "github.com/zeu5/maternal-rl/types"

// ThresholdPolicy always picks the highest-reward intervention for the
// observed vitals. Used as a baseline for the learnt policies.
type ThresholdPolicy struct{}

var _ types.Policy = &ThresholdPolicy{}

func NewThresholdPolicy() *ThresholdPolicy {
	return &ThresholdPolicy{}
}

func (t *ThresholdPolicy) NextAction(_ int, state types.State, actions []types.Action) (types.Action, bool) {
	vs, ok := state.(*VitalsState)
	if !ok || len(actions) == 0 {
		return nil, false
	}
	best := BestInterventions(vs.Vitals)[0]
	for _, a := range actions {
		if a.Hash() == best.Hash() {
			return a, true
		}
	}
	return actions[0], true
}

func (t *ThresholdPolicy) Update(_ int, _ types.State, _ types.Action, _ *types.Outcome) {}

func (t *ThresholdPolicy) UpdateIteration(_ int, _ *types.Trace) {}

func (t *ThresholdPolicy) Reset() {}

func (t *ThresholdPolicy) Record(_ string) error {
	return nil
}
