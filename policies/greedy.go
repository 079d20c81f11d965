package policies

import (
	"time"

	"github.com/zeu5/maternal-rl/types"
	"golang.org/x/exp/rand"
)

// GreedyPolicy follows a fixed QTable, typically loaded from a recorded
// training run. It never learns. Unknown states get a random action.
type GreedyPolicy struct {
	qTable *QTable
	rand   *rand.Rand
}

var _ types.Policy = &GreedyPolicy{}

func NewGreedyPolicy(qTable *QTable) *GreedyPolicy {
	return &GreedyPolicy{
		qTable: qTable,
		rand:   rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
	}
}

func (g *GreedyPolicy) NextAction(_ int, state types.State, actions []types.Action) (types.Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	stateHash := state.Hash()
	if !g.qTable.HasState(stateHash) {
		return actions[g.rand.Intn(len(actions))], true
	}
	best := ""
	bestVal := 0.0
	var bestAction types.Action
	for _, a := range actions {
		aHash := a.Hash()
		val := g.qTable.Get(stateHash, aHash, 0)
		if best == "" || val > bestVal {
			best, bestVal, bestAction = aHash, val, a
		}
	}
	return bestAction, true
}

func (g *GreedyPolicy) Update(_ int, _ types.State, _ types.Action, _ *types.Outcome) {}

func (g *GreedyPolicy) UpdateIteration(_ int, _ *types.Trace) {}

func (g *GreedyPolicy) Reset() {}

func (g *GreedyPolicy) Record(path string) error {
	return g.qTable.Record(path)
}
