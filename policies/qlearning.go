package policies

import (
	"time"

	"github.com/zeu5/maternal-rl/types"
	"golang.org/x/exp/rand"
)

// QLearningPolicy is an epsilon-greedy tabular Q-learning policy
type QLearningPolicy struct {
	qTable  *QTable
	alpha   float64
	gamma   float64
	epsilon float64
	rand    *rand.Rand
}

var _ types.Policy = &QLearningPolicy{}

func NewQLearningPolicy(alpha, gamma, epsilon float64) *QLearningPolicy {
	return NewQLearningPolicyWithSeed(alpha, gamma, epsilon, uint64(time.Now().UnixNano()))
}

func NewQLearningPolicyWithSeed(alpha, gamma, epsilon float64, seed uint64) *QLearningPolicy {
	return &QLearningPolicy{
		qTable:  NewQTable(),
		alpha:   alpha,
		gamma:   gamma,
		epsilon: epsilon,
		rand:    rand.New(rand.NewSource(seed)),
	}
}

// QTable exposes the learnt values
func (q *QLearningPolicy) QTable() *QTable {
	return q.qTable
}

func (q *QLearningPolicy) Reset() {
	q.qTable = NewQTable()
}

func (q *QLearningPolicy) Record(path string) error {
	return q.qTable.Record(path)
}

func (q *QLearningPolicy) NextAction(step int, state types.State, actions []types.Action) (types.Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	if q.rand.Float64() < q.epsilon {
		return actions[q.rand.Intn(len(actions))], true
	}

	actionsMap := make(map[string]types.Action)
	actionKeys := make([]string, len(actions))
	for i, val := range q.rand.Perm(len(actions)) {
		aKey := actions[val].Hash()
		actionKeys[i] = aKey
		actionsMap[aKey] = actions[val]
	}
	maxAction, _ := q.qTable.MaxAmong(state.Hash(), actionKeys, 0)
	if maxAction == "" {
		return nil, false
	}
	return actionsMap[maxAction], true
}

// Update applies Q(s,a) <- (1-alpha)Q(s,a) + alpha(r + gamma max Q(s')).
// Terminal transitions do not bootstrap.
func (q *QLearningPolicy) Update(step int, state types.State, action types.Action, outcome *types.Outcome) {
	stateHash := state.Hash()
	actionHash := action.Hash()

	nextVal := 0.0
	if !outcome.Done() {
		_, nextVal = q.qTable.Max(outcome.Next.Hash(), 0)
	}
	curVal := q.qTable.Get(stateHash, actionHash, 0)
	newVal := (1-q.alpha)*curVal + q.alpha*(outcome.Reward+q.gamma*nextVal)
	q.qTable.Set(stateHash, actionHash, newVal)
}

func (q *QLearningPolicy) UpdateIteration(_ int, _ *types.Trace) {}
