package policies

import (
	"math"
	"time"

	"github.com/zeu5/maternal-rl/types"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// SoftMaxPolicy samples actions with probability proportional to exp(Q/temperature)
// and learns Q with the same update as QLearningPolicy
type SoftMaxPolicy struct {
	qTable      *QTable
	alpha       float64
	gamma       float64
	temperature float64
	src         rand.Source
}

var _ types.Policy = &SoftMaxPolicy{}

func NewSoftMaxPolicy(alpha, gamma, temperature float64) *SoftMaxPolicy {
	return NewSoftMaxPolicyWithSeed(alpha, gamma, temperature, uint64(time.Now().UnixNano()))
}

func NewSoftMaxPolicyWithSeed(alpha, gamma, temperature float64, seed uint64) *SoftMaxPolicy {
	if temperature <= 0 {
		temperature = 1
	}
	return &SoftMaxPolicy{
		qTable:      NewQTable(),
		alpha:       alpha,
		gamma:       gamma,
		temperature: temperature,
		src:         rand.NewSource(seed),
	}
}

func (s *SoftMaxPolicy) QTable() *QTable {
	return s.qTable
}

func (s *SoftMaxPolicy) Reset() {
	s.qTable = NewQTable()
}

func (s *SoftMaxPolicy) Record(path string) error {
	return s.qTable.Record(path)
}

func (s *SoftMaxPolicy) UpdateIteration(_ int, _ *types.Trace) {}

func (s *SoftMaxPolicy) NextAction(step int, state types.State, actions []types.Action) (types.Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	stateHash := state.Hash()

	vals := make([]float64, len(actions))
	maxVal := math.Inf(-1)
	for i, action := range actions {
		vals[i] = s.qTable.Get(stateHash, action.Hash(), 0) / s.temperature
		if vals[i] > maxVal {
			maxVal = vals[i]
		}
	}
	// shift by the max so exp does not overflow
	weights := make([]float64, len(actions))
	for i, v := range vals {
		weights[i] = math.Exp(v - maxVal)
	}
	i, ok := sampleuv.NewWeighted(weights, s.src).Take()
	if !ok {
		return nil, false
	}
	return actions[i], true
}

func (s *SoftMaxPolicy) Update(step int, state types.State, action types.Action, outcome *types.Outcome) {
	stateHash := state.Hash()
	actionHash := action.Hash()

	nextVal := 0.0
	if !outcome.Done() {
		_, nextVal = s.qTable.Max(outcome.Next.Hash(), 0)
	}
	curVal := s.qTable.Get(stateHash, actionHash, 0)
	s.qTable.Set(stateHash, actionHash, (1-s.alpha)*curVal+s.alpha*(outcome.Reward+s.gamma*nextVal))
}
