package types

import (
	"time"

	"golang.org/x/exp/rand"
)

type Policy interface {
	// Called at the end of each episode with the full trace
	UpdateIteration(int, *Trace)
	// Picks the next action among the available ones, false to stop the episode
	NextAction(int, State, []Action) (Action, bool)
	// Called after every step
	Update(int, State, Action, *Outcome)
	// Forget everything learnt
	Reset()
	// Persist the policy to the given path
	Record(string) error
}

type RandomPolicy struct {
	rand *rand.Rand
}

var _ Policy = &RandomPolicy{}

func NewRandomPolicy() *RandomPolicy {
	return NewRandomPolicyWithSeed(uint64(time.Now().UnixNano()))
}

func NewRandomPolicyWithSeed(seed uint64) *RandomPolicy {
	return &RandomPolicy{
		rand: rand.New(rand.NewSource(seed)),
	}
}

func (r *RandomPolicy) Reset() {

}

func (r *RandomPolicy) UpdateIteration(_ int, _ *Trace) {

}

func (r *RandomPolicy) NextAction(step int, state State, actions []Action) (Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	i := r.rand.Intn(len(actions))
	return actions[i], true
}

func (r *RandomPolicy) Update(_ int, _ State, _ Action, _ *Outcome) {}

func (r *RandomPolicy) Record(_ string) error {
	return nil
}
