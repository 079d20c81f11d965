package explorer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeu5/maternal-rl/types"
)

var observationLabels = []string{"HR", "BP", "Risk A", "SpO2", "Risk B"}

// State aggregates every visit to a state hash across the recorded traces
type State struct {
	Key          string
	Visits       int
	TotalReward  float64
	ActionCounts map[string]int

	observationSum []float64
	observations   int
}

func newState(key string) *State {
	return &State{
		Key:          key,
		ActionCounts: make(map[string]int),
	}
}

func (s *State) add(step types.StepRecord) {
	s.Visits += 1
	s.TotalReward += step.Reward
	s.ActionCounts[step.Action] += 1
	if len(step.Observation) == 0 {
		return
	}
	if s.observationSum == nil {
		s.observationSum = make([]float64, len(step.Observation))
	}
	if len(step.Observation) != len(s.observationSum) {
		return
	}
	for i, v := range step.Observation {
		s.observationSum[i] += v
	}
	s.observations += 1
}

// MeanObservation is the average observation recorded at the state, nil when none was recorded
func (s *State) MeanObservation() []float64 {
	if s.observations == 0 {
		return nil
	}
	out := make([]float64, len(s.observationSum))
	for i, v := range s.observationSum {
		out[i] = v / float64(s.observations)
	}
	return out
}

func (s *State) String() string {
	out := fmt.Sprintf("Visits: %d\n", s.Visits)
	if s.Visits > 0 {
		out += fmt.Sprintf("Average reward: %.2f\n", s.TotalReward/float64(s.Visits))
	}
	if mean := s.MeanObservation(); mean != nil {
		parts := make([]string, len(mean))
		for i, v := range mean {
			label := fmt.Sprintf("x%d", i)
			if i < len(observationLabels) {
				label = observationLabels[i]
			}
			parts[i] = fmt.Sprintf("%s=%.1f", label, v)
		}
		out += fmt.Sprintf("Mean observation: %s\n", strings.Join(parts, ", "))
	}
	actions := make([]string, 0, len(s.ActionCounts))
	for a := range s.ActionCounts {
		actions = append(actions, a)
	}
	sort.Strings(actions)
	out += "Actions taken:\n"
	for _, a := range actions {
		out += fmt.Sprintf("  %s: %d\n", a, s.ActionCounts[a])
	}
	return out
}

// stepString describes one recorded transition
func stepString(step types.StepRecord) string {
	obs := make([]string, len(step.Observation))
	for i, v := range step.Observation {
		obs[i] = fmt.Sprintf("%.1f", v)
	}
	return fmt.Sprintf("State: %s [%s]\nAction: %s\nReward: %+.0f\nDone: %t\n",
		step.State, strings.Join(obs, " "), step.Action, step.Reward, step.Done)
}
