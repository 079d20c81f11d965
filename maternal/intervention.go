package maternal

import (
	"fmt"

	"github.com/zeu5/maternal-rl/types"
)

// Intervention is one of the five clinical actions available at every step
type Intervention int

const (
	// Monitor is the low-intervention choice
	Monitor Intervention = iota
	Escalate
	ModerateTreatment
	SupportiveCare
	EmergencyTreatment
)

// NumInterventions is the size of the action space
const NumInterventions = 5

var (
	// Interventions lists all actions in index order
	Interventions = []Intervention{Monitor, Escalate, ModerateTreatment, SupportiveCare, EmergencyTreatment}

	allActions = func() []types.Action {
		actions := make([]types.Action, len(Interventions))
		for i, in := range Interventions {
			actions[i] = in
		}
		return actions
	}()
)

var _ types.Action = Monitor

// Valid reports whether i is inside the action space
func (i Intervention) Valid() bool {
	return i >= Monitor && i <= EmergencyTreatment
}

func (i Intervention) String() string {
	switch i {
	case Monitor:
		return "monitor"
	case Escalate:
		return "escalate"
	case ModerateTreatment:
		return "moderate-treat"
	case SupportiveCare:
		return "support"
	case EmergencyTreatment:
		return "emergency-treat"
	}
	return fmt.Sprintf("intervention(%d)", int(i))
}

// Hash implements types.Action
func (i Intervention) Hash() string {
	return i.String()
}

// MarshalText encodes the intervention by name so it can key JSON maps
func (i Intervention) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// ParseIntervention converts a raw action index, rejecting anything outside 0..4
func ParseIntervention(action int) (Intervention, error) {
	i := Intervention(action)
	if !i.Valid() {
		return 0, fmt.Errorf("%w: %d is not in [0, %d)", ErrInvalidAction, action, NumInterventions)
	}
	return i, nil
}

// ParseInterventionName converts an intervention name as printed by String
func ParseInterventionName(name string) (Intervention, error) {
	for _, i := range Interventions {
		if i.String() == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown intervention %q", ErrInvalidAction, name)
}

// Reward scores an intervention against the vitals it was applied to.
// Monitor, Escalate and EmergencyTreatment branch on the critical band only,
// ModerateTreatment and SupportiveCare on the mild band only.
func Reward(v VitalSigns, i Intervention) (float64, error) {
	switch i {
	case Monitor:
		if v.Critical() {
			return -2, nil
		}
		return 2, nil
	case Escalate:
		if v.Critical() {
			return 10, nil
		}
		return -5, nil
	case ModerateTreatment:
		if v.Mild() {
			return 5, nil
		}
		return -2, nil
	case SupportiveCare:
		if v.Mild() {
			return 7, nil
		}
		return 1, nil
	case EmergencyTreatment:
		if v.Critical() {
			return 10, nil
		}
		return -10, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidAction, int(i))
}

// BestInterventions returns the interventions with the highest reward for v,
// in index order
func BestInterventions(v VitalSigns) []Intervention {
	best := make([]Intervention, 0, 2)
	bestReward := 0.0
	for _, i := range Interventions {
		r, _ := Reward(v, i)
		switch {
		case len(best) == 0 || r > bestReward:
			best = append(best[:0], i)
			bestReward = r
		case r == bestReward:
			best = append(best, i)
		}
	}
	return best
}
