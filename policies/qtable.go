package policies

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/zeu5/maternal-rl/util"
)

// QTable maps state hashes to action hashes to values
type QTable struct {
	table map[string]map[string]float64
}

func NewQTable() *QTable {
	return &QTable{
		table: make(map[string]map[string]float64),
	}
}

// Get returns the value of (state, action), initializing it to def when missing
func (q *QTable) Get(state, action string, def float64) float64 {
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
	}
	if _, ok := q.table[state][action]; !ok {
		q.table[state][action] = def
	}
	return q.table[state][action]
}

func (q *QTable) Set(state, action string, val float64) {
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
	}
	q.table[state][action] = val
}

// GetAll returns a copy of the action values of state
func (q *QTable) GetAll(state string) (map[string]float64, bool) {
	actions, ok := q.table[state]
	if !ok {
		return nil, false
	}
	out := make(map[string]float64, len(actions))
	for a, v := range actions {
		out[a] = v
	}
	return out, true
}

func (q *QTable) HasState(state string) bool {
	_, ok := q.table[state]
	return ok
}

// States returns the known states in sorted order
func (q *QTable) States() []string {
	states := make([]string, 0, len(q.table))
	for s := range q.table {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}

// Max returns the best known action of state and its value, def if none is known.
// Ties are broken by action hash so results are deterministic.
func (q *QTable) Max(state string, def float64) (string, float64) {
	actions, ok := q.table[state]
	if !ok || len(actions) == 0 {
		return "", def
	}
	keys := make([]string, 0, len(actions))
	for a := range actions {
		keys = append(keys, a)
	}
	sort.Strings(keys)
	maxAction := ""
	maxVal := math.Inf(-1)
	for _, a := range keys {
		if val := actions[a]; val > maxVal {
			maxAction = a
			maxVal = val
		}
	}
	return maxAction, maxVal
}

// MaxAmong returns the best action among the given ones, initializing missing entries to def.
// Ties go to the earliest action in the slice.
func (q *QTable) MaxAmong(state string, actions []string, def float64) (string, float64) {
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
	}
	maxAction := ""
	maxVal := math.Inf(-1)
	for _, a := range actions {
		if _, ok := q.table[state][a]; !ok {
			q.table[state][a] = def
		}
		val := q.table[state][a]
		if val > maxVal {
			maxAction = a
			maxVal = val
		}
	}
	return maxAction, maxVal
}

func (q *QTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.table)
}

func (q *QTable) UnmarshalJSON(data []byte) error {
	table := make(map[string]map[string]float64)
	if err := json.Unmarshal(data, &table); err != nil {
		return err
	}
	q.table = table
	return nil
}

// Record writes the table as JSON, creating parent directories
func (q *QTable) Record(path string) error {
	return util.WriteJSON(path, q)
}

// LoadQTable reads a table written by Record
func LoadQTable(path string) (*QTable, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	q := NewQTable()
	if err := json.Unmarshal(bs, q); err != nil {
		return nil, fmt.Errorf("decoding q-table %s: %w", path, err)
	}
	return q, nil
}
