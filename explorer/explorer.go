package explorer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeu5/maternal-rl/policies"
	"github.com/zeu5/maternal-rl/recorder"
	"github.com/zeu5/maternal-rl/types"
)

// Explorer browses a recorded q table alongside the episodes recorded during training
type Explorer struct {
	PolicyFile string
	TracesFile string

	QTable *policies.QTable
	Traces []*types.EpisodeRecord

	StateMap map[string]*State
}

// Create an explorer of q tables and trace
func NewExplorer(policyFile string, tracesFile string) (*Explorer, error) {
	qTable, err := policies.LoadQTable(policyFile)
	if err != nil {
		return nil, err
	}
	traces, err := readTraces(tracesFile)
	if err != nil {
		return nil, err
	}
	e := newExplorer(qTable, traces)
	e.PolicyFile = policyFile
	e.TracesFile = tracesFile
	return e, nil
}

// NewRedisExplorer reads the traces of a comparison run from redis instead of a file.
// A non-empty experiment keeps only the episodes of that experiment.
func NewRedisExplorer(ctx context.Context, policyFile string, config recorder.RedisConfig, runID, experiment string) (*Explorer, error) {
	qTable, err := policies.LoadQTable(policyFile)
	if err != nil {
		return nil, err
	}
	rec, err := recorder.NewRedisRecorder(ctx, config)
	if err != nil {
		return nil, err
	}
	defer rec.Close()

	episodes, err := rec.Episodes(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("reading traces of run %s: %w", runID, err)
	}
	traces := make([]*types.EpisodeRecord, 0, len(episodes))
	for _, ep := range episodes {
		if experiment == "" || ep.Experiment == experiment {
			traces = append(traces, ep)
		}
	}
	e := newExplorer(qTable, traces)
	e.PolicyFile = policyFile
	e.TracesFile = rec.Key(runID)
	return e, nil
}

func newExplorer(qTable *policies.QTable, traces []*types.EpisodeRecord) *Explorer {
	e := &Explorer{
		QTable:   qTable,
		Traces:   traces,
		StateMap: make(map[string]*State),
	}
	for _, t := range e.Traces {
		for _, s := range t.Steps {
			state, ok := e.StateMap[s.State]
			if !ok {
				state = newState(s.State)
				e.StateMap[s.State] = state
			}
			state.add(s)
		}
	}
	return e
}

// readTraces reads the JSONL files written by recorder.FileRecorder
func readTraces(path string) ([]*types.EpisodeRecord, error) {
	traces := make([]*types.EpisodeRecord, 0)
	file, err := os.Open(path)
	if err != nil {
		return traces, fmt.Errorf("error reading file: %s", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	maxTraceSize := 5 * 1024 * 1024
	scanner.Buffer(make([]byte, maxTraceSize), maxTraceSize)
	for scanner.Scan() {
		bs := scanner.Bytes()
		if len(bs) == 0 {
			continue
		}
		if len(bs) >= maxTraceSize {
			return traces, errors.New("error trace too big")
		}
		t := &types.EpisodeRecord{}
		if err := json.Unmarshal(bs, t); err != nil {
			return traces, fmt.Errorf("error reading file contents: %s", err)
		}
		traces = append(traces, t)
	}
	if err := scanner.Err(); err != nil {
		return traces, fmt.Errorf("failed to read traces: %s", err)
	}
	return traces, nil
}

// Example invocations
//
//	maternal-rl explore results/policies/qlearning_0.json results/traces/qlearning_0.jsonl
//	maternal-rl explore --redis-addr localhost:6379 --experiment qlearning results/policies/qlearning_0.json <run id>
func ExploreCommand() *cobra.Command {
	var redisAddr, redisKey, experiment string

	cmd := &cobra.Command{
		Use:   "explore [policy_output] [trace_output | run_id]",
		Short: "Explore the choices of a q-table and the recorded traces",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var exp *Explorer
			var err error
			if redisAddr != "" {
				exp, err = NewRedisExplorer(cmd.Context(), args[0], recorder.RedisConfig{Addr: redisAddr, Key: redisKey}, args[1], experiment)
			} else {
				exp, err = NewExplorer(args[0], args[1])
			}
			if err != nil {
				return err
			}

			exp.Interact(cmd.InOrStdin(), cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Read the traces of the run id from this redis server")
	cmd.Flags().StringVar(&redisKey, "redis-key", "", "Key prefix the traces were recorded under")
	cmd.Flags().StringVar(&experiment, "experiment", "", "Only explore the episodes of this experiment")
	return cmd
}
