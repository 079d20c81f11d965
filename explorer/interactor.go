package explorer

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Interact runs the main interactive loop until quit or end of input
func (e *Explorer) Interact(in io.Reader, out io.Writer) {
	fmt.Fprintf(out, "%s", e.header())
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "%s", e.prompt())

		optionS, err := readLine(reader)
		if err != nil {
			return
		}
		option, err := strconv.Atoi(optionS)
		if err != nil {
			fmt.Fprintln(out, "Invalid input! Try again")
			continue
		}
		fmt.Fprintln(out, "------------------------------------")
		switch option {
		case 1:
			fmt.Fprintf(out, "%s", e.getInitialStates())
		case 2:
			fmt.Fprintf(out, "Enter the state key: ")
			stateK, err := readLine(reader)
			if err != nil {
				return
			}
			fmt.Fprintf(out, "%s", e.getQValues(stateK))
		case 3:
			fmt.Fprintf(out, "Enter the state key: ")
			stateK, err := readLine(reader)
			if err != nil {
				return
			}
			fmt.Fprintf(out, "%s", e.getFullState(stateK))
		case 4:
			fmt.Fprintf(out, "Enter trace number (1-%d): ", len(e.Traces))
			traceNoS, err := readLine(reader)
			if err != nil {
				return
			}
			traceNo, err := strconv.Atoi(traceNoS)
			if err != nil {
				fmt.Fprintln(out, "Invalid input! Not a number. Try again")
				continue
			}
			if traceNo < 1 || traceNo > len(e.Traces) {
				fmt.Fprintf(out, "Invalid input! Should be between (1-%d). Try again\n", len(e.Traces))
				continue
			}
			if !e.interactTrace(traceNo-1, reader, out) {
				return
			}
		case 5:
			fmt.Fprintf(out, "%s", e.getPolicy())
		case 6:
			fmt.Fprintln(out, "Quitting! Thank you")
			return
		default:
			fmt.Fprintln(out, "Wrong choice! Try again!")
		}
	}
}

// readLine returns the next trimmed line, failing only when input is exhausted
func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (e *Explorer) getFullState(stateKey string) string {
	state, ok := e.StateMap[stateKey]
	if !ok {
		return "No such state\n"
	}
	return fmt.Sprintf("State Key: %s\n%s", stateKey, state.String())
}

func (e *Explorer) getQValues(state string) string {
	values, ok := e.QTable.GetAll(state)
	if !ok {
		return "No such state in the q table\n"
	}
	if len(values) == 0 {
		return "No values in the q table for the corresponding state\n"
	}
	actions := make([]string, 0, len(values))
	for a := range values {
		actions = append(actions, a)
	}
	sort.Strings(actions)
	out := "Q values are:\n"
	for _, a := range actions {
		out += fmt.Sprintf("%s: %f\n", a, values[a])
	}
	return out
}

func (e *Explorer) getInitialStates() string {
	initialStates := make(map[string]int)
	for _, t := range e.Traces {
		if len(t.Steps) == 0 {
			continue
		}
		initialStates[t.Steps[0].State] += 1
	}
	keys := make([]string, 0, len(initialStates))
	for k := range initialStates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := "Initial States are:\n"
	for _, k := range keys {
		out += fmt.Sprintf("%s: %d\n", k, initialStates[k])
	}
	return out
}

// getPolicy lists the greedy action of every state in the q table
func (e *Explorer) getPolicy() string {
	out := "Greedy policy:\n"
	for _, s := range e.QTable.States() {
		action, val := e.QTable.Max(s, 0)
		out += fmt.Sprintf("%s -> %s (%.2f)\n", s, action, val)
	}
	return out
}

func (e *Explorer) header() string {
	return fmt.Sprintf(`
Welcome to the q table explorer!
%d states in the q table, %d recorded episodes
	`, len(e.QTable.States()), len(e.Traces))
}

func (e *Explorer) prompt() string {
	return `
------------------------------------
Select one of the following options:
1. Show initial states
2. Show QValues
3. Show full state
4. Explore a trace
5. Show greedy policy
6. Quit
Enter your choice: `
}

func (e *Explorer) tracePrompt() string {
	return `
---------------------------------------------
Step(s) QValues(d) Prev(p) Last(l) Quit(q): `
}

// interactTrace steps through one episode, false when input ran out
func (e *Explorer) interactTrace(traceNo int, reader *bufio.Reader, out io.Writer) bool {
	stepCount := 0
	trace := e.Traces[traceNo]
	if len(trace.Steps) == 0 {
		fmt.Fprintln(out, "Empty trace!")
		return true
	}
	fmt.Fprintln(out, "---------------------------------------------")
	for {
		step := trace.Steps[stepCount]
		fmt.Fprintf(out, "For step %d of %d\n%s", stepCount+1, len(trace.Steps), stepString(step))
		fmt.Fprintf(out, "%s", e.tracePrompt())
		option, err := readLine(reader)
		if err != nil {
			return false
		}
		fmt.Fprintln(out, "---------------------------------------------")
		switch option {
		case "s":
			if stepCount == len(trace.Steps)-1 {
				fmt.Fprintln(out, "No more steps!")
				continue
			}
			stepCount += 1
		case "d":
			fmt.Fprintf(out, "%s", e.getQValues(step.State))
		case "p":
			if stepCount == 0 {
				fmt.Fprintln(out, "No more steps!")
				continue
			}
			stepCount -= 1
		case "l":
			stepCount = len(trace.Steps) - 1
		case "q":
			return true
		default:
			fmt.Fprintln(out, "Invalid option! Try again.")
		}
	}
}
