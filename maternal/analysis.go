package maternal

import (
	"log/slog"
	"path"
	"strconv"

	"github.com/zeu5/maternal-rl/types"
	"github.com/zeu5/maternal-rl/util"
)

// DecisionDataSet counts the interventions chosen in each severity band
type DecisionDataSet struct {
	Counts  map[Severity]map[Intervention]int `json:"counts"`
	Optimal int                               `json:"optimal"`
	Total   int                               `json:"total"`
}

// OptimalRate is the fraction of steps where a highest-reward intervention was chosen
func (d *DecisionDataSet) OptimalRate() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Optimal) / float64(d.Total)
}

// Preferred returns the most chosen intervention of a band, false if the band was never seen
func (d *DecisionDataSet) Preferred(s Severity) (Intervention, bool) {
	counts, ok := d.Counts[s]
	if !ok {
		return 0, false
	}
	best, bestCount := Monitor, -1
	for _, i := range Interventions {
		if counts[i] > bestCount {
			best, bestCount = i, counts[i]
		}
	}
	return best, bestCount > 0
}

// DecisionAnalyzer tracks which interventions a policy picks per severity band
type DecisionAnalyzer struct {
	ds *DecisionDataSet
}

var _ types.Analyzer = &DecisionAnalyzer{}

func NewDecisionAnalyzer() *DecisionAnalyzer {
	d := &DecisionAnalyzer{}
	d.Reset()
	return d
}

func (d *DecisionAnalyzer) Analyze(_ int, _ int, _ string, trace *types.Trace) {
	for i := 0; i < trace.Len(); i++ {
		state, action, _, _ := trace.Get(i)
		vs, ok := state.(*VitalsState)
		if !ok {
			continue
		}
		intervention, ok := action.(Intervention)
		if !ok {
			continue
		}
		severity := vs.Vitals.Severity()
		if _, ok := d.ds.Counts[severity]; !ok {
			d.ds.Counts[severity] = make(map[Intervention]int)
		}
		d.ds.Counts[severity][intervention] += 1
		d.ds.Total += 1
		for _, best := range BestInterventions(vs.Vitals) {
			if best == intervention {
				d.ds.Optimal += 1
				break
			}
		}
	}
}

func (d *DecisionAnalyzer) DataSet() types.DataSet {
	return d.ds
}

func (d *DecisionAnalyzer) Reset() {
	d.ds = &DecisionDataSet{
		Counts: make(map[Severity]map[Intervention]int),
	}
}

// DecisionComparator logs the preferred intervention per band of each
// experiment and writes the counts to <savePath>/<run>_decisions.json
func DecisionComparator(savePath string, logger *slog.Logger) types.Comparator {
	return func(run int, names []string, ds []types.DataSet) error {
		out := make(map[string]*DecisionDataSet)
		for i, name := range names {
			d := ds[i].(*DecisionDataSet)
			out[name] = d
			attrs := []any{"experiment", name, "run", run, "optimal_rate", d.OptimalRate()}
			for _, s := range Severities {
				if pref, ok := d.Preferred(s); ok {
					attrs = append(attrs, s.String(), pref.String())
				}
			}
			logger.Info("decisions", attrs...)
		}
		return util.WriteJSON(path.Join(savePath, strconv.Itoa(run)+"_decisions.json"), out)
	}
}
