package types

import (
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/zeu5/maternal-rl/util"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// RewardDataSet holds the return and length of every episode of an experiment
type RewardDataSet struct {
	EpisodeRewards []float64
	EpisodeLengths []int
	Start          time.Time
	End            time.Time
}

// TrainingMetrics summarizes a RewardDataSet
type TrainingMetrics struct {
	TotalEpisodes  int     `json:"total_episodes"`
	AverageReward  float64 `json:"avg_reward"`
	RewardStdDev   float64 `json:"reward_stddev"`
	AverageSteps   float64 `json:"avg_steps"`
	FinalReward    float64 `json:"final_reward"`
	TotalTimeSecs  float64 `json:"total_time_seconds"`
	RewardPerStep  float64 `json:"reward_per_step"`
	TotalTimesteps int     `json:"total_timesteps"`
}

// Metrics computes the summary statistics. Empty datasets yield zero values.
func (r *RewardDataSet) Metrics() TrainingMetrics {
	m := TrainingMetrics{
		TotalEpisodes: len(r.EpisodeRewards),
		TotalTimeSecs: r.End.Sub(r.Start).Seconds(),
	}
	if m.TotalEpisodes == 0 {
		return m
	}
	lengths := make([]float64, len(r.EpisodeLengths))
	totalReward := 0.0
	for i, l := range r.EpisodeLengths {
		lengths[i] = float64(l)
		m.TotalTimesteps += l
	}
	for _, v := range r.EpisodeRewards {
		totalReward += v
	}
	m.AverageReward, m.RewardStdDev = stat.MeanStdDev(r.EpisodeRewards, nil)
	if m.TotalEpisodes == 1 {
		m.RewardStdDev = 0
	}
	m.AverageSteps = stat.Mean(lengths, nil)
	m.FinalReward = r.EpisodeRewards[len(r.EpisodeRewards)-1]
	if m.TotalTimesteps > 0 {
		m.RewardPerStep = totalReward / float64(m.TotalTimesteps)
	}
	return m
}

// RewardAnalyzer collects the return of every episode
type RewardAnalyzer struct {
	ds *RewardDataSet
}

var _ Analyzer = &RewardAnalyzer{}

func NewRewardAnalyzer() *RewardAnalyzer {
	r := &RewardAnalyzer{}
	r.Reset()
	return r
}

func (r *RewardAnalyzer) Analyze(_ int, _ int, _ string, t *Trace) {
	r.ds.EpisodeRewards = append(r.ds.EpisodeRewards, t.TotalReward())
	r.ds.EpisodeLengths = append(r.ds.EpisodeLengths, t.Len())
	r.ds.End = time.Now()
}

func (r *RewardAnalyzer) DataSet() DataSet {
	return r.ds
}

func (r *RewardAnalyzer) Reset() {
	now := time.Now()
	r.ds = &RewardDataSet{
		EpisodeRewards: make([]float64, 0),
		EpisodeLengths: make([]int, 0),
		Start:          now,
		End:            now,
	}
}

// RewardPlotComparator plots the return per episode of every experiment
// into <plotPath>/<run>_rewards.png
func RewardPlotComparator(plotPath string) Comparator {
	return func(run int, names []string, ds []DataSet) error {
		if err := util.EnsureDir(plotPath); err != nil {
			return err
		}
		p := plot.New()
		p.Title.Text = "Comparison"
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = "Episode reward"
		for i := 0; i < len(names); i++ {
			rewards := ds[i].(*RewardDataSet).EpisodeRewards
			points := make(plotter.XYs, len(rewards))
			for j, v := range rewards {
				points[j] = plotter.XY{
					X: float64(j),
					Y: v,
				}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(names[i], line)
		}
		return p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_rewards.png"))
	}
}

// MetricsComparator logs the training metrics of every experiment and
// writes them to <savePath>/<run>_metrics.json
func MetricsComparator(savePath string, logger *slog.Logger) Comparator {
	return func(run int, names []string, ds []DataSet) error {
		out := make(map[string]TrainingMetrics)
		for i, name := range names {
			m := ds[i].(*RewardDataSet).Metrics()
			out[name] = m
			logger.Info("training metrics",
				"experiment", name,
				"run", run,
				"avg_reward", fmt.Sprintf("%.2f", m.AverageReward),
				"avg_steps", fmt.Sprintf("%.2f", m.AverageSteps),
				"total_time", fmt.Sprintf("%.2fs", m.TotalTimeSecs),
				"total_episodes", m.TotalEpisodes,
				"final_reward", fmt.Sprintf("%.2f", m.FinalReward),
			)
		}
		return util.WriteJSON(path.Join(savePath, strconv.Itoa(run)+"_metrics.json"), out)
	}
}
