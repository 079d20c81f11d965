package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gosuri/uilive"
	"github.com/zeu5/maternal-rl/maternal"
)

const barWidth = 30

// Terminal redraws a live vital-sign panel in place after every scene
type Terminal struct {
	writer     *uilive.Writer
	frameDelay time.Duration
	lastFrame  time.Time
}

var _ Renderer = &Terminal{}

func NewTerminal(w io.Writer) *Terminal {
	writer := uilive.New()
	writer.Out = w
	return &Terminal{
		writer: writer,
	}
}

// SetFrameRate limits redraws to fps frames per second, 0 disables the limit
func (t *Terminal) SetFrameRate(fps int) {
	if fps <= 0 {
		t.frameDelay = 0
		return
	}
	t.frameDelay = time.Second / time.Duration(fps)
}

func (t *Terminal) Render(s *maternal.Scene) error {
	if t.frameDelay > 0 && !t.lastFrame.IsZero() {
		if wait := t.frameDelay - time.Since(t.lastFrame); wait > 0 {
			time.Sleep(wait)
		}
	}
	t.lastFrame = time.Now()

	fmt.Fprint(t.writer, Panel(s))
	return t.writer.Flush()
}

func (t *Terminal) Close() error {
	_, err := fmt.Fprintln(t.writer.Out)
	return err
}

// Panel is the text drawn by Terminal for a scene
func Panel(s *maternal.Scene) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d/%d  severity=%s  action=%s  reward=%+.0f\n",
		s.Step, s.MaxSteps, s.Severity, s.LastAction, s.LastReward)
	values := []string{
		fmt.Sprintf("%6.1f bpm", s.Vitals.HeartRate),
		fmt.Sprintf("%6.1f mmHg", s.Vitals.BloodPressure),
		fmt.Sprintf("%6d", s.Vitals.RiskFlagA),
		fmt.Sprintf("%6.1f %%", s.Vitals.OxygenSaturation),
		fmt.Sprintf("%6d", s.Vitals.RiskFlagB),
	}
	for i, n := range normalized(s.Vitals) {
		filled := int(n*barWidth + 0.5)
		if filled > barWidth {
			filled = barWidth
		}
		fmt.Fprintf(&b, "%-7s |%s%s| %s\n", vitalLabels[i], strings.Repeat("#", filled), strings.Repeat(".", barWidth-filled), values[i])
	}
	if s.Terminated {
		b.WriteString("episode terminated\n")
	}
	return b.String()
}
