package render

import (
	"bytes"
	"image/gif"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/maternal-rl/maternal"
)

func criticalScene() *maternal.Scene {
	v := maternal.VitalSigns{HeartRate: 170, BloodPressure: 120, RiskFlagA: 2, OxygenSaturation: 95, RiskFlagB: 0}
	return &maternal.Scene{
		Step:       3,
		MaxSteps:   10,
		Vitals:     v,
		Severity:   v.Severity(),
		LastAction: maternal.Escalate,
		LastReward: 10,
	}
}

func TestNewByMode(t *testing.T) {
	r, err := New(maternal.RenderNone, nil)
	require.NoError(t, err)
	assert.IsType(t, &Headless{}, r)

	r, err = New(maternal.RenderHuman, &bytes.Buffer{})
	require.NoError(t, err)
	assert.IsType(t, &Terminal{}, r)

	r, err = New(maternal.RenderRGBArray, nil)
	require.NoError(t, err)
	assert.IsType(t, &Raster{}, r)

	_, err = New(maternal.RenderMode("vr"), nil)
	assert.ErrorIs(t, err, maternal.ErrUnknownRenderMode)
}

func TestNormalizedBounds(t *testing.T) {
	low := normalized(maternal.VitalSigns{HeartRate: 50, BloodPressure: 80, OxygenSaturation: 80})
	high := normalized(maternal.VitalSigns{HeartRate: 180, BloodPressure: 180, RiskFlagA: 2, OxygenSaturation: 100, RiskFlagB: 2})
	for i := range low {
		assert.InDelta(t, 0.0, low[i], 1e-9)
		assert.InDelta(t, 1.0, high[i], 1e-9)
	}
}

func TestPanel(t *testing.T) {
	s := criticalScene()
	panel := Panel(s)
	assert.Contains(t, panel, "Step 3/10")
	assert.Contains(t, panel, "severity=critical")
	assert.Contains(t, panel, "action=escalate")
	assert.Contains(t, panel, "170.0 bpm")
	assert.NotContains(t, panel, "terminated")
	assert.Len(t, strings.Split(strings.TrimSpace(panel), "\n"), 6)

	s.Terminated = true
	assert.Contains(t, Panel(s), "episode terminated")
}

func TestTerminalWritesPanel(t *testing.T) {
	out := &bytes.Buffer{}
	term := NewTerminal(out)
	require.NoError(t, term.Render(criticalScene()))
	assert.Contains(t, out.String(), "Step 3/10")
	require.NoError(t, term.Close())
}

func TestEnvironmentDrivesTerminal(t *testing.T) {
	out := &bytes.Buffer{}
	env, err := maternal.NewEnvironment(
		maternal.Config{MaxSteps: 2, RenderMode: maternal.RenderHuman},
		maternal.WithSeed(1),
		maternal.WithRenderer(NewTerminal(out)),
	)
	require.NoError(t, err)
	_, err = env.Step(maternal.Monitor)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Step 1/2")
}

func TestRasterRetainsFrames(t *testing.T) {
	r := NewRaster(RasterConfig{Width: 200, Height: 120, MaxFrames: 2})
	assert.Nil(t, r.Last())

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Render(criticalScene()))
	}
	assert.Len(t, r.Frames(), 2)
	last := r.Last()
	require.NotNil(t, last)
	assert.Equal(t, 200, last.Bounds().Dx())
	assert.Equal(t, 120, last.Bounds().Dy())

	require.NoError(t, r.Close())
	assert.Empty(t, r.Frames())
}

func TestRasterKeepsOnlyLastByDefault(t *testing.T) {
	r := NewRaster(DefaultRasterConfig())
	require.NoError(t, r.Render(criticalScene()))
	require.NoError(t, r.Render(criticalScene()))
	assert.Len(t, r.Frames(), 1)

	r.SetMaxFrames(3)
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Render(criticalScene()))
	}
	assert.Len(t, r.Frames(), 3)
}

func TestWriteGIF(t *testing.T) {
	r := NewRaster(RasterConfig{Width: 120, Height: 80, MaxFrames: 10})
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Render(criticalScene()))
	}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteGIF(buf, r.Frames(), 10))

	decoded, err := gif.DecodeAll(buf)
	require.NoError(t, err)
	assert.Len(t, decoded.Image, 3)
	assert.Equal(t, []int{10, 10, 10}, decoded.Delay)

	assert.ErrorIs(t, WriteGIF(buf, nil, 10), ErrNoFrames)
	require.NoError(t, SaveGIF(filepath.Join(t.TempDir(), "out", "episode.gif"), r.Frames(), 5))
}
