// Package render displays maternal environment scenes.
//
// Three backends match the environment's render modes: Headless for no
// display, Terminal for "human" and Raster for "rgb_array". Renderers are
// created by the caller and injected into the environment, which never
// closes them.
package render

import (
	"fmt"
	"io"

	"github.com/zeu5/maternal-rl/maternal"
)

// Renderer is a maternal.Renderer owning resources that must be released
type Renderer interface {
	maternal.Renderer
	Close() error
}

// New returns the renderer matching mode. Terminal output goes to w.
func New(mode maternal.RenderMode, w io.Writer) (Renderer, error) {
	switch mode {
	case maternal.RenderNone:
		return NewHeadless(), nil
	case maternal.RenderHuman:
		return NewTerminal(w), nil
	case maternal.RenderRGBArray:
		return NewRaster(DefaultRasterConfig()), nil
	}
	return nil, fmt.Errorf("%w: %q", maternal.ErrUnknownRenderMode, mode)
}

// normalized maps every vital to [0, 1] over its domain, in observation order
func normalized(v maternal.VitalSigns) []float64 {
	return []float64{
		(v.HeartRate - maternal.HeartRateMin) / (maternal.HeartRateMax - maternal.HeartRateMin),
		(v.BloodPressure - maternal.BloodPressureMin) / (maternal.BloodPressureMax - maternal.BloodPressureMin),
		float64(v.RiskFlagA) / (maternal.RiskFlagLevels - 1),
		(v.OxygenSaturation - maternal.OxygenSaturationMin) / (maternal.OxygenSaturationMax - maternal.OxygenSaturationMin),
		float64(v.RiskFlagB) / (maternal.RiskFlagLevels - 1),
	}
}

var vitalLabels = []string{"HR", "BP", "Risk A", "SpO2", "Risk B"}

// Headless discards scenes
type Headless struct{}

var _ Renderer = &Headless{}

func NewHeadless() *Headless {
	return &Headless{}
}

func (h *Headless) Render(_ *maternal.Scene) error {
	return nil
}

func (h *Headless) Close() error {
	return nil
}
