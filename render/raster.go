package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/zeu5/maternal-rl/maternal"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

type RasterConfig struct {
	Width  int
	Height int
	// MaxFrames bounds the retained frames, oldest dropped first. 0 keeps only the last frame
	MaxFrames int
}

func DefaultRasterConfig() RasterConfig {
	return RasterConfig{
		Width:     480,
		Height:    320,
		MaxFrames: 0,
	}
}

var severityColors = map[maternal.Severity]color.Color{
	maternal.SeverityNormal:   color.RGBA{R: 46, G: 139, B: 87, A: 255},
	maternal.SeverityMild:     color.RGBA{R: 230, G: 160, B: 30, A: 255},
	maternal.SeverityCritical: color.RGBA{R: 200, G: 30, B: 45, A: 255},
}

// Raster draws each scene as a bar chart of the normalized vitals into an
// RGBA image, colored by severity band
type Raster struct {
	config RasterConfig
	frames []*image.RGBA
}

var _ Renderer = &Raster{}

func NewRaster(config RasterConfig) *Raster {
	if config.Width <= 0 || config.Height <= 0 {
		d := DefaultRasterConfig()
		config.Width, config.Height = d.Width, d.Height
	}
	return &Raster{
		config: config,
		frames: make([]*image.RGBA, 0),
	}
}

// SetMaxFrames changes how many frames are retained, 0 keeps only the last one
func (r *Raster) SetMaxFrames(n int) {
	r.config.MaxFrames = n
}

func (r *Raster) Render(s *maternal.Scene) error {
	frame, err := r.Draw(s)
	if err != nil {
		return err
	}
	r.frames = append(r.frames, frame)
	limit := r.config.MaxFrames
	if limit <= 0 {
		limit = 1
	}
	if len(r.frames) > limit {
		r.frames = r.frames[len(r.frames)-limit:]
	}
	return nil
}

// Draw renders the scene into a new image without retaining it
func (r *Raster) Draw(s *maternal.Scene) (*image.RGBA, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Step %d/%d  %s  %s", s.Step, s.MaxSteps, s.Severity, s.LastAction)
	p.Y.Min = 0
	p.Y.Max = 1
	p.Y.Label.Text = "normalized"

	bars, err := plotter.NewBarChart(plotter.Values(normalized(s.Vitals)), vg.Points(40))
	if err != nil {
		return nil, fmt.Errorf("error creating bar chart: %w", err)
	}
	bars.Color = severityColors[s.Severity]
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(vitalLabels...)

	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))
	c := vgimg.NewWith(vgimg.UseImage(img))
	p.Draw(draw.New(c))
	return img, nil
}

// Last returns the most recent frame, nil before the first Render
func (r *Raster) Last() *image.RGBA {
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

func (r *Raster) Frames() []*image.RGBA {
	return r.frames
}

func (r *Raster) Close() error {
	r.frames = r.frames[:0]
	return nil
}
