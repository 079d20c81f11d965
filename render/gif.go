package render

import (
	"errors"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"path/filepath"
)

var ErrNoFrames = errors.New("no frames to encode")

// WriteGIF encodes frames as an animated GIF, delay is per frame in 100ths of a second
func WriteGIF(w io.Writer, frames []*image.RGBA, delay int) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	anim := &gif.GIF{
		Image: make([]*image.Paletted, len(frames)),
		Delay: make([]int, len(frames)),
	}
	for i, frame := range frames {
		bounds := frame.Bounds()
		paletted := image.NewPaletted(bounds, palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, bounds, frame, bounds.Min)
		anim.Image[i] = paletted
		anim.Delay[i] = delay
	}
	return gif.EncodeAll(w, anim)
}

// SaveGIF writes frames to path, creating parent directories
func SaveGIF(path string, frames []*image.RGBA, delay int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteGIF(f, frames, delay); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
