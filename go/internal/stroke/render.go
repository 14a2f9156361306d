package stroke

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/vector"
)

const (
	// CanvasSize is the logical edge length strokes are captured in.
	CanvasSize = 500
	// LineWidth is the pen width used when replaying strokes.
	LineWidth = 6
	capSides  = 16
)

// Render rasterises the canvas onto a white square of size pixels.
func (c *Canvas) Render(size int) (*image.RGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid canvas size %d", size)
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	scale := float32(size) / CanvasSize
	half := float32(LineWidth) * scale / 2

	for _, s := range c.strokes {
		if len(s.PathData) < 2 {
			continue
		}
		col, err := ParseHex(s.Color)
		if err != nil {
			return nil, fmt.Errorf("stroke %s: %w", s.ID, err)
		}

		z := vector.NewRasterizer(size, size)
		for i, p := range s.PathData {
			x, y := float32(p.X)*scale, float32(p.Y)*scale
			addDisc(z, x, y, half)
			if i > 0 {
				prev := s.PathData[i-1]
				addSegment(z, float32(prev.X)*scale, float32(prev.Y)*scale, x, y, half)
			}
		}
		z.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{})
	}
	return dst, nil
}

// PNG renders the canvas and encodes it.
func (c *Canvas) PNG(size int) ([]byte, error) {
	img, err := c.Render(size)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseHex parses a #rrggbb color.
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// addSegment and addDisc share one winding direction so overlapping
// sub-paths accumulate coverage instead of cancelling.
func addSegment(z *vector.Rasterizer, x0, y0, x1, y1, half float32) {
	dx, dy := x1-x0, y1-y0
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*half, dx/l*half
	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
}

func addDisc(z *vector.Rasterizer, cx, cy, r float32) {
	for i := 0; i <= capSides; i++ {
		a := -2 * math.Pi * float64(i) / capSides
		x := cx + r*float32(math.Cos(a))
		y := cy + r*float32(math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
			continue
		}
		z.LineTo(x, y)
	}
	z.ClosePath()
}
