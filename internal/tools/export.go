package tools

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// Cell size in pixels used when rasterising strokes.
const (
	cellWidth  = 8
	cellHeight = 16
)

// PNGExporter writes the stroke buffer as a transparent PNG into Dir.
type PNGExporter struct {
	Dir   string
	Clock Clock
}

func (e PNGExporter) Export(strokes []Stroke, bounds Rect) (string, error) {
	if bounds.W <= 0 || bounds.H <= 0 {
		return "", fmt.Errorf("empty canvas %dx%d", bounds.W, bounds.H)
	}
	clock := e.Clock
	if clock == nil {
		clock = SystemClock
	}
	dir := e.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir export dir: %w", err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, bounds.W*cellWidth, bounds.H*cellHeight))
	for _, s := range strokes {
		c := parseColor(s.Color)
		for i, p := range s.Points {
			prev := p
			if i > 0 {
				prev = s.Points[i-1]
			}
			drawSegment(img, centre(prev, bounds), centre(p, bounds), c)
		}
	}

	f, path, err := createUnique(dir, "whiteboard-"+clock.Now().Format("20060102-150405"))
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	return path, f.Close()
}

// maxExportSuffix bounds the -N suffixes tried for exports within one second.
const maxExportSuffix = 999

// createUnique creates base.png in dir, or base-1.png, base-2.png and so on
// when earlier names are taken. Existing files are never overwritten.
func createUnique(dir, base string) (*os.File, string, error) {
	for n := 0; n <= maxExportSuffix; n++ {
		name := base + ".png"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.png", base, n)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("export: no free name for %s in %s", base, dir)
}

func centre(p Point, bounds Rect) image.Point {
	return image.Pt((p.X-bounds.X)*cellWidth+cellWidth/2, (p.Y-bounds.Y)*cellHeight+cellHeight/2)
}

// drawSegment draws a 3px wide line with Bresenham's algorithm.
func drawSegment(img *image.NRGBA, a, b image.Point, c color.NRGBA) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	for {
		for ox := -1; ox <= 1; ox++ {
			for oy := -1; oy <= 1; oy++ {
				img.SetNRGBA(a.X+ox, a.Y+oy, c)
			}
		}
		if a == b {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			a.X += sx
		}
		if e2 <= dx {
			e += dx
			a.Y += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// parseColor reads #rrggbb, falling back to opaque red.
func parseColor(s string) color.NRGBA {
	red := color.NRGBA{R: 0xff, A: 0xff}
	if len(s) != 7 || s[0] != '#' {
		return red
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return red
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

var _ Exporter = PNGExporter{}
