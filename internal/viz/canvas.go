package viz

import (
	"math"
	"strings"
)

const brailleBlank = 0x2800

// Dot bits of a 2x4 Braille cell, indexed [row][col].
var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a Braille pixel grid. Its size in dots is (Width*2) x (Height*4).
type Canvas struct {
	Width, Height int
	Grid          [][]rune

	// World window mapped onto the canvas by Plot and Line.
	xMin, xMax, yMin, yMax float64
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	c.SetWindow(-1, 1, -1, 1)
	return c
}

// SetWindow sets the world rectangle shown by the canvas. The shorter side
// is widened so that both axes share one scale.
func (c *Canvas) SetWindow(xMin, xMax, yMin, yMax float64) {
	dw, dh := float64(c.Width*2), float64(c.Height*4)
	sx := (xMax - xMin) / dw
	sy := (yMax - yMin) / dh
	s := math.Max(sx, sy)
	if s <= 0 {
		s = 1
	}
	cx, cy := (xMin+xMax)/2, (yMin+yMax)/2
	c.xMin, c.xMax = cx-s*dw/2, cx+s*dw/2
	c.yMin, c.yMax = cy-s*dh/2, cy+s*dh/2
}

// Set lights the dot at (x, y), y growing downwards.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= pixelMap[y%4][x%2]
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

// DrawLine draws a dot line with Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// toDots maps world coordinates to dot coordinates, y pointing up.
func (c *Canvas) toDots(x, y float64) (int, int) {
	dw, dh := float64(c.Width*2-1), float64(c.Height*4-1)
	px := (x - c.xMin) / (c.xMax - c.xMin) * dw
	py := (c.yMax - y) / (c.yMax - c.yMin) * dh
	return int(math.Round(px)), int(math.Round(py))
}

// Plot lights the dot nearest to a world point.
func (c *Canvas) Plot(x, y float64) {
	c.Set(c.toDots(x, y))
}

// Line draws a segment between two world points.
func (c *Canvas) Line(x0, y0, x1, y1 float64) {
	a, b := c.toDots(x0, y0)
	d, e := c.toDots(x1, y1)
	c.DrawLine(a, b, d, e)
}

// Mark draws a small cross centered on a world point.
func (c *Canvas) Mark(x, y float64) {
	px, py := c.toDots(x, y)
	for d := -1; d <= 1; d++ {
		c.Set(px+d, py)
		c.Set(px, py+d)
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
