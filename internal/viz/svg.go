package viz

import (
	"fmt"
	"io"
	"strings"
)

// Point is a 2-D sample of a trajectory.
type Point struct{ X, Y float64 }

// TrajectorySVG draws a path scaled to fill a width x height image with 10%
// padding. Marks are drawn as circles in the same frame, e.g. goals.
func TrajectorySVG(w io.Writer, path []Point, marks []Point, width, height int, stroke string) error {
	if len(path) < 2 {
		return fmt.Errorf("need at least two points, got %d", len(path))
	}

	minX, maxX := path[0].X, path[0].X
	minY, maxY := path[0].Y, path[0].Y
	for _, p := range append(path, marks...) {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	project := func(p Point) (float64, float64) {
		return (p.X - minX) / rangeX * float64(width),
			float64(height) - (p.Y-minY)/rangeY*float64(height)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`, width, height, width, height, stroke)
	for i, p := range path {
		x, y := project(p)
		if i > 0 {
			sb.WriteString(" L")
		}
		fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
	}
	sb.WriteString("\"/>\n")
	for _, m := range marks {
		x, y := project(m)
		fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"4\" fill=\"none\" stroke=\"#ff00ff\"/>\n", x, y)
	}
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// ColumnPoints pairs two columns of a stored series.
func ColumnPoints(columns []string, rows [][]float64, xName, yName string) ([]Point, error) {
	xi, yi := indexOf(columns, xName), indexOf(columns, yName)
	if xi < 0 || yi < 0 {
		return nil, fmt.Errorf("unknown columns %q, %q (have %s)", xName, yName, strings.Join(columns, ", "))
	}
	pts := make([]Point, 0, len(rows))
	for _, r := range rows {
		if xi < len(r) && yi < len(r) {
			pts = append(pts, Point{r[xi], r[yi]})
		}
	}
	return pts, nil
}
