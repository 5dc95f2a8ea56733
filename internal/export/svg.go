package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Track is one body's path in the plane of the plot.
type Track struct {
	Name   string
	Points []mgl64.Vec2
	Color  string
}

var palette = []string{"#00ff88", "#00ccff", "#ff00ff", "#ffcc00", "#ff4444", "#ffffff"}

// TracksToSVG draws every track on a shared, aspect-preserving frame with the
// world origin marked.
func TracksToSVG(tracks []Track, width, height int) string {
	minX, maxX := 0.0, 0.0
	minY, maxY := 0.0, 0.0
	for _, tr := range tracks {
		for _, p := range tr.Points {
			minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
			minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
		}
	}

	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	pad := span * 0.1
	scale := math.Min(float64(width), float64(height)) / (span + 2*pad)
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	project := func(p mgl64.Vec2) (float64, float64) {
		return float64(width)/2 + (p[0]-cx)*scale, float64(height)/2 - (p[1]-cy)*scale
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	ox, oy := project(mgl64.Vec2{})
	fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"3\" fill=\"#666666\"/>\n", ox, oy)

	for i, tr := range tracks {
		if len(tr.Points) < 2 {
			continue
		}
		color := tr.Color
		if color == "" {
			color = palette[i%len(palette)]
		}
		fmt.Fprintf(&sb, "<path id=%q fill=\"none\" stroke=\"%s\" stroke-width=\"1.5\" d=\"", tr.Name, color)
		for j, p := range tr.Points {
			x, y := project(p)
			if j == 0 {
				fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")
	}

	sb.WriteString("</svg>\n")
	return sb.String()
}
