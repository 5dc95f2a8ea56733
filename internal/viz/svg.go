package viz

import (
	"fmt"
	"strings"
)

// SVG renders the lit braille dots as circles, scale pixels per dot.
func (c *Canvas) SVG(scale float64, fg, bg string) string {
	w, h := c.Pixels()
	width, height := float64(w)*scale, float64(h)*scale

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="%s">
`, width, height, width, height, bg, fg)

	r := scale * 0.4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if c.IsSet(x, y) {
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
			}
		}
	}

	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}
