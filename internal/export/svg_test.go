package export

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTracksToSVG(t *testing.T) {
	tracks := []Track{
		{Name: "bob", Points: []mgl64.Vec2{{0, -1}, {1, 0}, {0, 1}}},
		{Name: "dot", Points: []mgl64.Vec2{{0.5, 0.5}}},
	}
	svg := TracksToSVG(tracks, 200, 100)

	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>\n") {
		t.Error("expected a complete svg document")
	}
	if strings.Count(svg, "<path") != 1 {
		t.Errorf("expected one path, single-point tracks are skipped:\n%s", svg)
	}
	if !strings.Contains(svg, `id="bob"`) || !strings.Contains(svg, palette[0]) {
		t.Error("expected the bob track in the first palette color")
	}
	// span 2 plus padding fits 100px: scale 100/2.4, centred on (0.5, 0)
	if !strings.Contains(svg, "M79.2,91.7") {
		t.Errorf("unexpected first point:\n%s", svg)
	}
}

func TestTracksToSVGEmpty(t *testing.T) {
	svg := TracksToSVG(nil, 10, 10)
	if strings.Contains(svg, "<path") {
		t.Error("no tracks should draw no paths")
	}
}
