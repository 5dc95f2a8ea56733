package viz

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera is an orbiting orthographic camera looking down -z at Center.
type Camera struct {
	Yaw, Pitch float64
	Zoom       float64
	Center     mgl64.Vec3
	// Scale is pixels per metre at zoom 1.
	Scale float64
}

func NewCamera() *Camera {
	return &Camera{Zoom: 1, Scale: 20}
}

func (c *Camera) Orbit(yaw, pitch float64) {
	c.Yaw += yaw
	c.Pitch = mgl64.Clamp(c.Pitch+pitch, -math.Pi/2, math.Pi/2)
}

func (c *Camera) ZoomIn()  { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut() { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

func (c *Camera) view() mgl64.Mat3 {
	return mgl64.Rotate3DX(c.Pitch).Mul3(mgl64.Rotate3DY(c.Yaw))
}

// Project maps a world point onto a w x h pixel canvas. Screen y grows down.
func (c *Camera) Project(p mgl64.Vec3, w, h int) (x, y int) {
	v := c.view().Mul3x1(p.Sub(c.Center))
	s := c.Scale * c.Zoom
	return w/2 + int(math.Round(v[0]*s)), h/2 - int(math.Round(v[1]*s))
}

// Frame centres the camera on points and picks a scale that fits them in a
// w x h pixel canvas with a margin.
func (c *Camera) Frame(points []mgl64.Vec3, w, h int) {
	if len(points) == 0 {
		return
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		for i := range 3 {
			lo[i] = math.Min(lo[i], p[i])
			hi[i] = math.Max(hi[i], p[i])
		}
	}
	c.Center = lo.Add(hi).Mul(0.5)

	// pendulums swing through the whole circle around their pivot
	radius := math.Max(hi.Sub(lo).Len()/2, 1)
	c.Scale = float64(min(w, h)) / (2.4 * radius)
}
