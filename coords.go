package main

import "math"

// Point is a position in display space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the on-screen bounding box of the displayed image.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// InputEvent is a tap delivered by the UI: either a pointer position or a
// set of touch contacts.
type InputEvent struct {
	Pointer *Point
	Touches []Point
}

// PointerEvent builds a mouse/pen event.
func PointerEvent(x, y float64) InputEvent {
	return InputEvent{Pointer: &Point{X: x, Y: y}}
}

// TouchEvent builds a touch event from its contacts.
func TouchEvent(contacts ...Point) InputEvent {
	return InputEvent{Touches: contacts}
}

// Primary returns the contact that triggers the action: the first touch
// when touches are present, otherwise the pointer.
func (e InputEvent) Primary() (Point, bool) {
	if len(e.Touches) > 0 {
		return e.Touches[0], true
	}
	if e.Pointer != nil {
		return *e.Pointer, true
	}
	return Point{}, false
}

// SeedPoint is a pixel coordinate in buffer space.
type SeedPoint struct {
	X, Y int
}

// outside never lies within any buffer.
var outside = SeedPoint{-1, -1}

// In reports whether the point lies within [0,w)×[0,h).
func (s SeedPoint) In(w, h int) bool {
	return s.X >= 0 && s.X < w && s.Y >= 0 && s.Y < h
}

// MapToBuffer converts a display-space point to buffer coordinates, scaling
// each axis independently. The result is not clamped.
func MapToBuffer(p Point, r Rect, bufW, bufH int) SeedPoint {
	if !(r.Width > 0) || !(r.Height > 0) {
		return outside
	}
	scaleX := float64(bufW) / r.Width
	scaleY := float64(bufH) / r.Height
	x := math.Floor((p.X - r.X) * scaleX)
	y := math.Floor((p.Y - r.Y) * scaleY)
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return outside
	}
	if x < math.MinInt32 || x > math.MaxInt32 || y < math.MinInt32 || y > math.MaxInt32 {
		return outside
	}
	return SeedPoint{X: int(x), Y: int(y)}
}
