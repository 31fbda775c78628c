package editor

import "math"

// Point is a position in surface coordinates, CSS pixels.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned box in surface coordinates.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Center() Point { return Point{r.X + r.W/2, r.Y + r.H/2} }

// Direction names a resize handle by the compass edge or corner it sits on.
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var directionNames = [...]string{"n", "ne", "e", "se", "s", "sw", "w", "nw"}

func (d Direction) String() string {
	if d < North || d > NorthWest {
		return "?"
	}
	return directionNames[d]
}

// Directions lists all eight handles in clockwise order from North.
var Directions = [...]Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

func (d Direction) touchesEast() bool  { return d == NorthEast || d == East || d == SouthEast }
func (d Direction) touchesWest() bool  { return d == NorthWest || d == West || d == SouthWest }
func (d Direction) touchesSouth() bool { return d == SouthWest || d == South || d == SouthEast }
func (d Direction) touchesNorth() bool { return d == NorthWest || d == North || d == NorthEast }

// vertical reports a pure north/south drag, the only case where aspect lock
// derives width from height instead of the other way around.
func (d Direction) vertical() bool { return d == North || d == South }

// HandlePoint returns where a direction's handle sits on the outline.
func HandlePoint(outline Rect, d Direction) Point {
	p := outline.Center()
	switch {
	case d.touchesWest():
		p.X = outline.X
	case d.touchesEast():
		p.X = outline.X + outline.W
	}
	switch {
	case d.touchesNorth():
		p.Y = outline.Y
	case d.touchesSouth():
		p.Y = outline.Y + outline.H
	}
	return p
}

// ImageBounds carries the clamping limits for one image resize session.
type ImageBounds struct {
	MinWidth    float64
	MinHeight   float64
	ParentWidth float64
}

func clamp(v, lo, hi float64) float64 {
	if hi > 0 && v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// ResizeImage computes the candidate size of an image being dragged by the
// given handle. start is the rect captured at session start, delta the
// pointer travel since then, aspect the width/height ratio captured at
// session start. With lock set the dimension not implied by the drag is
// derived from aspect, then both are re-clamped so the bounds always win
// over the lock.
func ResizeImage(start Rect, delta Point, d Direction, aspect float64, lock bool, b ImageBounds) (w, h float64) {
	w, h = start.W, start.H
	switch {
	case d.touchesEast():
		w = start.W + delta.X
	case d.touchesWest():
		w = start.W - delta.X
	}
	switch {
	case d.touchesSouth():
		h = start.H + delta.Y
	case d.touchesNorth():
		h = start.H - delta.Y
	}

	w = clamp(w, b.MinWidth, b.ParentWidth)
	h = clamp(h, b.MinHeight, 0)

	if lock && aspect > 0 {
		if d.vertical() {
			w = h * aspect
		} else {
			h = w / aspect
		}
		// Derived dimension may have escaped its bounds, re-clamp and
		// propagate back so the ratio survives.
		if cw := clamp(w, b.MinWidth, b.ParentWidth); cw != w {
			w = cw
			h = w / aspect
		}
		if ch := clamp(h, b.MinHeight, 0); ch != h {
			h = ch
			w = h * aspect
			w = clamp(w, b.MinWidth, b.ParentWidth)
		}
	}
	return math.Round(w), math.Round(h)
}

// ResizeTable computes the candidate width of a table dragged by its corner
// handle. Only horizontal travel matters, the clamp ceiling is maxFactor
// times the surface width so tables can overhang into the scroll wrapper.
func ResizeTable(startWidth, deltaX, surfaceWidth, minWidth, maxFactor float64) float64 {
	return math.Round(clamp(startWidth+deltaX, minWidth, maxFactor*surfaceWidth))
}

// WidthPercent converts an absolute width into the rounded percentage of its
// container, bounded to the given range.
func WidthPercent(width, parentWidth float64, lo, hi int) int {
	if parentWidth <= 0 {
		return lo
	}
	pct := int(math.Round(width / parentWidth * 100))
	if pct < lo {
		pct = lo
	}
	if pct > hi {
		pct = hi
	}
	return pct
}
