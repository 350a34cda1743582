package geometry

import "image"

// Box is an axis-aligned rectangle in natural image coordinates.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// FromPoints returns the bounding box of two points regardless of the order
// they were given in, so a rectangle dragged in any direction comes out the
// same.
func FromPoints(a, b image.Point) Box {
	x1, x2 := minInt(a.X, b.X), maxInt(a.X, b.X)
	y1, y2 := minInt(a.Y, b.Y), maxInt(a.Y, b.Y)
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// FromRect converts an image.Rectangle to a Box.
func FromRect(r image.Rectangle) Box {
	r = r.Canon()
	return Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Contains reports whether the point lies inside the box.
func (b Box) Contains(p image.Point) bool {
	return p.X >= b.X && p.X < b.X+b.W && p.Y >= b.Y && p.Y < b.Y+b.H
}

// ClampMove translates the box so it lies fully within a width×height image,
// handling each axis independently. Size is preserved; a box larger than the
// image is pinned to the origin on that axis.
func ClampMove(b Box, width, height int) Box {
	b.X = clampInt(b.X, 0, maxInt(0, width-b.W))
	b.Y = clampInt(b.Y, 0, maxInt(0, height-b.H))
	return b
}

// Expand grows the box by pad on every side. Negative pad shrinks it.
func Expand(b Box, pad int) Box {
	return Box{X: b.X - pad, Y: b.Y - pad, W: b.W + 2*pad, H: b.H + 2*pad}
}

// Intersect clips the box to the given bounds. The result may be empty.
func Intersect(b Box, bounds Box) Box {
	x1 := maxInt(b.X, bounds.X)
	y1 := maxInt(b.Y, bounds.Y)
	x2 := minInt(b.X+b.W, bounds.X+bounds.W)
	y2 := minInt(b.Y+b.H, bounds.Y+bounds.H)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// ClipTo clips the box to a width×height image.
func ClipTo(b Box, width, height int) Box {
	return Intersect(b, Box{W: width, H: height})
}

// Scale divides the box's coordinates by factor, rounding to the nearest
// pixel. It maps a box expressed in a downscaled detection frame back to
// natural image coordinates (factor = downscaled/natural).
func Scale(b Box, factor float64) Box {
	if factor == 1.0 || factor == 0 {
		return b
	}
	return Box{
		X: roundDiv(b.X, factor),
		Y: roundDiv(b.Y, factor),
		W: roundDiv(b.W, factor),
		H: roundDiv(b.H, factor),
	}
}

// View maps between natural image coordinates and a display surface that
// renders the image scaled by Factor and shifted by an offset, as with a
// letterboxed or zoomed canvas. Factor = display/natural.
type View struct {
	Factor  float64
	OffsetX int
	OffsetY int
}

func (v View) factor() float64 {
	if v.Factor == 0 {
		return 1.0
	}
	return v.Factor
}

// ToNatural maps a display-space pointer position into natural image
// coordinates, rounding to the nearest pixel.
func (v View) ToNatural(p image.Point) image.Point {
	f := v.factor()
	return image.Pt(roundDiv(p.X-v.OffsetX, f), roundDiv(p.Y-v.OffsetY, f))
}

// ToDisplay maps a natural-coordinate box onto the display surface.
func (v View) ToDisplay(b Box) Box {
	f := v.factor()
	return Box{
		X: roundMul(b.X, f) + v.OffsetX,
		Y: roundMul(b.Y, f) + v.OffsetY,
		W: roundMul(b.W, f),
		H: roundMul(b.H, f),
	}
}

// FitFactor returns the scale factor that fits width×height inside a square of
// the given ceiling while preserving aspect ratio, or 1 when it already fits.
func FitFactor(width, height, ceiling int) float64 {
	if ceiling <= 0 || (width <= ceiling && height <= ceiling) {
		return 1.0
	}
	longest := maxInt(width, height)
	return float64(ceiling) / float64(longest)
}

func roundMul(v int, factor float64) int {
	f := float64(v) * factor
	if f >= 0 {
		return int(f + 0.5)
	}
	return int(f - 0.5)
}

func roundDiv(v int, factor float64) int {
	f := float64(v) / factor
	if f >= 0 {
		return int(f + 0.5)
	}
	return int(f - 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
