package region

import (
	"image"
	"log"

	"github.com/camden-git/faceblur/geometry"
)

// State is the controller's interaction state. Exactly one state holds at any
// time; drawing and dragging are mutually exclusive by construction.
type State int

const (
	Idle State = iota
	Drawing
	Dragging
)

func (s State) String() string {
	switch s {
	case Drawing:
		return "drawing"
	case Dragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Handle identifies what part of a region a drag session grabbed: the
// interior (move) or one of the eight resize handles.
type Handle int

const (
	HandleMove Handle = iota
	HandleN
	HandleS
	HandleE
	HandleW
	HandleNE
	HandleNW
	HandleSE
	HandleSW
)

// edges reports which box edges the handle drives.
func (h Handle) edges() (n, s, e, w bool) {
	switch h {
	case HandleN:
		n = true
	case HandleS:
		s = true
	case HandleE:
		e = true
	case HandleW:
		w = true
	case HandleNE:
		n, e = true, true
	case HandleNW:
		n, w = true, true
	case HandleSE:
		s, e = true, true
	case HandleSW:
		s, w = true, true
	}
	return
}

const (
	// DefaultMinDrawSize is the strict lower bound on both dimensions of a
	// freehand rectangle; anything at or below it is discarded as pointer
	// noise.
	DefaultMinDrawSize = 20

	// DefaultMinRegionSize is the smallest dimension a resize can shrink a
	// region to.
	DefaultMinRegionSize = 30

	// DefaultHandleRadius is the hit radius around each resize handle.
	DefaultHandleRadius = 10
)

// target points at the record a drag session mutates on commit. Only one of
// face/manual is set.
type target struct {
	kind   Kind
	face   *Face
	manual *Manual
}

func (t target) valid() bool {
	return t.face != nil || t.manual != nil
}

func (t target) box() geometry.Box {
	if t.face != nil {
		return t.face.Box
	}
	return t.manual.Box
}

func (t target) setBox(b geometry.Box) {
	if t.face != nil {
		t.face.Box = b
		return
	}
	t.manual.Box = b
}

func (t target) id() string {
	if t.face != nil {
		return t.face.ID
	}
	return t.manual.ID
}

// Controller is the single owner of pointer interaction for one image's
// region set. All coordinates are natural image coordinates; the presentation
// layer maps pointer positions through geometry before calling in.
//
// During a drag the live box is presentation-only; the record is durably
// updated once, on pointer-up or pointer-leave, and only if it changed.
type Controller struct {
	set *Set

	MinDrawSize   int
	MinRegionSize int
	HandleRadius  int

	state State

	// drawing session
	drawStart image.Point
	candidate geometry.Box

	// dragging session
	tgt      target
	handle   Handle
	offset   image.Point
	startBox geometry.Box
	liveBox  geometry.Box
	lastSeen image.Point
}

// NewController returns an idle controller over the given region set.
func NewController(set *Set) *Controller {
	return &Controller{
		set:           set,
		MinDrawSize:   DefaultMinDrawSize,
		MinRegionSize: DefaultMinRegionSize,
		HandleRadius:  DefaultHandleRadius,
	}
}

// State returns the current interaction state.
func (c *Controller) State() State {
	return c.state
}

// LiveBox returns the box to present for the active session: the freehand
// candidate while drawing, the in-flight box while dragging. ok is false when
// idle.
func (c *Controller) LiveBox() (box geometry.Box, ok bool) {
	switch c.state {
	case Drawing:
		return c.candidate, true
	case Dragging:
		return c.liveBox, true
	}
	return geometry.Box{}, false
}

// PointerDown begins a session. On a region handle or interior it starts a
// drag; on empty canvas it starts a freehand draw. While a session is already
// active the event is suppressed, so a drag can never be interrupted by a new
// draw.
func (c *Controller) PointerDown(p image.Point) {
	if c.state != Idle {
		return
	}

	if tgt, h, ok := c.hitTest(p); ok {
		c.state = Dragging
		c.tgt = tgt
		c.handle = h
		c.startBox = tgt.box()
		c.liveBox = c.startBox
		c.offset = image.Pt(p.X-c.startBox.X, p.Y-c.startBox.Y)
		c.lastSeen = p
		return
	}

	c.state = Drawing
	c.drawStart = p
	c.candidate = geometry.Box{X: p.X, Y: p.Y}
	c.lastSeen = p
}

// PointerMove advances the active session. Idle moves are ignored.
func (c *Controller) PointerMove(p image.Point) {
	c.lastSeen = p
	switch c.state {
	case Drawing:
		c.candidate = geometry.FromPoints(c.drawStart, p)
	case Dragging:
		if c.handle == HandleMove {
			c.liveBox = c.moveBox(p)
		} else {
			c.liveBox = c.resizeBox(p)
		}
	}
}

// PointerUp ends the active session, committing its result.
func (c *Controller) PointerUp(p image.Point) {
	c.lastSeen = p
	c.finish()
}

// PointerLeave ends the active session exactly like PointerUp, using the last
// observed pointer position. This guarantees a session terminates even when
// the pointer exits the canvas mid-drag.
func (c *Controller) PointerLeave() {
	c.finish()
}

// Cancel abandons the active session without any durable mutation. The
// dragged record keeps its pre-session box.
func (c *Controller) Cancel() {
	c.reset()
}

func (c *Controller) finish() {
	// fold the final pointer position into the session before committing
	c.PointerMove(c.lastSeen)

	switch c.state {
	case Drawing:
		box := geometry.ClipTo(c.candidate, c.set.Width, c.set.Height)
		if box.W > c.MinDrawSize && box.H > c.MinDrawSize {
			m := c.set.AddManual(box)
			log.Printf("region: committed manual region %s at %+v", m.ID, box)
		}
	case Dragging:
		if c.tgt.valid() && c.liveBox != c.startBox {
			c.tgt.setBox(c.liveBox)
			c.set.commit()
			log.Printf("region: committed %s region %s move/resize to %+v", c.tgt.kind, c.tgt.id(), c.liveBox)
		}
	}
	c.reset()
}

func (c *Controller) reset() {
	c.state = Idle
	c.tgt = target{}
	c.candidate = geometry.Box{}
	c.liveBox = geometry.Box{}
	c.startBox = geometry.Box{}
}

// moveBox translates the start box to follow the pointer, keeping the grab
// offset and clamping each axis into the image independently.
func (c *Controller) moveBox(p image.Point) geometry.Box {
	b := c.startBox
	b.X = p.X - c.offset.X
	b.Y = p.Y - c.offset.Y
	return geometry.ClampMove(b, c.set.Width, c.set.Height)
}

// resizeBox recomputes the box with the active edge(s) tracking the pointer.
// The opposite edge stays fixed, the minimum dimension is enforced even when
// the pointer crosses it, and everything stays inside the image.
func (c *Controller) resizeBox(p image.Point) geometry.Box {
	left := c.startBox.X
	top := c.startBox.Y
	right := c.startBox.X + c.startBox.W
	bottom := c.startBox.Y + c.startBox.H

	n, s, e, w := c.handle.edges()
	if e {
		right = maxInt(p.X, left+c.MinRegionSize)
	}
	if w {
		left = minInt(p.X, right-c.MinRegionSize)
	}
	if s {
		bottom = maxInt(p.Y, top+c.MinRegionSize)
	}
	if n {
		top = minInt(p.Y, bottom-c.MinRegionSize)
	}

	// clamp into the image; when the minimum dimension no longer fits against
	// a boundary, the fixed edge is pulled inward so the box never escapes
	if right > c.set.Width {
		right = c.set.Width
		left = minInt(left, maxInt(0, right-c.MinRegionSize))
	}
	if left < 0 {
		left = 0
		right = maxInt(right, minInt(c.set.Width, c.MinRegionSize))
	}
	if bottom > c.set.Height {
		bottom = c.set.Height
		top = minInt(top, maxInt(0, bottom-c.MinRegionSize))
	}
	if top < 0 {
		top = 0
		bottom = maxInt(bottom, minInt(c.set.Height, c.MinRegionSize))
	}

	return geometry.Box{X: left, Y: top, W: right - left, H: bottom - top}
}

// hitTest finds the region under the pointer. Resize handles win over
// interiors, and later regions (drawn on top) win over earlier ones.
func (c *Controller) hitTest(p image.Point) (target, Handle, bool) {
	for i := len(c.set.Manual) - 1; i >= 0; i-- {
		m := c.set.Manual[i]
		if h, ok := c.handleAt(m.Box, p); ok {
			return target{kind: KindManual, manual: m}, h, true
		}
	}
	for i := len(c.set.Faces) - 1; i >= 0; i-- {
		f := c.set.Faces[i]
		if h, ok := c.handleAt(f.Box, p); ok {
			return target{kind: KindFace, face: f}, h, true
		}
	}

	for i := len(c.set.Manual) - 1; i >= 0; i-- {
		m := c.set.Manual[i]
		if m.Box.Contains(p) {
			return target{kind: KindManual, manual: m}, HandleMove, true
		}
	}
	for i := len(c.set.Faces) - 1; i >= 0; i-- {
		f := c.set.Faces[i]
		if f.Box.Contains(p) {
			return target{kind: KindFace, face: f}, HandleMove, true
		}
	}

	return target{}, HandleMove, false
}

// handleAt tests the pointer against the eight resize handles of a box: four
// corners and four edge midpoints. On boxes smaller than the handle radius the
// hit zones overlap, so the nearest handle wins rather than the first tested.
func (c *Controller) handleAt(b geometry.Box, p image.Point) (Handle, bool) {
	midX := b.X + b.W/2
	midY := b.Y + b.H/2

	spots := []struct {
		h    Handle
		x, y int
	}{
		{HandleNW, b.X, b.Y},
		{HandleNE, b.X + b.W, b.Y},
		{HandleSW, b.X, b.Y + b.H},
		{HandleSE, b.X + b.W, b.Y + b.H},
		{HandleN, midX, b.Y},
		{HandleS, midX, b.Y + b.H},
		{HandleW, b.X, midY},
		{HandleE, b.X + b.W, midY},
	}

	best := HandleMove
	bestDist := c.HandleRadius + 1
	for _, s := range spots {
		d := maxInt(absInt(p.X-s.x), absInt(p.Y-s.y))
		if d < bestDist {
			bestDist = d
			best = s.h
		}
	}
	if bestDist > c.HandleRadius {
		return HandleMove, false
	}
	return best, true
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

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
