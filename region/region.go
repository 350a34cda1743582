package region

import (
	"image"

	"github.com/google/uuid"

	"github.com/camden-git/faceblur/geometry"
)

// Kind distinguishes where a region came from.
type Kind string

const (
	KindFace   Kind = "face"   // produced by the detection adapter
	KindManual Kind = "manual" // drawn by the user
)

// Face is a detected-face region in natural image coordinates. Embedding and
// age may be absent when the detection backend cannot produce them.
type Face struct {
	ID        string
	Box       geometry.Box
	Selected  bool
	Age       int
	Child     bool
	Embedding []float32
	Thumbnail image.Image
}

// Manual is a user-drawn region. It carries no detection metadata.
type Manual struct {
	ID       string
	Box      geometry.Box
	Selected bool
}

// Set holds every region belonging to one image, detected and manual, in
// creation order. Width and Height are the owning image's natural dimensions
// and bound all box mutations.
type Set struct {
	Width  int
	Height int
	Faces  []*Face
	Manual []*Manual

	onCommit func()
}

// NewSet returns an empty region set for a width×height image.
func NewSet(width, height int) *Set {
	return &Set{Width: width, Height: height}
}

// OnCommit registers a callback invoked after every durable region mutation
// (new manual region, moved or resized box). The session layer uses it to
// invalidate the image's cached processed output.
func (s *Set) OnCommit(fn func()) {
	s.onCommit = fn
}

func (s *Set) commit() {
	if s.onCommit != nil {
		s.onCommit()
	}
}

// AddFace appends a detected face, assigning an ID when the adapter left it
// empty.
func (s *Set) AddFace(f *Face) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	s.Faces = append(s.Faces, f)
}

// AddManual commits a new user-drawn region. Manual regions are selected by
// default so a freshly drawn rectangle is included in the next processing
// pass.
func (s *Set) AddManual(box geometry.Box) *Manual {
	m := &Manual{
		ID:       uuid.NewString(),
		Box:      box,
		Selected: true,
	}
	s.Manual = append(s.Manual, m)
	s.commit()
	return m
}

// RemoveManual deletes a manual region by ID. Removing a region changes what
// the next processing pass covers, so it counts as a committed mutation.
func (s *Set) RemoveManual(id string) bool {
	for i, m := range s.Manual {
		if m.ID == id {
			s.Manual = append(s.Manual[:i], s.Manual[i+1:]...)
			s.commit()
			return true
		}
	}
	return false
}

// FaceByID returns the face with the given ID, or nil.
func (s *Set) FaceByID(id string) *Face {
	for _, f := range s.Faces {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// ManualByID returns the manual region with the given ID, or nil.
func (s *Set) ManualByID(id string) *Manual {
	for _, m := range s.Manual {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// SetFaceSelected flips one face's selection flag. Selection decides what the
// render engine touches but does not move any box, so the cached output is
// still invalidated.
func (s *Set) SetFaceSelected(id string, selected bool) bool {
	f := s.FaceByID(id)
	if f == nil || f.Selected == selected {
		return f != nil
	}
	f.Selected = selected
	s.commit()
	return true
}

// SetManualSelected flips one manual region's selection flag.
func (s *Set) SetManualSelected(id string, selected bool) bool {
	m := s.ManualByID(id)
	if m == nil || m.Selected == selected {
		return m != nil
	}
	m.Selected = selected
	s.commit()
	return true
}
