// Package session holds the working set of a blur session: the loaded images,
// their regions, the derived person clusters, and the cached processed
// outputs.
package session

import (
	"context"
	"image"
	"log"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/camden-git/faceblur/blur"
	"github.com/camden-git/faceblur/cluster"
	"github.com/camden-git/faceblur/media"
	"github.com/camden-git/faceblur/region"
	"github.com/camden-git/faceblur/utils"
)

// ImageEntry is one loaded photo and everything attached to it. The processed
// canvas is a cache: any region mutation, selection change or style switch
// invalidates it, forcing a re-blur before the next export.
type ImageEntry struct {
	ID     string
	Name   string
	Source *image.NRGBA
	Width  int
	Height int

	Regions *region.Set
	Capture *utils.CaptureInfo

	// DetectErr records a per-image detection failure. The entry stays in
	// the working set so manual regions can still be drawn on it.
	DetectErr error

	processed      *image.NRGBA
	processedStyle blur.Style
}

// Invalidate drops the cached processed output.
func (e *ImageEntry) Invalidate() {
	e.processed = nil
}

// Workspace is the ordered working set. It owns clustering: persons are
// recomputed across all images whenever the face set changes, and are never
// mutated directly.
type Workspace struct {
	adapter *media.Adapter

	ClusterThreshold float64

	entries []*ImageEntry
	persons []*cluster.Person
}

// NewWorkspace creates an empty workspace over a detection adapter.
func NewWorkspace(adapter *media.Adapter) *Workspace {
	return &Workspace{
		adapter:          adapter,
		ClusterThreshold: cluster.DefaultThreshold,
	}
}

// AddFile decodes one file and adds it. A decode failure is returned without
// touching the working set; callers loading a batch skip the file and carry
// on.
func (w *Workspace) AddFile(ctx context.Context, path string) (*ImageEntry, error) {
	img, err := media.LoadImage(path)
	if err != nil {
		return nil, err
	}

	entry := w.AddImage(ctx, filepath.Base(path), img)
	if capture, err := utils.ReadCaptureInfo(path); err == nil {
		entry.Capture = capture
	}
	return entry, nil
}

// AddImage adds a decoded image and runs detection over it. A detection
// failure is isolated: the entry is kept with an empty face list and the
// error recorded, and later images are unaffected.
func (w *Workspace) AddImage(ctx context.Context, name string, img *image.NRGBA) *ImageEntry {
	bounds := img.Bounds()
	entry := &ImageEntry{
		ID:      uuid.NewString(),
		Name:    name,
		Source:  img,
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		Regions: region.NewSet(bounds.Dx(), bounds.Dy()),
	}
	entry.Regions.OnCommit(entry.Invalidate)

	faces, err := w.adapter.DetectFaces(ctx, img)
	if err != nil {
		entry.DetectErr = err
		log.Printf("session: detection failed for %s, keeping entry with no faces: %v", name, err)
	} else {
		for _, f := range faces {
			f.Selected = true
			entry.Regions.AddFace(f)
		}
	}

	w.entries = append(w.entries, entry)
	w.recluster()
	return entry
}

// Remove drops an entry from the working set.
func (w *Workspace) Remove(id string) bool {
	for i, e := range w.entries {
		if e.ID == id {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
			w.recluster()
			return true
		}
	}
	return false
}

// Entries returns the working set in load order.
func (w *Workspace) Entries() []*ImageEntry {
	return w.entries
}

// EntryByID returns the entry with the given ID, or nil.
func (w *Workspace) EntryByID(id string) *ImageEntry {
	for _, e := range w.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Persons returns the current derived person clusters.
func (w *Workspace) Persons() []*cluster.Person {
	return w.persons
}

// PersonByID returns the person with the given ID, or nil.
func (w *Workspace) PersonByID(id string) *cluster.Person {
	for _, p := range w.persons {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// recluster rebuilds persons from every face of every entry, in entry order,
// so identities recurring across photos merge.
func (w *Workspace) recluster() {
	var faces []*region.Face
	for _, e := range w.entries {
		faces = append(faces, e.Regions.Faces...)
	}
	w.persons = cluster.Cluster(faces, w.ClusterThreshold)
}

// SetPersonSelected toggles a person by setting every member face's selection
// flag, then invalidates each image that contains a member.
func (w *Workspace) SetPersonSelected(id string, selected bool) bool {
	p := w.PersonByID(id)
	if p == nil {
		return false
	}
	p.SetSelected(selected)

	for _, e := range w.entries {
		for _, member := range p.Members {
			if e.Regions.FaceByID(member.ID) != nil {
				e.Invalidate()
				break
			}
		}
	}
	return true
}

// SelectAllPersons selects or deselects every person at once.
func (w *Workspace) SelectAllPersons(selected bool) {
	for _, p := range w.persons {
		p.SetSelected(selected)
	}
	for _, e := range w.entries {
		e.Invalidate()
	}
}

// Process renders the entry's selected regions with the given style,
// returning a cached canvas when nothing changed since the last pass. The
// source image is never mutated.
func (w *Workspace) Process(e *ImageEntry, style blur.Style, opts blur.Options) (*image.NRGBA, error) {
	if e.processed != nil && e.processedStyle == style {
		return e.processed, nil
	}

	canvas := image.NewNRGBA(e.Source.Rect)
	copy(canvas.Pix, e.Source.Pix)

	if err := blur.Apply(canvas, blur.Targets(e.Regions), style, opts); err != nil {
		return nil, err
	}

	e.processed = canvas
	e.processedStyle = style
	return canvas, nil
}
