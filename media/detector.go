package media

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/disintegration/imaging"

	"github.com/camden-git/faceblur/geometry"
	"github.com/camden-git/faceblur/region"
)

const (
	// DefaultDetectCeiling bounds the longest side of the frame handed to
	// the engine; larger images are downscaled first purely to keep
	// inference latency reasonable.
	DefaultDetectCeiling = 1920

	// DefaultThumbnailPadding is added around a face box before cropping its
	// thumbnail, clamped to the image bounds.
	DefaultThumbnailPadding = 20

	// DefaultChildAgeMax is the exclusive upper bound for the child flag.
	DefaultChildAgeMax = 18
)

// Adapter wraps an Engine and owns the coordinate bookkeeping around it: it
// downscales oversized images before inference, scales the returned boxes back
// to natural image coordinates, clamps them, and crops a padded thumbnail per
// face from the natural-resolution image.
type Adapter struct {
	engine Engine

	DetectCeiling    int
	ThumbnailPadding int
	ChildAgeMax      int
}

// NewAdapter wraps an engine with the stock parameters.
func NewAdapter(engine Engine) *Adapter {
	return &Adapter{
		engine:           engine,
		DetectCeiling:    DefaultDetectCeiling,
		ThumbnailPadding: DefaultThumbnailPadding,
		ChildAgeMax:      DefaultChildAgeMax,
	}
}

// DetectFaces runs the engine over one image and returns face records in
// natural image coordinates. A failure is returned to the caller and must be
// contained there; one bad image never aborts a batch.
func (a *Adapter) DetectFaces(ctx context.Context, img image.Image) ([]*region.Face, error) {
	if a.engine == nil {
		return nil, fmt.Errorf("detector: no engine configured")
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("detector: invalid image dimensions %dx%d", width, height)
	}

	// downscale for inference when either dimension exceeds the ceiling,
	// preserving aspect ratio, and remember the factor so the engine's boxes
	// can be mapped back
	factor := geometry.FitFactor(width, height, a.DetectCeiling)
	frame := img
	if factor != 1.0 {
		frame = imaging.Fit(img, a.DetectCeiling, a.DetectCeiling, imaging.Lanczos)
		log.Printf("detector: downscaled %dx%d by %.3f for inference", width, height, factor)
	}

	detections, err := a.engine.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("detector: engine failed: %w", err)
	}

	faces := make([]*region.Face, 0, len(detections))
	for _, d := range detections {
		box := geometry.Scale(d.Box, factor)
		box = geometry.ClipTo(box, width, height)
		if box.Empty() {
			continue
		}

		faces = append(faces, &region.Face{
			Box:       box,
			Age:       d.Age,
			Child:     d.Age > 0 && d.Age < a.ChildAgeMax,
			Embedding: d.Embedding,
			Thumbnail: a.cropThumbnail(img, box),
		})
	}

	log.Printf("detector: found %d face(s) in %dx%d image", len(faces), width, height)
	return faces, nil
}

// cropThumbnail cuts the face box plus padding out of the natural-resolution
// image.
func (a *Adapter) cropThumbnail(img image.Image, box geometry.Box) image.Image {
	bounds := img.Bounds()
	crop := geometry.ClipTo(geometry.Expand(box, a.ThumbnailPadding), bounds.Dx(), bounds.Dy())
	if crop.Empty() {
		return nil
	}
	return imaging.Crop(img, crop.Rect())
}

// Close releases the wrapped engine.
func (a *Adapter) Close() error {
	if a.engine == nil {
		return nil
	}
	return a.engine.Close()
}
