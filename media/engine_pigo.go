package media

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/camden-git/faceblur/geometry"
)

// PigoEngine implements Engine on the pure-Go pigo cascade classifier. It
// needs no cgo or model runtime, which makes it the fallback when the OpenCV
// stack is unavailable. It reports boxes and confidence only; age, gender and
// embeddings stay zero, so every pigo face clusters as its own person.
type PigoEngine struct {
	classifier *pigo.Pigo

	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	QThreshold   float32
}

// NewPigoEngine unpacks a binary cascade file.
func NewPigoEngine(cascadePath string) (*PigoEngine, error) {
	if cascadePath == "" {
		return nil, fmt.Errorf("engine(pigo): cascade path is empty")
	}

	cascade, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("engine(pigo): can not open cascade file %s: %w", cascadePath, err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("engine(pigo): unpack cascade file: %w", err)
	}

	log.Printf("engine(pigo): loaded cascade from %s", cascadePath)
	return &PigoEngine{
		classifier:   classifier,
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		QThreshold:   5.0,
	}, nil
}

// Close is a no-op; pigo holds no native resources.
func (e *PigoEngine) Close() error {
	return nil
}

// Detect runs the cascade over the image and converts pigo's centered
// row/col/scale detections into corner boxes in the input frame.
func (e *PigoEngine) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := pigo.ImgToNRGBA(img)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Max.X, src.Bounds().Max.Y

	cParams := pigo.CascadeParams{
		MinSize:     e.MinSize,
		MaxSize:     e.MaxSize,
		ShiftFactor: e.ShiftFactor,
		ScaleFactor: e.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	faces := e.classifier.RunCascade(cParams, 0.0)
	faces = e.classifier.ClusterDetections(faces, e.IoUThreshold)

	detections := make([]Detection, 0, len(faces))
	for _, face := range faces {
		if face.Q < e.QThreshold {
			continue
		}
		box := geometry.Box{
			X: face.Col - face.Scale/2,
			Y: face.Row - face.Scale/2,
			W: face.Scale,
			H: face.Scale,
		}
		box = geometry.ClipTo(box, cols, rows)
		if box.Empty() {
			continue
		}
		detections = append(detections, Detection{Box: box, Confidence: face.Q})
	}

	log.Printf("engine(pigo): found %d face(s)", len(detections))
	return detections, nil
}
