// media/types.go
package media

import (
	"context"
	"image"
	"path/filepath"
	"strings"

	"github.com/camden-git/faceblur/geometry"
)

type AssetType string

const (
	AssetTypeExport    AssetType = "export"
	AssetTypeArchive   AssetType = "archive"
	AssetTypeThumbnail AssetType = "thumbnail"
	AssetTypeUnknown   AssetType = "unknown"
)

// Gender is the engine's coarse gender estimate.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
)

// Detection is one face reported by an Engine, in the coordinate frame of the
// image the engine was given. Age, gender and embedding are best-effort: an
// engine that cannot produce them leaves them zero, and downstream treats
// such faces as unknown-age singletons.
type Detection struct {
	Box              geometry.Box
	Confidence       float32
	Age              int
	Gender           Gender
	GenderConfidence float32
	Embedding        []float32
}

// Engine is the external face detection backend. Implementations must return
// boxes in the same coordinate frame as the input image; scaling back to the
// natural frame is the adapter's job, not the engine's.
type Engine interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
	Close() error
}

var supportedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
}

// IsRasterImage checks if the filename has a supported raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}
