package media

import (
	"bytes"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/facette/natsort"
	"github.com/rwcarlsen/goexif/exif"
)

// LoadImage decodes a JPEG/PNG/WebP file into an NRGBA canvas with its EXIF
// orientation already applied, so every box downstream lives in display
// coordinates. A decode failure is returned to the caller; batch loaders must
// tolerate it per file.
func LoadImage(path string) (*image.NRGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file %s: %w", path, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	log.Printf("loader: decoded %s (format: %s)", filepath.Base(path), format)

	return orientNRGBA(img, readOrientation(data)), nil
}

// readOrientation extracts the EXIF orientation tag, defaulting to 1 (upright)
// when EXIF is absent or unreadable.
func readOrientation(data []byte) int {
	exifData, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := exifData.Get(exif.Orientation)
	if err != nil || tag == nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil || orientation < 1 || orientation > 8 {
		return 1
	}
	return orientation
}

// orientNRGBA applies the EXIF orientation transform and guarantees an NRGBA
// canvas whose bounds start at the origin.
func orientNRGBA(img image.Image, orientation int) *image.NRGBA {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return imaging.Clone(img)
	}
}

// ListImages returns the supported raster files directly inside dir, in
// natural sort order so IMG_2 precedes IMG_10.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !IsRasterImage(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	natsort.Sort(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}
