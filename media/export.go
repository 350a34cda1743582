package media

import (
	"fmt"
	"image"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	// DefaultExportQuality is the JPEG quality for lossy exports.
	DefaultExportQuality = 92

	// DefaultExportSuffix is appended to the source basename so the output
	// name is deterministic.
	DefaultExportSuffix = "-blurred"
)

// Exporter encodes processed canvases and hands them to a Store. The output
// name derives from the source filename plus a fixed suffix; PNG stays PNG,
// everything else (including WebP, which has no encoder) goes out as JPEG.
type Exporter struct {
	store   Store
	Quality int
	Suffix  string
}

// NewExporter creates an exporter over the given store.
func NewExporter(store Store) *Exporter {
	return &Exporter{
		store:   store,
		Quality: DefaultExportQuality,
		Suffix:  DefaultExportSuffix,
	}
}

// ExportName maps a source filename to its deterministic export name.
func (e *Exporter) ExportName(sourceName string) string {
	base := strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName))
	ext := strings.ToLower(filepath.Ext(sourceName))
	if ext != ".png" {
		ext = ".jpg"
	}
	return base + e.Suffix + ext
}

// Export encodes the canvas and saves it, returning the relative path within
// the store. An encode failure is per-image; callers exporting a batch must
// carry on with the remaining images.
func (e *Exporter) Export(sourceName string, canvas image.Image) (string, error) {
	if canvas == nil {
		return "", fmt.Errorf("export: nil canvas for %s", sourceName)
	}

	targetName := e.ExportName(sourceName)
	format := imaging.JPEG
	if strings.HasSuffix(targetName, ".png") {
		format = imaging.PNG
	}

	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, canvas, format, imaging.JPEGQuality(e.Quality))
		if err != nil {
			log.Printf("export: failed to encode %s: %v", targetName, err)
			writer.CloseWithError(fmt.Errorf("export encoding failed: %w", err))
			return
		}
		writer.Close()
	}()

	savedRelPath, err := e.store.Save(AssetTypeExport, targetName, reader)
	if err != nil {
		return "", fmt.Errorf("failed to save export via store: %w", err)
	}

	log.Printf("export: wrote %s", savedRelPath)
	return savedRelPath, nil
}
