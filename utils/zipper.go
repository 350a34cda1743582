package utils

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// CreateExportZip bundles every exported image in exportDir into a single ZIP
// archive under archiveSaveDir.
// Returns: full path of the archive, size in bytes, error.
func CreateExportZip(exportDir, archiveSaveDir string) (string, int64, error) {
	exportDir = filepath.Clean(exportDir)

	if _, err := os.Stat(exportDir); os.IsNotExist(err) {
		return "", 0, fmt.Errorf("export folder not found: %s", exportDir)
	} else if err != nil {
		return "", 0, fmt.Errorf("error stating export folder %s: %w", exportDir, err)
	}

	if err := os.MkdirAll(archiveSaveDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create zip save directory %s: %w", archiveSaveDir, err)
	}

	timestamp := time.Now().Unix()
	archiveUUID, _ := uuid.NewRandom()
	zipFilename := fmt.Sprintf("blurred_%d_%s.zip", timestamp, archiveUUID.String()[:8])
	zipFilePath := filepath.Join(archiveSaveDir, zipFilename)

	zipFile, err := os.Create(zipFilePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create zip file %s: %w", zipFilePath, err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	log.Printf("zipper: Archiving exported files from %s", exportDir)
	entries, err := os.ReadDir(exportDir)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read export directory %s: %w", exportDir, err)
	}

	foundFiles := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue // skip subdirectories
		}

		exportedPath := filepath.Join(exportDir, entry.Name())
		fileToZip, err := os.Open(exportedPath)
		if err != nil {
			log.Printf("zipper: Failed to open file %s for zipping: %v. Skipping.", exportedPath, err)
			continue
		}

		writer, err := zipWriter.Create(entry.Name())
		if err != nil {
			fileToZip.Close()
			log.Printf("zipper: Failed to create entry in zip for %s: %v. Skipping.", entry.Name(), err)
			continue
		}

		_, err = io.Copy(writer, fileToZip)
		fileToZip.Close()
		if err != nil {
			log.Printf("zipper: Failed to write file %s to zip: %v. Skipping.", entry.Name(), err)
			continue
		}
		foundFiles = true
	}

	if !foundFiles {
		zipWriter.Close()
		zipFile.Close()
		os.Remove(zipFilePath)
		return "", 0, fmt.Errorf("no exported files found in %s to zip", exportDir)
	}

	if err := zipWriter.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to finalize zip writer for %s: %w", zipFilePath, err)
	}

	zipInfo, err := os.Stat(zipFilePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat created zip file %s: %w", zipFilePath, err)
	}

	log.Printf("Successfully created export zip: %s (Size: %d bytes)", zipFilePath, zipInfo.Size())
	return zipFilePath, zipInfo.Size(), nil
}
