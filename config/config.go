package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultExportsSubDir    = "exports"
	DefaultArchivesSubDir   = "archives"
	DefaultThumbnailsSubDir = "thumbnails"
)

const (
	defaultExportQueueSize  = 200
	defaultNumExportWorkers = 4
)

type Config struct {
	// source directory (where input photos are scanned)
	RootDirectory string

	// person library database path
	DatabasePath string

	// output storage configuration
	StoragePath    string // primary root for generated assets (exports, zips, thumbs)
	ExportsPath    string // full-calculated path for blurred exports
	ArchivesPath   string // full-calculated path for export archives
	ThumbnailsPath string // full-calculated path for person thumbnails

	// detection settings
	DetectCeiling    int
	ThumbnailPadding int
	ChildAgeMax      int

	// export settings
	ExportQuality int
	ExportSuffix  string
	BlurStyle     string

	// blur settings
	EllipseMargin int
	SamplePadding int
	BlurRadius    float64
	PixelBlock    int

	// worker settings
	ExportQueueSize  int
	NumExportWorkers int

	// clustering and recognition
	ClusterThreshold    float64
	SimilarityThreshold float64

	// face detection model paths (DNN)
	FaceDNNNetConfigPath string
	FaceDNNNetModelPath  string
	FaceRecognitionPath  string
	FaceAgeModelPath     string
	FaceGenderModelPath  string

	// pure-Go fallback cascade, used when the DNN models are unavailable
	PigoCascadePath string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	root := getEnvOrDefault("ROOT_DIRECTORY", ".")
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for root directory '%s': %w", root, err)
	}

	dbPath := getEnvOrDefault("DATABASE_PATH", "people.db")

	storage := getEnvOrDefault("STORAGE_PATH", filepath.Join(".", "output"))
	absStorage, err := filepath.Abs(storage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for storage '%s': %w", storage, err)
	}

	exportSubDir := getEnvOrDefault("EXPORTS_SUBDIR", DefaultExportsSubDir)
	archiveSubDir := getEnvOrDefault("ARCHIVES_SUBDIR", DefaultArchivesSubDir)
	thumbSubDir := getEnvOrDefault("THUMBNAILS_SUBDIR", DefaultThumbnailsSubDir)

	cfg := Config{
		RootDirectory:  absRoot,
		DatabasePath:   dbPath,
		StoragePath:    absStorage,
		ExportsPath:    filepath.Join(absStorage, exportSubDir),
		ArchivesPath:   filepath.Join(absStorage, archiveSubDir),
		ThumbnailsPath: filepath.Join(absStorage, thumbSubDir),

		DetectCeiling:    getEnvIntOrDefault("DETECT_CEILING", 1920),
		ThumbnailPadding: getEnvIntOrDefault("THUMBNAIL_PADDING", 20),
		ChildAgeMax:      getEnvIntOrDefault("CHILD_AGE_MAX", 18),

		ExportQuality: getEnvIntOrDefault("EXPORT_QUALITY", 92),
		ExportSuffix:  getEnvOrDefault("EXPORT_SUFFIX", "-blurred"),
		BlurStyle:     getEnvOrDefault("BLUR_STYLE", "smooth"),

		EllipseMargin: getEnvIntOrDefault("BLUR_ELLIPSE_MARGIN", 10),
		SamplePadding: getEnvIntOrDefault("BLUR_SAMPLE_PADDING", 50),
		BlurRadius:    getEnvFloatOrDefault("BLUR_RADIUS", 30.0),
		PixelBlock:    getEnvIntOrDefault("PIXEL_BLOCK_SIZE", 24),

		ExportQueueSize:  getEnvIntOrDefault("EXPORT_QUEUE_SIZE", defaultExportQueueSize),
		NumExportWorkers: getEnvIntOrDefault("NUM_EXPORT_WORKERS", defaultNumExportWorkers),

		ClusterThreshold:    getEnvFloatOrDefault("CLUSTER_THRESHOLD", 0.6),
		SimilarityThreshold: getEnvFloatOrDefault("FACE_SIMILARITY_THRESHOLD", 0.5),

		FaceDNNNetConfigPath: getEnvOrDefault("FACE_DNN_CONFIG_PATH", "./models/deploy.prototxt.txt"),
		FaceDNNNetModelPath:  getEnvOrDefault("FACE_DNN_MODEL_PATH", "./models/res10_300x300_ssd_iter_140000_fp16.caffemodel"),
		FaceRecognitionPath:  getEnvOrDefault("FACE_RECOGNITION_MODEL_PATH", "./models/arcface.onnx"),
		FaceAgeModelPath:     getEnvOrDefault("FACE_AGE_MODEL_PATH", "./models/age_net.caffemodel"),
		FaceGenderModelPath:  getEnvOrDefault("FACE_GENDER_MODEL_PATH", "./models/gender_net.caffemodel"),

		PigoCascadePath: getEnvOrDefault("PIGO_CASCADE_PATH", "./models/facefinder"),
	}

	return cfg, nil
}
