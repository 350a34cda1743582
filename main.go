package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/camden-git/faceblur/blur"
	"github.com/camden-git/faceblur/config"
	"github.com/camden-git/faceblur/database"
	"github.com/camden-git/faceblur/media"
	"github.com/camden-git/faceblur/repository"
	"github.com/camden-git/faceblur/services"
	"github.com/camden-git/faceblur/session"
	"github.com/camden-git/faceblur/utils"
	"github.com/camden-git/faceblur/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.ExportsPath, cfg.ArchivesPath, cfg.ThumbnailsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}

	subDirs := map[media.AssetType]string{
		media.AssetTypeExport:    filepath.Base(cfg.ExportsPath),
		media.AssetTypeArchive:   filepath.Base(cfg.ArchivesPath),
		media.AssetTypeThumbnail: filepath.Base(cfg.ThumbnailsPath),
	}
	store, err := media.NewLocalStorage(cfg.StoragePath, subDirs)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize asset store: %v", err)
	}

	engine := initEngine(cfg)
	defer engine.Close()

	adapter := media.NewAdapter(engine)
	adapter.DetectCeiling = cfg.DetectCeiling
	adapter.ThumbnailPadding = cfg.ThumbnailPadding
	adapter.ChildAgeMax = cfg.ChildAgeMax

	workspace := session.NewWorkspace(adapter)
	workspace.ClusterThreshold = cfg.ClusterThreshold

	paths, err := media.ListImages(cfg.RootDirectory)
	if err != nil {
		log.Fatalf("FATAL: Failed to list images in %s: %v", cfg.RootDirectory, err)
	}
	if len(paths) == 0 {
		log.Fatalf("FATAL: No images found in %s", cfg.RootDirectory)
	}
	log.Printf("Found %d image(s) in %s", len(paths), cfg.RootDirectory)

	ctx := context.Background()
	for _, path := range paths {
		entry, err := workspace.AddFile(ctx, path)
		if err != nil {
			log.Printf("WARNING: Skipping %s: %v", path, err)
			continue
		}
		if entry.DetectErr != nil {
			log.Printf("WARNING: Detection failed on %s, image kept without faces", entry.Name)
		}
	}
	if len(workspace.Entries()) == 0 {
		log.Fatalf("FATAL: No image could be loaded from %s", cfg.RootDirectory)
	}
	log.Printf("Workspace holds %d image(s), %d person(s) found", len(workspace.Entries()), len(workspace.Persons()))

	// everyone gets blurred in batch mode; interactive review can deselect
	workspace.SelectAllPersons(true)

	recognition := services.NewRecognitionService(
		db,
		repository.NewPersonRepository(db),
		repository.NewPersonEmbeddingRepository(db),
		float32(cfg.SimilarityThreshold),
	)
	matches, err := recognition.MatchWorkspace(workspace)
	if err != nil {
		log.Printf("WARNING: Library matching failed: %v", err)
	} else {
		for _, m := range matches {
			log.Printf("Recognized %s (similarity %.3f)", m.PrimaryName, m.Similarity)
		}
	}

	style := blur.Style(cfg.BlurStyle)
	exporter := media.NewExporter(store)
	exporter.Quality = cfg.ExportQuality
	exporter.Suffix = cfg.ExportSuffix

	opts := blur.Options{
		EllipseMargin: cfg.EllipseMargin,
		SamplePadding: cfg.SamplePadding,
		BlurRadius:    cfg.BlurRadius,
		BlockSize:     cfg.PixelBlock,
	}
	processor := workers.NewExportProcessor(workspace, exporter, opts, cfg.ExportQueueSize, cfg.NumExportWorkers)
	processor.Progress = func(done, total int) {
		log.Printf("Progress: %d/%d", done, total)
	}
	defer processor.Stop()

	results := processor.ProcessBatch(style)
	exported := 0
	for _, r := range results {
		if r.Err != nil {
			log.Printf("WARNING: %s failed: %v", r.Name, r.Err)
			continue
		}
		exported++
	}
	log.Printf("Exported %d/%d image(s)", exported, len(results))

	if _, err := workers.SavePersonThumbnails(workspace, store); err != nil {
		log.Printf("WARNING: Failed to save person thumbnails: %v", err)
	}

	if exported > 0 {
		zipPath, zipSize, err := utils.CreateExportZip(cfg.ExportsPath, cfg.ArchivesPath)
		if err != nil {
			log.Printf("WARNING: Failed to create export archive: %v", err)
		} else {
			log.Printf("Archive ready: %s (%d bytes)", zipPath, zipSize)
		}
	}
}

// initEngine loads the DNN backend, falling back to the pure-Go cascade when
// the models are missing. Engine startup failure is fatal: the process can be
// retried once the model files are in place.
func initEngine(cfg config.Config) media.Engine {
	dnn, err := media.NewDNNEngine(media.DNNEnginePaths{
		DetectorConfig:  cfg.FaceDNNNetConfigPath,
		DetectorModel:   cfg.FaceDNNNetModelPath,
		RecognitionPath: cfg.FaceRecognitionPath,
		AgeModel:        cfg.FaceAgeModelPath,
		GenderModel:     cfg.FaceGenderModelPath,
	})
	if err == nil {
		log.Println("Using DNN detection engine")
		return dnn
	}
	log.Printf("WARNING: DNN engine unavailable (%v), trying pigo cascade", err)

	pigoEngine, pigoErr := media.NewPigoEngine(cfg.PigoCascadePath)
	if pigoErr != nil {
		log.Fatalf("FATAL: No detection engine could be started (dnn: %v, pigo: %v). Fix the model paths and run again.", err, pigoErr)
	}
	log.Println("Using pigo detection engine; age and identity data will be unavailable")
	return pigoEngine
}
