package services

import (
	"context"
	"image"
	"math"
	"testing"

	"gorm.io/gorm"

	"github.com/camden-git/faceblur/database"
	"github.com/camden-git/faceblur/geometry"
	"github.com/camden-git/faceblur/media"
	"github.com/camden-git/faceblur/repository"
	"github.com/camden-git/faceblur/session"
)

type fixedEngine struct {
	detections []media.Detection
}

func (f *fixedEngine) Detect(_ context.Context, _ image.Image) ([]media.Detection, error) {
	return f.detections, nil
}

func (f *fixedEngine) Close() error { return nil }

func newTestService(t *testing.T) (*RecognitionService, *gorm.DB) {
	t.Helper()
	db, err := database.InitGormDB(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	svc := NewRecognitionService(
		db,
		repository.NewPersonRepository(db),
		repository.NewPersonEmbeddingRepository(db),
		DefaultSimilarityThreshold,
	)
	return svc, db
}

func newWorkspaceWithEmbedding(t *testing.T, emb []float32) *session.Workspace {
	t.Helper()
	engine := &fixedEngine{detections: []media.Detection{{
		Box:        geometry.Box{X: 10, Y: 10, W: 40, H: 40},
		Confidence: 0.9,
		Embedding:  emb,
	}}}
	ws := session.NewWorkspace(media.NewAdapter(engine))
	ws.AddImage(context.Background(), "a.jpg", image.NewNRGBA(image.Rect(0, 0, 200, 200)))
	return ws
}

func TestEnrollAndMatchRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	seed := newWorkspaceWithEmbedding(t, []float32{1, 0, 0})
	persons := seed.Persons()
	if len(persons) != 1 {
		t.Fatalf("expected one cluster, got %d", len(persons))
	}
	if _, err := svc.EnrollCluster(persons[0], "Alex", true); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	// a slightly rotated vector still lands above the cosine threshold
	ws := newWorkspaceWithEmbedding(t, []float32{0.95, 0.31, 0})
	ws.SetPersonSelected(ws.Persons()[0].ID, false)
	matches, err := svc.MatchWorkspace(ws)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one match, got %d", len(matches))
	}
	if matches[0].PrimaryName != "Alex" {
		t.Fatalf("matched wrong person: %s", matches[0].PrimaryName)
	}
	if !matches[0].AutoBlur {
		t.Fatal("expected auto-blur flag to carry through")
	}
	if !ws.Entries()[0].Regions.Faces[0].Selected {
		t.Fatal("auto-blur match must select the matched cluster")
	}
}

func TestMatchSkipsDissimilarClusters(t *testing.T) {
	svc, _ := newTestService(t)

	seed := newWorkspaceWithEmbedding(t, []float32{1, 0, 0})
	if _, err := svc.EnrollCluster(seed.Persons()[0], "Alex", true); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	ws := newWorkspaceWithEmbedding(t, []float32{0, 1, 0})
	matches, err := svc.MatchWorkspace(ws)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("orthogonal embedding must not match, got %d matches", len(matches))
	}
}

func TestMatchWithEmptyLibrary(t *testing.T) {
	svc, _ := newTestService(t)
	ws := newWorkspaceWithEmbedding(t, []float32{1, 0, 0})
	matches, err := svc.MatchWorkspace(ws)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if matches != nil {
		t.Fatalf("empty library must yield no matches, got %v", matches)
	}
}

func TestEnrollExistingPersonAppendsEmbeddings(t *testing.T) {
	svc, db := newTestService(t)

	first := newWorkspaceWithEmbedding(t, []float32{1, 0, 0})
	if _, err := svc.EnrollCluster(first.Persons()[0], "Alex", false); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	second := newWorkspaceWithEmbedding(t, []float32{0.9, 0.2, 0.1})
	person, err := svc.EnrollCluster(second.Persons()[0], "Alex", false)
	if err != nil {
		t.Fatalf("second enroll: %v", err)
	}

	embeddings, err := repository.NewPersonEmbeddingRepository(db).ListByPersonID(person.ID)
	if err != nil {
		t.Fatalf("list embeddings: %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("expected 2 stored embeddings for the same name, got %d", len(embeddings))
	}
}

func TestCalculateSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"empty", nil, nil, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateSimilarity(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-5 {
				t.Fatalf("similarity = %f, want %f", got, tt.want)
			}
		})
	}
}
