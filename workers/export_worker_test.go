package workers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/camden-git/faceblur/blur"
	"github.com/camden-git/faceblur/geometry"
	"github.com/camden-git/faceblur/media"
	"github.com/camden-git/faceblur/session"
)

// memStore keeps saved assets in memory so tests never touch the disk.
type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

var _ media.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (m *memStore) Save(assetType media.AssetType, filename string, data io.Reader) (string, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	rel := string(assetType) + "/" + filename
	m.mu.Lock()
	m.files[rel] = buf
	m.mu.Unlock()
	return rel, nil
}

func (m *memStore) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.files[relativePath]
	if !ok {
		return nil, nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(buf)), nil, nil
}

func (m *memStore) Delete(relativePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, relativePath)
	return nil
}

func (m *memStore) GetFullPath(relativePath string) (string, error) {
	return relativePath, nil
}

type stubEngine struct {
	detections []media.Detection
}

func (s *stubEngine) Detect(_ context.Context, _ image.Image) ([]media.Detection, error) {
	return s.detections, nil
}

func (s *stubEngine) Close() error { return nil }

func flatImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func newTestWorkspace(t *testing.T, names ...string) *session.Workspace {
	t.Helper()
	engine := &stubEngine{detections: []media.Detection{{
		Box:        geometry.Box{X: 20, Y: 20, W: 50, H: 50},
		Confidence: 0.9,
		Embedding:  []float32{1, 0, 0},
	}}}
	ws := session.NewWorkspace(media.NewAdapter(engine))
	for _, name := range names {
		ws.AddImage(context.Background(), name, flatImage(200, 200, color.NRGBA{R: 120, G: 80, B: 40, A: 255}))
	}
	return ws
}

func TestProcessBatchExportsEveryEntry(t *testing.T) {
	ws := newTestWorkspace(t, "one.jpg", "two.png", "three.jpg")
	store := newMemStore()
	proc := NewExportProcessor(ws, media.NewExporter(store), blur.DefaultOptions(), 10, 2)
	defer proc.Stop()

	var mu sync.Mutex
	var progress []int
	var finalTotal int
	proc.Progress = func(done, total int) {
		mu.Lock()
		progress = append(progress, done)
		finalTotal = total
		mu.Unlock()
	}

	results := proc.ProcessBatch(blur.StylePixelate)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	var paths []string
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("export of %s failed: %v", r.Name, r.Err)
		}
		paths = append(paths, r.Path)
	}
	sort.Strings(paths)

	want := []string{"export/one-blurred.jpg", "export/three-blurred.jpg", "export/two-blurred.png"}
	for i, p := range paths {
		if p != want[i] {
			t.Fatalf("unexpected export path %q, want %q", p, want[i])
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(progress) != 3 {
		t.Fatalf("expected 3 progress callbacks, got %d", len(progress))
	}
	sort.Ints(progress)
	if progress[2] != 3 || finalTotal != 3 {
		t.Fatalf("final progress must report 3/3, got %d/%d", progress[2], finalTotal)
	}
}

func TestQueueJobDeduplicates(t *testing.T) {
	ws := newTestWorkspace(t, "one.jpg")
	store := newMemStore()

	// no workers, so queued jobs stay pending
	proc := &ExportProcessor{
		JobQueue:  make(chan ExportJob, 10),
		Workspace: ws,
		Exporter:  media.NewExporter(store),
		Opts:      blur.DefaultOptions(),
		StopChan:  make(chan struct{}),
		Pending:   make(map[string]bool),
		Results:   make(chan ExportResult, 10),
	}

	entry := ws.Entries()[0]
	job := ExportJob{EntryID: entry.ID, Style: blur.StyleSmooth}
	if !proc.QueueJob(job) {
		t.Fatal("first queue attempt must succeed")
	}
	if proc.QueueJob(job) {
		t.Fatal("re-queueing a pending entry+style pair must be rejected")
	}
	if !proc.QueueJob(ExportJob{EntryID: entry.ID, Style: blur.StylePixelate}) {
		t.Fatal("a different style for the same entry is a distinct job")
	}
}

func TestProcessBatchReportsUnknownEntry(t *testing.T) {
	ws := newTestWorkspace(t, "one.jpg")
	store := newMemStore()
	proc := NewExportProcessor(ws, media.NewExporter(store), blur.DefaultOptions(), 10, 1)
	defer proc.Stop()

	if !proc.QueueJob(ExportJob{EntryID: "gone", Style: blur.StylePixelate}) {
		t.Fatal("queueing must succeed even for an unknown entry")
	}
	result := <-proc.Results
	if result.Err == nil {
		t.Fatal("expected an error for an entry that is not in the working set")
	}
}

func TestSavePersonThumbnails(t *testing.T) {
	ws := newTestWorkspace(t, "one.jpg", "two.jpg")
	store := newMemStore()

	saved, err := SavePersonThumbnails(ws, store)
	if err != nil {
		t.Fatalf("SavePersonThumbnails: %v", err)
	}
	if len(saved) != len(ws.Persons()) {
		t.Fatalf("expected %d thumbnails, got %d", len(ws.Persons()), len(saved))
	}
	for _, rel := range saved {
		buf, ok := store.files[rel]
		if !ok {
			t.Fatalf("thumbnail %s missing from store", rel)
		}
		if len(buf) < 2 || buf[0] != 0xff || buf[1] != 0xd8 {
			t.Fatalf("thumbnail %s is not a JPEG", rel)
		}
	}
}
