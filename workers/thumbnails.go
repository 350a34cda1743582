package workers

import (
	"fmt"
	"io"
	"log"

	"github.com/disintegration/imaging"

	"github.com/camden-git/faceblur/media"
	"github.com/camden-git/faceblur/session"
)

// SavePersonThumbnails writes each person's representative face crop to the
// store so a review UI or report can show who was found. Persons whose
// backend produced no thumbnail are skipped.
func SavePersonThumbnails(ws *session.Workspace, store media.Store) (map[string]string, error) {
	saved := make(map[string]string)
	for i, p := range ws.Persons() {
		thumb := p.Thumbnail()
		if thumb == nil {
			continue
		}

		pr, pw := io.Pipe()
		go func() {
			err := imaging.Encode(pw, thumb, imaging.JPEG, imaging.JPEGQuality(media.DefaultExportQuality))
			pw.CloseWithError(err)
		}()

		name := fmt.Sprintf("person-%03d.jpg", i+1)
		path, err := store.Save(media.AssetTypeThumbnail, name, pr)
		if err != nil {
			return saved, fmt.Errorf("saving thumbnail for person %s: %w", p.ID, err)
		}
		saved[p.ID] = path
	}
	log.Printf("Saved %d person thumbnail(s)", len(saved))
	return saved, nil
}
