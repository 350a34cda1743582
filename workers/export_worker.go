package workers

import (
	"fmt"
	"log"
	"sync"

	"github.com/camden-git/faceblur/blur"
	"github.com/camden-git/faceblur/media"
	"github.com/camden-git/faceblur/session"
)

type ExportJob struct {
	EntryID string
	Style   blur.Style
}

// ExportResult is what one finished job produced: the stored relative path on
// success, or the error that sank it.
type ExportResult struct {
	EntryID string
	Name    string
	Path    string
	Err     error
}

// ProgressFunc receives done and total counts after every finished job.
type ProgressFunc func(done, total int)

// ExportProcessor renders and exports workspace entries on a pool of workers.
type ExportProcessor struct {
	JobQueue  chan ExportJob
	Workspace *session.Workspace
	Exporter  *media.Exporter
	Opts      blur.Options
	Wg        sync.WaitGroup
	StopChan  chan struct{}
	Pending   map[string]bool
	Mutex     sync.Mutex

	Progress ProgressFunc
	Results  chan ExportResult

	done  int
	total int
}

func NewExportProcessor(ws *session.Workspace, exporter *media.Exporter, opts blur.Options, queueSize, numWorkers int) *ExportProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	proc := &ExportProcessor{
		JobQueue:  make(chan ExportJob, queueSize),
		Workspace: ws,
		Exporter:  exporter,
		Opts:      opts,
		StopChan:  make(chan struct{}),
		Pending:   make(map[string]bool),
		Results:   make(chan ExportResult, queueSize),
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d export worker(s) with queue size %d", numWorkers, queueSize)
	return proc
}

func (ep *ExportProcessor) worker(id int) {
	defer ep.Wg.Done()

	log.Printf("Export worker %d started", id)
	for {
		select {
		case job, ok := <-ep.JobQueue:
			if !ok {
				log.Printf("Export worker %d stopping: Job queue closed", id)
				return
			}

			pendingKey := fmt.Sprintf("%s:%s", job.EntryID, job.Style)
			log.Printf("Worker %d: Received export job for entry %s (style %s)", id, job.EntryID, job.Style)

			result := ep.processJob(job)
			if result.Err != nil {
				log.Printf("Worker %d: ERROR exporting %s: %v", id, result.Name, result.Err)
			} else {
				log.Printf("Worker %d: Exported %s to %s", id, result.Name, result.Path)
			}

			ep.Mutex.Lock()
			delete(ep.Pending, pendingKey)
			ep.done++
			done, total := ep.done, ep.total
			ep.Mutex.Unlock()

			// progress is reported before the result is published so a
			// caller draining Results observes every callback
			if ep.Progress != nil {
				ep.Progress(done, total)
			}
			ep.Results <- result

		case <-ep.StopChan:
			log.Printf("Export worker %d stopping: Stop signal received", id)
			return
		}
	}
}

func (ep *ExportProcessor) processJob(job ExportJob) ExportResult {
	entry := ep.Workspace.EntryByID(job.EntryID)
	if entry == nil {
		return ExportResult{EntryID: job.EntryID, Err: fmt.Errorf("entry %s not in working set", job.EntryID)}
	}

	canvas, err := ep.Workspace.Process(entry, job.Style, ep.Opts)
	if err != nil {
		return ExportResult{EntryID: job.EntryID, Name: entry.Name, Err: fmt.Errorf("processing failed: %w", err)}
	}

	path, err := ep.Exporter.Export(entry.Name, canvas)
	if err != nil {
		return ExportResult{EntryID: job.EntryID, Name: entry.Name, Err: fmt.Errorf("export failed: %w", err)}
	}
	return ExportResult{EntryID: job.EntryID, Name: entry.Name, Path: path}
}

// QueueJob queues an export if the same entry+style pair is not already
// pending.
func (ep *ExportProcessor) QueueJob(job ExportJob) bool {
	pendingKey := fmt.Sprintf("%s:%s", job.EntryID, job.Style)

	ep.Mutex.Lock()
	if ep.Pending[pendingKey] {
		ep.Mutex.Unlock()
		return false
	}
	ep.Pending[pendingKey] = true
	ep.total++
	ep.Mutex.Unlock()

	select {
	case ep.JobQueue <- job:
		log.Printf("Queued export for entry: %s", job.EntryID)
		return true
	default:
		log.Printf("WARNING: Export job queue full. Failed to queue entry: %s", job.EntryID)
		ep.Mutex.Lock()
		delete(ep.Pending, pendingKey)
		ep.total--
		ep.Mutex.Unlock()
		return false
	}
}

// ProcessBatch queues every entry in the working set with the given style and
// blocks until all of them finish, returning results in completion order.
func (ep *ExportProcessor) ProcessBatch(style blur.Style) []ExportResult {
	entries := ep.Workspace.Entries()
	queued := 0
	for _, e := range entries {
		if ep.QueueJob(ExportJob{EntryID: e.ID, Style: style}) {
			queued++
		}
	}

	results := make([]ExportResult, 0, queued)
	for i := 0; i < queued; i++ {
		results = append(results, <-ep.Results)
	}
	return results
}

func (ep *ExportProcessor) Stop() {
	log.Println("Stopping export workers...")
	close(ep.StopChan)
	ep.Wg.Wait()
	log.Println("All export workers stopped")
}
