package workers

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Uploader archives a local photo file to remote storage.
type Uploader interface {
	UploadFile(ctx context.Context, path string) error
}

// ArchiveWorker periodically sweeps the photos directory and uploads files
// not yet archived. Crawl runs wipe the directory, so the archive is the
// only place photos survive beyond one cycle.
type ArchiveWorker struct {
	photosDir string
	uploader  Uploader
	interval  time.Duration

	mu   sync.Mutex
	seen map[string]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func NewArchiveWorker(photosDir string, uploader Uploader, interval time.Duration) *ArchiveWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ArchiveWorker{
		photosDir: photosDir,
		uploader:  uploader,
		interval:  interval,
		seen:      make(map[string]struct{}),
	}
}

// Start launches the sweep loop. Call Stop to shut it down.
func (w *ArchiveWorker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.sweep(ctx)
			}
		}
	}()
}

func (w *ArchiveWorker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (w *ArchiveWorker) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.photosDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("archive sweep: %v", err)
		}
		return
	}

	uploaded := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.photosDir, e.Name())

		w.mu.Lock()
		_, done := w.seen[path]
		w.mu.Unlock()
		if done {
			continue
		}

		if err := w.uploader.UploadFile(ctx, path); err != nil {
			log.Printf("archive %s: %v", e.Name(), err)
			continue
		}
		w.mu.Lock()
		w.seen[path] = struct{}{}
		w.mu.Unlock()
		uploaded++
	}
	if uploaded > 0 {
		log.Printf("Archived %d photos", uploaded)
	}
}
