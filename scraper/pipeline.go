package scraper

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Markiayn/Parser/config"
	"github.com/Markiayn/Parser/files"
	"github.com/Markiayn/Parser/logging"
	"github.com/Markiayn/Parser/models"
	"github.com/Markiayn/Parser/storage"
)

// Catalog query constants: apartments offered for long-term rent.
const (
	realtyTypeApartment = 2
	operationRent       = 3
)

// Pipeline drives a full acquisition run: for every configured city it pages
// through the search index, filters raw records, harvests the browser side
// channel per accepted listing and persists the result. Everything inside a
// run is strictly sequential; the browser session and correlation state are
// singular resources.
type Pipeline struct {
	cfg    *config.Config
	source *SourceClient
	store  storage.Store
	warn   *logging.Warnings

	// openSession is swapped out in tests.
	openSession func() (sessionDriver, error)
}

func NewPipeline(cfg *config.Config, source *SourceClient, store storage.Store, warn *logging.Warnings) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		source: source,
		store:  store,
		warn:   warn,
	}
	p.openSession = func() (sessionDriver, error) {
		return OpenSession(cfg.Site, cfg.ChromePath, cfg.Verbose)
	}
	return p
}

// CrawlAll runs one full acquisition pass over every configured city.
// A city's failure never stops the remaining cities.
func (p *Pipeline) CrawlAll(ctx context.Context) {
	runID := uuid.NewString()[:8]
	if ctx.Err() != nil {
		log.Printf("[crawl %s] cancelled before start", runID)
		return
	}
	log.Printf("[crawl %s] starting, %d cities", runID, len(p.cfg.Cities))

	files.ClearDir(p.cfg.PhotosDir)

	for _, city := range p.cfg.Cities {
		if ctx.Err() != nil {
			log.Printf("[crawl %s] cancelled, remaining cities left untouched", runID)
			return
		}
		if err := p.crawlCity(ctx, runID, city); err != nil {
			log.Printf("[crawl %s] %s failed: %v", runID, city.Name, err)
		}
	}
	log.Printf("[crawl %s] done", runID)
}

func (p *Pipeline) crawlCity(ctx context.Context, runID string, city config.City) error {
	// A cancelled run must not wipe a partition it will never refill.
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Printf("[crawl %s] city %s (region=%d table=%s hours=%d)", runID, city.Name, city.RegionID, city.Table, city.Hours)

	if err := p.store.EnsurePartition(city.Table); err != nil {
		return fmt.Errorf("ensure partition %s: %w", city.Table, err)
	}
	if err := p.store.ClearPartition(city.Table); err != nil {
		return fmt.Errorf("clear partition %s: %w", city.Table, err)
	}

	sess, err := p.openSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	stats := &models.CrawlStats{}

	for page := 0; page < p.cfg.MaxPages; page++ {
		ids, err := p.source.SearchPage(ctx, city.RegionID, realtyTypeApartment, operationRent, page)
		if err != nil {
			// Abandon this city's remaining pages, not the whole run.
			log.Printf("[crawl %s] %s page %d: %v", runID, city.Name, page, err)
			break
		}
		if len(ids) == 0 {
			if p.cfg.Verbose {
				log.Printf("[crawl %s] %s: no more listings at page %d", runID, city.Name, page)
			}
			break
		}
		stats.TotalFound += len(ids)

		for _, id := range ids {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			outcome := p.processListing(ctx, sess, city, id, stats)
			if outcome.err != nil && p.cfg.Verbose {
				log.Printf("[crawl %s] listing %d skipped: %v", runID, id, outcome.err)
			}
		}
	}

	log.Printf("[crawl %s] %s: %s", runID, city.Name, stats.Summary(city.Hours))
	return nil
}

// itemOutcome is the per-listing result consumed by the page loop. A single
// listing's failure is a skip, never an abort.
type itemOutcome struct {
	rejection Rejection
	err       error
}

func (p *Pipeline) processListing(ctx context.Context, sess sessionDriver, city config.City, id int, stats *models.CrawlStats) itemOutcome {
	raw, err := p.source.FetchDetail(ctx, id)
	if err != nil {
		return itemOutcome{err: err}
	}
	// The search index is authoritative for the ID; some detail payloads
	// omit realty_id, which would otherwise persist a row keyed 0.
	raw.ID = id

	apt, rej := Evaluate(raw, FilterParams{
		Now:        time.Now(),
		HoursLimit: city.Hours,
		MinRooms:   p.cfg.MinRooms,
		MinArea:    p.cfg.MinArea,
	})
	if rej != Accepted {
		switch rej {
		case RejectEmptyDate:
			stats.RejectedEmptyDate++
		case RejectTooOld:
			stats.RejectedTooOld++
		case RejectNoURL:
			stats.RejectedNoURL++
		}
		return itemOutcome{rejection: rej}
	}

	listingURL := p.source.ListingURL(raw.BeautifulURL)
	harvest, err := sess.Harvest(listingURL)
	if err != nil {
		return itemOutcome{err: err}
	}

	photoURLs := harvest.PhotoURLs
	if len(photoURLs) == 0 {
		// Cached gallery renders emit no photo requests; fall back to
		// the static HTML.
		if fallback, err := p.source.FetchGalleryPhotos(ctx, listingURL); err == nil {
			photoURLs = fallback
		}
	}
	p.downloadPhotos(ctx, apt, photoURLs)

	if harvest.PhoneToken != "" {
		phone, err := p.source.FetchPhone(ctx, harvest.PhoneToken)
		if err != nil {
			if p.cfg.Verbose {
				log.Printf("Phone lookup for %d failed: %v", id, err)
			}
		} else {
			apt.Phone = phone
		}
	}

	inserted, err := p.store.InsertIfAbsent(city.Table, apt)
	if err != nil {
		p.warn.Warnf("persist %d into %s: %v", apt.ID, city.Table, err)
		return itemOutcome{err: err}
	}

	stats.Accepted++
	if p.cfg.Verbose {
		log.Printf("Processed %s (new=%v)", apt, inserted)
	}
	return itemOutcome{rejection: Accepted}
}

// downloadPhotos saves intercepted photos under deterministic names keyed by
// listing ID and sequence number. Failed downloads are skipped silently; the
// photo is simply absent.
func (p *Pipeline) downloadPhotos(ctx context.Context, apt *models.Apartment, urls []string) {
	counter := 1
	for _, u := range urls {
		if counter > p.cfg.MaxPhotos {
			break
		}
		dest := filepath.Join(p.cfg.PhotosDir, fmt.Sprintf("%d_net_%d.webp", apt.ID, counter))
		if err := p.source.DownloadPhoto(ctx, u, dest); err != nil {
			continue
		}
		apt.AddPhoto(dest)
		counter++
	}
}
