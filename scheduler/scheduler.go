package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	crawlHour       = 8
	morningPostHour = 9
	firstHourlyHour = 10

	operatingOpen  = 10
	operatingClose = 22

	shutdownWait = 30 * time.Second
)

// Crawler runs one full acquisition pass. The context is cancelled on
// scheduler shutdown.
type Crawler interface {
	CrawlAll(ctx context.Context)
}

// Poster runs one publication pass.
type Poster interface {
	PostMorning()
	PostHourly(now time.Time)
}

// ConnectionTester is checked once before any trigger is registered; a
// failing delivery backend means the scheduler refuses to start.
type ConnectionTester interface {
	TestConnection() bool
}

// Scheduler owns the recurring cadence triggers: the daily crawl, the
// morning publication and the hourly publication. Triggers of different
// kinds may overlap; a single trigger never overlaps itself.
type Scheduler struct {
	crawler   Crawler
	poster    Poster
	tester    ConnectionTester
	crawlCron string // optional cron expression overriding the fixed crawl time
	verbose   bool

	now func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	cron     *cron.Cron
	stopOnce sync.Once
}

func New(crawler Crawler, poster Poster, tester ConnectionTester, crawlCron string, verbose bool) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		crawler:   crawler,
		poster:    poster,
		tester:    tester,
		crawlCron: crawlCron,
		verbose:   verbose,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start enters fixed-time mode: crawl at 08:00, morning publish at 09:00,
// hourly publish from 10:00, each recurring daily or hourly. Targets already
// passed today wrap to tomorrow.
func (s *Scheduler) Start() error {
	if err := s.checkConnection(); err != nil {
		return err
	}

	now := s.now()
	if s.crawlCron != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.crawlCron, s.runCrawl); err != nil {
			return fmt.Errorf("invalid crawl cron %q: %w", s.crawlCron, err)
		}
		c.Start()
		s.cron = c
		log.Printf("Crawl scheduled via cron expression %q", s.crawlCron)
	} else {
		s.recur(DelayUntil(now, crawlHour, 0), 24*time.Hour, s.runCrawl)
	}
	s.recur(DelayUntil(now, morningPostHour, 0), 24*time.Hour, s.runMorningPost)
	s.recur(DelayUntil(now, firstHourlyHour, 0), time.Hour, s.runHourlyPost)

	log.Println("Scheduler started")
	log.Printf("  %02d:00 crawl", crawlHour)
	log.Printf("  %02d:00 morning publish", morningPostHour)
	log.Printf("  %02d:00-%02d:00 hourly publish", firstHourlyHour, operatingClose)
	return nil
}

// StartNow enters immediate mode: a crawl runs at once, and the hourly
// publish aligns to the top of the next clock hour, recurring hourly.
func (s *Scheduler) StartNow() error {
	if err := s.checkConnection(); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCrawl()
	}()

	delay := DelayToNextHour(s.now())
	s.recur(delay, time.Hour, s.runHourlyPost)

	log.Printf("Scheduler started (immediate mode), first publish in %s", delay.Round(time.Second))
	return nil
}

func (s *Scheduler) checkConnection() error {
	if s.tester != nil && !s.tester.TestConnection() {
		return fmt.Errorf("delivery connection check failed")
	}
	return nil
}

// recur fires fn after delay and then every interval, until shutdown. The
// trigger body runs on the timer goroutine, so one trigger never overlaps
// itself.
func (s *Scheduler) recur(delay, interval time.Duration, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}
		fn()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func (s *Scheduler) runCrawl() {
	log.Println("Crawl trigger fired")
	s.crawler.CrawlAll(s.ctx)
}

func (s *Scheduler) runMorningPost() {
	log.Println("Morning publish trigger fired")
	s.poster.PostMorning()
}

func (s *Scheduler) runHourlyPost() {
	now := s.now()
	if !WithinOperatingHours(now.Hour()) {
		if s.verbose {
			log.Printf("Hourly publish skipped outside operating hours (%02d:00)", now.Hour())
		}
		return
	}
	log.Printf("Hourly publish trigger fired (%02d:00)", now.Hour())
	s.poster.PostHourly(now)
}

// Stop requests cooperative shutdown and waits up to shutdownWait for
// in-flight triggers before giving up on them. Idempotent; safe from a
// signal handler.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		log.Println("Scheduler stopping...")
		// cron.Stop's context is done once in-flight cron jobs finish;
		// a cron-driven crawl counts against the shutdown bound too.
		var cronDone <-chan struct{}
		if s.cron != nil {
			cronDone = s.cron.Stop().Done()
		}
		s.cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			if cronDone != nil {
				<-cronDone
			}
			close(done)
		}()
		select {
		case <-done:
			log.Println("Scheduler stopped")
		case <-time.After(shutdownWait):
			log.Println("Scheduler stop timed out, abandoning in-flight work")
		}
	})
}

// WithinOperatingHours reports whether the hourly publish gate is open.
func WithinOperatingHours(hour int) bool {
	return hour >= operatingOpen && hour <= operatingClose
}

// DelayUntil computes the wait from now to the next wall-clock occurrence of
// hour:minute, wrapping to tomorrow when the target has already passed.
func DelayUntil(now time.Time, hour, minute int) time.Duration {
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !target.After(now) {
		target = target.Add(24 * time.Hour)
	}
	return target.Sub(now)
}

// DelayToNextHour computes the wait to the top of the next clock hour.
func DelayToNextHour(now time.Time) time.Duration {
	next := now.Truncate(time.Hour).Add(time.Hour)
	return next.Sub(now)
}
