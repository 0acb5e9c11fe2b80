package scheduler

import (
	"context"
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 5, 10, hour, minute, 0, 0, time.UTC)
}

func TestDelayUntil_TargetAhead(t *testing.T) {
	got := DelayUntil(at(7, 0), 8, 0)
	if got != time.Hour {
		t.Fatalf("expected 1h, got %s", got)
	}
}

func TestDelayUntil_WrapsToTomorrow(t *testing.T) {
	// 09:30 aiming at 08:00 waits through the rest of today plus 8h.
	got := DelayUntil(at(9, 30), 8, 0)
	want := 22*time.Hour + 30*time.Minute
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestDelayUntil_ExactTargetWraps(t *testing.T) {
	got := DelayUntil(at(8, 0), 8, 0)
	if got != 24*time.Hour {
		t.Fatalf("expected a full day, got %s", got)
	}
}

func TestDelayToNextHour(t *testing.T) {
	got := DelayToNextHour(at(9, 30))
	if got != 30*time.Minute {
		t.Fatalf("expected 30m, got %s", got)
	}

	got = DelayToNextHour(time.Date(2025, 5, 10, 23, 59, 0, 0, time.UTC))
	if got != time.Minute {
		t.Fatalf("expected 1m across midnight, got %s", got)
	}
}

func TestWithinOperatingHours(t *testing.T) {
	cases := []struct {
		hour int
		want bool
	}{
		{5, false},
		{9, false},
		{10, true},
		{14, true},
		{22, true},
		{23, false},
	}
	for _, c := range cases {
		if got := WithinOperatingHours(c.hour); got != c.want {
			t.Fatalf("hour %d: expected %v, got %v", c.hour, c.want, got)
		}
	}
}

type countingPoster struct {
	hourly  int
	morning int
}

func (p *countingPoster) PostMorning()             { p.morning++ }
func (p *countingPoster) PostHourly(now time.Time) { p.hourly++ }

type noopCrawler struct{}

func (noopCrawler) CrawlAll(context.Context) {}

func TestHourlyTriggerGate(t *testing.T) {
	poster := &countingPoster{}
	s := New(noopCrawler{}, poster, nil, "", false)

	s.now = func() time.Time { return at(23, 0) }
	s.runHourlyPost()
	if poster.hourly != 0 {
		t.Fatalf("trigger at 23:00 must be a no-op")
	}

	s.now = func() time.Time { return at(5, 0) }
	s.runHourlyPost()
	if poster.hourly != 0 {
		t.Fatalf("trigger at 05:00 must be a no-op")
	}

	s.now = func() time.Time { return at(14, 0) }
	s.runHourlyPost()
	if poster.hourly != 1 {
		t.Fatalf("trigger at 14:00 must execute, got %d runs", poster.hourly)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(noopCrawler{}, &countingPoster{}, nil, "", false)
	s.Stop()
	s.Stop() // must not panic or block
}

type blockingCrawler struct {
	started chan struct{}
	release chan struct{}
}

func (c *blockingCrawler) CrawlAll(context.Context) {
	c.started <- struct{}{}
	<-c.release
}

func TestStopWaitsForInFlightCronCrawl(t *testing.T) {
	// Buffered so a second cron firing never wedges on the notification.
	crawler := &blockingCrawler{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	s := New(crawler, &countingPoster{}, nil, "@every 1s", false)
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	select {
	case <-crawler.started:
	case <-time.After(3 * time.Second):
		t.Fatalf("cron crawl never fired")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatalf("Stop returned while a cron-driven crawl was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(crawler.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return after the crawl finished")
	}
}

type failingTester struct{}

func (failingTester) TestConnection() bool { return false }

func TestStartRefusesWithoutConnection(t *testing.T) {
	s := New(noopCrawler{}, &countingPoster{}, failingTester{}, "", false)
	if err := s.Start(); err == nil {
		t.Fatalf("expected start to fail when the connection check fails")
	}
	s.Stop()
}

func TestStartRejectsBadCron(t *testing.T) {
	s := New(noopCrawler{}, &countingPoster{}, nil, "not a cron", false)
	if err := s.Start(); err == nil {
		t.Fatalf("expected invalid cron expression to fail startup")
	}
	s.Stop()
}
