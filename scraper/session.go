package scraper

import (
	"fmt"
	"log"

	"github.com/playwright-community/playwright-go"

	"github.com/Markiayn/Parser/config"
)

// HarvestResult carries what the side channel yielded for one listing page.
type HarvestResult struct {
	PhoneToken string
	PhotoURLs  []string
}

// sessionDriver is the browser-facing seam the pipeline depends on.
type sessionDriver interface {
	Harvest(listingURL string) (HarvestResult, error)
	Close()
}

// Session owns one browser for the duration of a partition crawl. Listings
// are opened strictly one at a time on its single page; the correlator is
// armed once, before the first navigation.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	corr    *Correlator
	site    *config.Site
	verbose bool
}

func OpenSession(site *config.Site, chromePath string, verbose bool) (*Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		ExecutablePath: playwright.String(chromePath),
		Headless:       playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(site.UserAgent),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	s := &Session{
		pw:      pw,
		browser: browser,
		page:    page,
		corr:    NewCorrelator(site.Intercept),
		site:    site,
		verbose: verbose,
	}
	s.corr.Arm(page)
	return s, nil
}

// Harvest navigates to the listing page, pages through its photo gallery to
// trigger lazy photo requests, waits for the traffic to settle, then drains
// the correlator. Gallery interaction is best-effort; only navigation
// failure fails the listing.
func (s *Session) Harvest(listingURL string) (HarvestResult, error) {
	s.corr.Reset()

	_, err := s.page.Goto(listingURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return HarvestResult{}, fmt.Errorf("navigate %s: %w", listingURL, err)
	}

	s.revealGallery()

	s.page.WaitForTimeout(float64(s.site.Gallery.SettleMS))

	return HarvestResult{
		PhoneToken: s.corr.Token(),
		PhotoURLs:  s.corr.DrainPhotos(),
	}, nil
}

func (s *Session) revealGallery() {
	allPhotos := s.page.Locator(s.site.Selectors["all_photos"]).First()
	if visible, _ := allPhotos.IsVisible(); visible {
		if err := allPhotos.Click(); err != nil {
			if s.verbose {
				log.Printf("Gallery expand click failed: %v", err)
			}
			return
		}
		s.page.WaitForTimeout(float64(s.site.Gallery.ClickPauseMS))
	}

	next := s.page.Locator(s.site.Selectors["next_photo"]).First()
	for i := 0; i < s.site.Gallery.NextClicks; i++ {
		visible, _ := next.IsVisible()
		if !visible {
			break
		}
		if err := next.Click(); err != nil {
			if s.verbose {
				log.Printf("Gallery next click %d failed: %v", i+1, err)
			}
			break
		}
		s.page.WaitForTimeout(float64(s.site.Gallery.ClickPauseMS))
	}
}

// Close releases all browser resources. Safe to call after a failed Harvest.
func (s *Session) Close() {
	if s.page != nil {
		s.page.Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.pw != nil {
		s.pw.Stop()
	}
}
