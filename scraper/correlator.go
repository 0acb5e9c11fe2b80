package scraper

import (
	"regexp"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/Markiayn/Parser/config"
)

// photoQueueCap bounds the intercepted-URL queue; a listing gallery never
// comes close to this, so overflow means something is wrong and dropping
// is safer than blocking the browser's event goroutine.
const photoQueueCap = 64

// Correlator watches a browser session's outgoing requests and extracts the
// two side-channel artifacts a listing page emits while rendering: the
// phone-lookup token and the photo asset URLs. The token slot is
// last-write-wins and survives listing changes (one listing is on screen at
// a time); the photo queue is drained and cleared per listing.
type Correlator struct {
	phoneRe        *regexp.Regexp
	photoSuffix    string
	photoSubstring string

	mu    sync.Mutex
	token string

	photos chan string
}

func NewCorrelator(rules config.Intercept) *Correlator {
	return &Correlator{
		phoneRe:        regexp.MustCompile(regexp.QuoteMeta(rules.PhoneFragment) + `/(.*?)\?`),
		photoSuffix:    rules.PhotoSuffix,
		photoSubstring: rules.PhotoSubstring,
		photos:         make(chan string, photoQueueCap),
	}
}

// Arm subscribes the correlator to the page's request stream. Must be called
// before the first navigation or the initial burst of photo requests is lost.
func (c *Correlator) Arm(page playwright.Page) {
	page.OnRequest(func(req playwright.Request) {
		c.Observe(req.URL())
	})
}

// Observe inspects a single request URL. Called from the browser driver's
// event goroutine, so it must never block.
func (c *Correlator) Observe(url string) {
	if m := c.phoneRe.FindStringSubmatch(url); m != nil {
		c.mu.Lock()
		c.token = m[1]
		c.mu.Unlock()
		return
	}

	if strings.HasSuffix(url, c.photoSuffix) && strings.Contains(url, c.photoSubstring) {
		select {
		case c.photos <- url:
		default:
			// queue full, drop
		}
	}
}

// Token returns the most recently extracted phone-lookup token, or "" if
// none has been seen yet.
func (c *Correlator) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// DrainPhotos empties the photo queue, returning unique URLs in arrival order.
func (c *Correlator) DrainPhotos() []string {
	var urls []string
	seen := make(map[string]struct{})
	for {
		select {
		case u := <-c.photos:
			if _, dup := seen[u]; !dup {
				seen[u] = struct{}{}
				urls = append(urls, u)
			}
		default:
			return urls
		}
	}
}

// Reset discards any queued photo URLs before the next listing is opened.
// The token slot is deliberately left alone: it is overwritten by the next
// extraction, and clearing it would lose a late-arriving token.
func (c *Correlator) Reset() {
	for {
		select {
		case <-c.photos:
		default:
			return
		}
	}
}
