package scraper

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Markiayn/Parser/config"
)

// ExtractGalleryPhotos pulls photo asset URLs out of a listing page's static
// HTML, using the same suffix/substring rules the correlator applies to
// network traffic. Used as a fallback when the side channel yields nothing,
// which happens when the browser serves the gallery from cache.
func ExtractGalleryPhotos(r io.Reader, rules config.Intercept) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var urls []string
	seen := make(map[string]struct{})
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range []string{"src", "data-src"} {
			u, ok := sel.Attr(attr)
			if !ok {
				continue
			}
			if !strings.HasSuffix(u, rules.PhotoSuffix) || !strings.Contains(u, rules.PhotoSubstring) {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	})
	return urls, nil
}

// FetchGalleryPhotos downloads the listing page over plain HTTP and extracts
// photo URLs from its HTML.
func (c *SourceClient) FetchGalleryPhotos(ctx context.Context, listingURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.site.UserAgent)

	resp, err := c.clients.Catalog.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return ExtractGalleryPhotos(resp.Body, c.site.Intercept)
}
