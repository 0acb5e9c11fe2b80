package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Markiayn/Parser/config"
	"github.com/Markiayn/Parser/httputil"
	"github.com/Markiayn/Parser/models"
)

// SourceClient talks to the catalog's plain HTTP endpoints: paginated search,
// per-listing detail, the token-for-phone exchange, and photo downloads.
// No retries anywhere; callers treat a failure as "skip" or "no more pages".
type SourceClient struct {
	clients *httputil.Clients
	site    *config.Site
}

func NewSourceClient(site *config.Site, clients *httputil.Clients) *SourceClient {
	return &SourceClient{clients: clients, site: site}
}

// SearchPage returns the listing IDs on one search result page. An empty
// slice means the catalog has no more pages for this query.
func (c *SourceClient) SearchPage(ctx context.Context, regionID, realtyType, operation, page int) ([]int, error) {
	url := fmt.Sprintf(c.site.Endpoints["search"], realtyType, operation, regionID, page)

	var result struct {
		Items []int `json:"items"`
	}
	if err := c.getJSON(ctx, url, &result); err != nil {
		return nil, fmt.Errorf("search page %d: %w", page, err)
	}
	return result.Items, nil
}

// FetchDetail returns the raw catalog record for one listing.
func (c *SourceClient) FetchDetail(ctx context.Context, id int) (*models.RawApartment, error) {
	url := fmt.Sprintf(c.site.Endpoints["detail"], id)

	var raw models.RawApartment
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("detail %d: %w", id, err)
	}
	return &raw, nil
}

// FetchPhone exchanges an intercepted phone-lookup token for the owner's
// phone number. Returns "" when the response carries no phones.
func (c *SourceClient) FetchPhone(ctx context.Context, token string) (string, error) {
	url := fmt.Sprintf(c.site.Endpoints["phone"], token)

	var result struct {
		Owner struct {
			Phones []struct {
				PhoneNum string `json:"phone_num"`
			} `json:"phones"`
		} `json:"owner"`
	}
	if err := c.getJSON(ctx, url, &result); err != nil {
		return "", fmt.Errorf("phone lookup: %w", err)
	}
	if len(result.Owner.Phones) == 0 {
		return "", nil
	}
	return result.Owner.Phones[0].PhoneNum, nil
}

// ListingURL builds the canonical page URL the session driver navigates to.
func (c *SourceClient) ListingURL(beautifulURL string) string {
	return fmt.Sprintf(c.site.Endpoints["listing"], beautifulURL)
}

// DownloadPhoto fetches a photo asset to destPath, creating the directory
// as needed.
func (c *SourceClient) DownloadPhoto(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.site.UserAgent)

	resp, err := c.clients.Media.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, resp.Body)
	return err
}

func (c *SourceClient) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.site.UserAgent)

	resp, err := c.clients.Catalog.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
