package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Site describes the crawled catalog: endpoint templates, the UI selectors
// the session driver clicks, and the network-intercept rules the correlator
// matches against. Loaded from config/sites/*.yaml with compiled-in defaults.
type Site struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	UserAgent string            `yaml:"user_agent"`
	Endpoints map[string]string `yaml:"endpoints"`
	Selectors map[string]string `yaml:"selectors"`
	Intercept Intercept         `yaml:"intercept"`
	Gallery   Gallery           `yaml:"gallery"`
}

// Intercept holds the matching rules for side-channel network traffic.
type Intercept struct {
	PhoneFragment  string `yaml:"phone_fragment"`  // path fragment preceding the phone-lookup token
	PhotoSuffix    string `yaml:"photo_suffix"`    // photo asset URL suffix
	PhotoSubstring string `yaml:"photo_substring"` // photo asset URL path substring
}

// Gallery holds the photo-gallery interaction tuning.
type Gallery struct {
	NextClicks   int `yaml:"next_clicks"`
	ClickPauseMS int `yaml:"click_pause_ms"`
	SettleMS     int `yaml:"settle_ms"`
}

func LoadSite(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSite(), nil
		}
		return nil, err
	}

	site := DefaultSite()
	if err := yaml.Unmarshal(data, site); err != nil {
		return nil, err
	}
	return site, nil
}

func DefaultSite() *Site {
	return &Site{
		ID:        "domria",
		Name:      "DOM.RIA",
		UserAgent: "Mozilla/5.0",
		Endpoints: map[string]string{
			"search": "https://dom.ria.com/node/searchEngine/v2/?addMoreRealty=false&excludeSold=1&category=1" +
				"&realty_type=%d&operation=%d&state_id=%d&price_cur=1&wo_dupl=1&sort=created_at" +
				"&firstIteraction=false&limit=20&type=list&client=searchV2&page=%d",
			"detail":  "https://dom.ria.com/realty/data/%d?lang_id=4&key=",
			"phone":   "https://dom.ria.com/v1/api/realty/getOwnerAndAgencyData/%s?spa_final_page=true",
			"listing": "https://dom.ria.com/uk/%s",
		},
		Selectors: map[string]string{
			"all_photos": "li[class*='photo-'] span.all-photos",
			"next_photo": "button.rotate-btn.rotate-arr-r",
		},
		Intercept: Intercept{
			PhoneFragment:  "getOwnerAndAgencyData",
			PhotoSuffix:    "fx.webp",
			PhotoSubstring: "photosnew/dom/photo/",
		},
		Gallery: Gallery{
			NextClicks:   5,
			ClickPauseMS: 500,
			SettleMS:     1500,
		},
	}
}
