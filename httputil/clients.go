package httputil

import (
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Catalog *http.Client // search/detail/phone endpoints
	Media   *http.Client // photo downloads, longer timeout
}

// NewClients builds the shared HTTP clients. proxyURL is optional; when set,
// catalog traffic is routed through it.
func NewClients(proxyURL string) *Clients {
	catalog := &http.Client{Timeout: 15 * time.Second}

	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			catalog.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}

	return &Clients{
		Catalog: catalog,
		Media:   &http.Client{Timeout: 60 * time.Second},
	}
}
