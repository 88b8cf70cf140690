package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"sir_scrooper/config"
)

type Clients struct {
	Scraping *http.Client // for target-site requests (healthcheck, image downloads)
	API      *http.Client // direct, for everything else
}

// NewClients builds the shared HTTP clients. When a proxy is configured the
// scraping client routes through it with HTTP/2 disabled; the target CDN
// rejects proxied HTTP/2 handshakes.
func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	scraping := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if proxyCfg != nil && proxyCfg.URL != "" {
		proxyURL, err := url.Parse(proxyCfg.URL)
		if err == nil {
			scraping.Transport = &http.Transport{
				Proxy:             http.ProxyURL(proxyURL),
				ForceAttemptHTTP2: false,
				TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
			}
		}
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}
