package feeds

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"techfeed/models"
)

// Fetcher retrieves and parses the feed of one source
type Fetcher interface {
	Fetch(ctx context.Context, source models.FeedSource) (*gofeed.Feed, error)
}

// GofeedFetcher fetches feeds over HTTP and parses RSS, Atom and JSON feeds
type GofeedFetcher struct {
	parser *gofeed.Parser
}

type FetcherConfig struct {
	// Headers sent with every request, they override gofeed's own User-Agent
	Headers map[string]string

	// Whole request timeout, zero means no timeout
	Timeout time.Duration

	InsecureSkipVerify bool
}

func NewGofeedFetcher(config FetcherConfig) *GofeedFetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 30 * time.Second,
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{
		Transport: &headerTransport{base: transport, headers: config.Headers},
		Timeout:   config.Timeout,
	}
	if ua, ok := config.Headers["User-Agent"]; ok {
		parser.UserAgent = ua
	}

	return &GofeedFetcher{parser: parser}
}

func (f *GofeedFetcher) Fetch(ctx context.Context, source models.FeedSource) (*gofeed.Feed, error) {
	return f.parser.ParseURLWithContext(source.Url, ctx)
}

// headerTransport sets a fixed header set on every outgoing request
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}
	return t.base.RoundTrip(req)
}

var _ Fetcher = (*GofeedFetcher)(nil)
