package config

import "techfeed/models"

const (
	DefaultOutput       = "public/feed.json"
	DefaultFetchTimeout = "60s"
	DefaultInterval     = "1h"
)

// DefaultSources are used when no sources are configured
func DefaultSources() []models.FeedSource {
	return []models.FeedSource{
		{Label: "Cloudflare", Url: "https://blog.cloudflare.com/rss/"},
		{Label: "Google Developers", Url: "https://developers.googleblog.com/feeds/posts/default?alt=rss"},
		{Label: "Pragmatic Engineer", Url: "https://blog.pragmaticengineer.com/rss/"},
		{Label: "Uber Eng", Url: "https://www.uber.com/en-US/blog/engineering/rss/"},
		{Label: "Netflix Tech", Url: "https://netflixtechblog.com/feed"},
		{Label: "InfoQ", Url: "https://feed.infoq.com/"},
		{Label: "Towards Data Science", Url: "https://towardsdatascience.com/feed/"},
	}
}

// DefaultHeaders mimic a desktop browser, several upstreams block obvious bots
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Cache-Control":             "max-age=0",
	}
}

// Default returns a fresh configuration with the built-in values.
// Headers given in a config file are merged into DefaultHeaders.
func Default() *TomlConfig {
	return &TomlConfig{
		Output:       DefaultOutput,
		FetchTimeout: DefaultFetchTimeout,
		Interval:     DefaultInterval,
		Headers:      DefaultHeaders(),
		Sources:      DefaultSources(),
	}
}
