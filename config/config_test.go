package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techfeed/config"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultSources(), cfg.Sources)
	assert.Equal(t, config.DefaultOutput, cfg.Output)
	assert.Equal(t, 60*time.Second, cfg.FetchTimeout)
	assert.Equal(t, time.Hour, cfg.Interval)
	assert.Contains(t, cfg.Headers["User-Agent"], "Mozilla/5.0")
}

func TestLoadConfigExampleFile(t *testing.T) {
	cfg, err := config.LoadConfig("techfeed.toml")
	require.NoError(t, err)
	assert.Len(t, cfg.Sources, 7)
	assert.Equal(t, "Cloudflare", cfg.Sources[0].Label)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "sources replace defaults",
			data: `
output = "out/feed.json"
[[sources]]
label = "Example"
url = "https://example.com/rss"
`,
			check: func(t *testing.T, cfg *config.Config) {
				require.Len(t, cfg.Sources, 1)
				assert.Equal(t, "Example", cfg.Sources[0].Label)
				assert.Equal(t, "out/feed.json", cfg.Output)
			},
		},
		{
			name: "headers merge with defaults",
			data: `
[headers]
"User-Agent" = "techfeed-test"
"X-Extra" = "1"
`,
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "techfeed-test", cfg.Headers["User-Agent"])
				assert.Equal(t, "1", cfg.Headers["X-Extra"])
				assert.Equal(t, "max-age=0", cfg.Headers["Cache-Control"])
				assert.Len(t, cfg.Sources, 7)
			},
		},
		{
			name: "lowercase header replaces default",
			data: `
[headers]
"user-agent" = "custom"
"x-extra" = "1"
`,
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "custom", cfg.Headers["User-Agent"])
				assert.Equal(t, "1", cfg.Headers["X-Extra"])
				assert.NotContains(t, cfg.Headers, "user-agent")
				assert.Len(t, cfg.Headers, len(config.DefaultHeaders())+1)
			},
		},
		{
			name: "zero timeout disables it",
			data: `fetch_timeout = "0"`,
			check: func(t *testing.T, cfg *config.Config) {
				assert.Zero(t, cfg.FetchTimeout)
			},
		},
		{
			name:    "empty sources list",
			data:    `sources = []`,
			wantErr: config.ErrNoSources,
		},
		{
			name: "source without label",
			data: `
[[sources]]
url = "https://example.com/rss"
`,
			wantErr: config.ErrInvalidSource,
		},
		{
			name: "relative source url",
			data: `
[[sources]]
label = "Relative"
url = "/rss"
`,
			wantErr: config.ErrInvalidSource,
		},
		{
			name:    "single language",
			data:    `languages = ["en"]`,
			wantErr: config.ErrInvalidLanguage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse([]byte(tt.data))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestParseInvalidDuration(t *testing.T) {
	_, err := config.Parse([]byte(`interval = "soon"`))
	assert.Error(t, err)
}

func TestLoadConfigUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("output = "), 0o644))

	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}
