package viewer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"techfeed/artifact"
	"techfeed/models"
)

// ErrLoadFailed is returned for any artifact that could not be fetched
var ErrLoadFailed = errors.New("failed to load feed")

// Loader fetches the artifact over HTTP. There is no retry.
type Loader struct {
	client *http.Client
}

func NewLoader(timeout time.Duration) *Loader {
	return &Loader{client: &http.Client{Timeout: timeout}}
}

func (l *Loader) Load(ctx context.Context, url string) ([]models.FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrLoadFailed, resp.Status)
	}

	items, err := artifact.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	return items, nil
}

// LoadFile reads a local artifact
func LoadFile(path string) ([]models.FeedItem, error) {
	items, err := artifact.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	return items, nil
}
