package source

import (
	"context"
	"sync"
)

// ProgressFunc receives download progress in percent (0..100) with a short
// human-readable detail.
type ProgressFunc func(percent int, detail string)

// Info is what a downloader learned about the video.
type Info struct {
	Title    string
	Author   string
	Platform string
}

// Downloader fetches videos from one kind of URL.
type Downloader interface {
	Name() string
	CanHandle(rawURL string) bool
	Download(ctx context.Context, rawURL, destDir string, progress ProgressFunc) (string, Info, error)
}

// Registry holds downloaders in registration order.
type Registry struct {
	mu          sync.RWMutex
	downloaders []Downloader
}

// NewRegistry returns a registry with the given downloaders.
func NewRegistry(downloaders ...Downloader) *Registry {
	r := &Registry{}
	for _, d := range downloaders {
		r.Register(d)
	}
	return r
}

// Register appends a downloader. Earlier registrations take precedence.
func (r *Registry) Register(d Downloader) {
	if d == nil {
		return
	}
	r.mu.Lock()
	r.downloaders = append(r.downloaders, d)
	r.mu.Unlock()
}

// Resolve returns the first downloader that accepts rawURL.
func (r *Registry) Resolve(rawURL string) (Downloader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.downloaders {
		if d.CanHandle(rawURL) {
			return d, true
		}
	}
	return nil, false
}

// Platforms lists registered downloader names.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.downloaders))
	for _, d := range r.downloaders {
		names = append(names, d.Name())
	}
	return names
}
