// Package provider defines the capability surface the gateway consumes from
// music-service backends, plus a registry that builds a fresh client per
// request for a named server.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/meting-gateway/internal/meting"
)

// Capability names, used for metrics labels and upstream query types.
const (
	CapabilitySearch   = "search"
	CapabilitySong     = "song"
	CapabilityAlbum    = "album"
	CapabilityArtist   = "artist"
	CapabilityPlaylist = "playlist"
	CapabilityURL      = "url"
	CapabilityPicture  = "pic"
	CapabilityLyric    = "lyric"
)

// SearchOptions narrows a keyword search. Zero values defer to the provider.
type SearchOptions struct {
	Category int
	Page     int
	Limit    int
}

// Client performs the protocol exchange with one music service. The core
// treats it as a black box: every call returns a Payload that may be text or
// structured depending on the provider and its output mode.
type Client interface {
	Search(ctx context.Context, keyword string, opts SearchOptions) (meting.Payload, error)
	Song(ctx context.Context, id string) (meting.Payload, error)
	Album(ctx context.Context, id string) (meting.Payload, error)
	Artist(ctx context.Context, id string, limit int) (meting.Payload, error)
	Playlist(ctx context.Context, id string) (meting.Payload, error)
	URL(ctx context.Context, id string, bitrate int) (meting.Payload, error)
	Picture(ctx context.Context, id string, size int) (meting.Payload, error)
	Lyric(ctx context.Context, id string) (meting.Payload, error)
	// Format switches between formatted text output and structured output.
	Format(formatted bool)
}

// Factory builds a new Client for the named server. Clients are request
// scoped; factories must be safe for concurrent use.
type Factory func(server string) (Client, error)

// Registry maps server names to client factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	fallback  Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a factory to a server name, replacing any previous one.
func (r *Registry) Register(server string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalizeServer(server)] = f
}

// SetFallback installs a factory used for servers without an explicit
// registration. An upstream gateway that speaks for every server is the
// usual fallback.
func (r *Registry) SetFallback(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = f
}

// New builds a client for server.
func (r *Registry) New(server string) (Client, error) {
	name := normalizeServer(server)
	r.mu.RLock()
	f, ok := r.factories[name]
	if !ok {
		f = r.fallback
	}
	r.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: server %q", meting.ErrUnsupportedOperation, server)
	}
	client, err := f(name)
	if err != nil {
		return nil, fmt.Errorf("build %s client: %w", name, err)
	}
	return client, nil
}

// Servers lists explicitly registered server names in sorted order.
func (r *Registry) Servers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeServer(server string) string {
	return strings.ToLower(strings.TrimSpace(server))
}
