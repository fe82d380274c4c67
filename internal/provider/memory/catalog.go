// Package memory provides an in-memory Provider Client for local development
// and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JakeFAU/meting-gateway/internal/meting"
	"github.com/JakeFAU/meting-gateway/internal/provider"
)

// Catalog holds songs and links served by memory clients. It counts calls per
// capability so tests can assert which upstream operations ran.
type Catalog struct {
	mu          sync.RWMutex
	songs       map[string]map[string]any
	order       []string
	urls        map[string]string
	pics        map[string]string
	lyrics      map[string]string
	collections map[string][]string
	failures    map[string]error
	calls       map[string]int
}

// NewCatalog constructs an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		songs:       make(map[string]map[string]any),
		urls:        make(map[string]string),
		pics:        make(map[string]string),
		lyrics:      make(map[string]string),
		collections: make(map[string][]string),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
	}
}

// AddSong stores a song record keyed by its "id" field.
func (c *Catalog) AddSong(rec map[string]any) {
	id := meting.TrackFromRecord(rec).ID.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.songs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.songs[id] = cloneRecord(rec)
}

// SetURL binds a url id to a media link.
func (c *Catalog) SetURL(id, link string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls[id] = link
}

// SetPicture binds a picture id to an artwork link.
func (c *Catalog) SetPicture(id, link string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pics[id] = link
}

// SetLyric binds a lyric id to lyric text.
func (c *Catalog) SetLyric(id, lyric string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lyrics[id] = lyric
}

// SetCollection lists the song ids of an album, artist or playlist.
func (c *Catalog) SetCollection(capability, id string, songIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collections[capability+":"+id] = append([]string(nil), songIDs...)
}

// FailOn makes every call to capability return err. A nil err clears it.
func (c *Catalog) FailOn(capability string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, capability)
		return
	}
	c.failures[capability] = err
}

// Calls reports how many times capability was invoked.
func (c *Catalog) Calls(capability string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[capability]
}

// Factory returns a provider.Factory producing clients over this catalog.
func (c *Catalog) Factory() provider.Factory {
	return func(server string) (provider.Client, error) {
		return &Client{catalog: c, server: server}, nil
	}
}

func (c *Catalog) enter(capability string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[capability]++
	return c.failures[capability]
}

func (c *Catalog) records(ids []string, server string) []any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		rec, ok := c.songs[id]
		if !ok {
			continue
		}
		cp := cloneRecord(rec)
		if _, ok := cp["source"]; !ok {
			cp["source"] = server
		}
		out = append(out, cp)
	}
	return out
}

func (c *Catalog) search(keyword string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	needle := strings.ToLower(keyword)
	var ids []string
	for _, id := range c.order {
		name := meting.TrackFromRecord(c.songs[id]).Name
		if strings.Contains(strings.ToLower(name), needle) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Catalog) lookup(table map[string]string, id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return table[id]
}

func (c *Catalog) collection(capability, id string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collections[capability+":"+id]
}

// Client is a request-scoped view of a Catalog.
type Client struct {
	catalog   *Catalog
	server    string
	formatted bool
}

var _ provider.Client = (*Client)(nil)

// Format implements provider.Client.
func (cl *Client) Format(formatted bool) { cl.formatted = formatted }

// Search implements provider.Client. Page and Limit window the name matches.
func (cl *Client) Search(_ context.Context, keyword string, opts provider.SearchOptions) (meting.Payload, error) {
	if err := cl.catalog.enter(provider.CapabilitySearch); err != nil {
		return meting.Payload{}, err
	}
	ids := cl.catalog.search(keyword)
	if opts.Limit > 0 {
		page := max(opts.Page, 1)
		start := min((page-1)*opts.Limit, len(ids))
		end := min(start+opts.Limit, len(ids))
		ids = ids[start:end]
	}
	return cl.emit(cl.catalog.records(ids, cl.server))
}

// Song implements provider.Client.
func (cl *Client) Song(_ context.Context, id string) (meting.Payload, error) {
	if err := cl.catalog.enter(provider.CapabilitySong); err != nil {
		return meting.Payload{}, err
	}
	return cl.emit(cl.catalog.records([]string{id}, cl.server))
}

// Album implements provider.Client.
func (cl *Client) Album(_ context.Context, id string) (meting.Payload, error) {
	return cl.listing(provider.CapabilityAlbum, id, 0)
}

// Artist implements provider.Client.
func (cl *Client) Artist(_ context.Context, id string, limit int) (meting.Payload, error) {
	return cl.listing(provider.CapabilityArtist, id, limit)
}

// Playlist implements provider.Client.
func (cl *Client) Playlist(_ context.Context, id string) (meting.Payload, error) {
	return cl.listing(provider.CapabilityPlaylist, id, 0)
}

// URL implements provider.Client.
func (cl *Client) URL(_ context.Context, id string, bitrate int) (meting.Payload, error) {
	if err := cl.catalog.enter(provider.CapabilityURL); err != nil {
		return meting.Payload{}, err
	}
	return cl.emit(map[string]any{
		"url":  cl.catalog.lookup(cl.catalog.urls, id),
		"size": 0,
		"br":   bitrate,
	})
}

// Picture implements provider.Client.
func (cl *Client) Picture(_ context.Context, id string, _ int) (meting.Payload, error) {
	if err := cl.catalog.enter(provider.CapabilityPicture); err != nil {
		return meting.Payload{}, err
	}
	return cl.emit(map[string]any{"url": cl.catalog.lookup(cl.catalog.pics, id)})
}

// Lyric implements provider.Client.
func (cl *Client) Lyric(_ context.Context, id string) (meting.Payload, error) {
	if err := cl.catalog.enter(provider.CapabilityLyric); err != nil {
		return meting.Payload{}, err
	}
	return cl.emit(map[string]any{
		"lyric":  cl.catalog.lookup(cl.catalog.lyrics, id),
		"tlyric": "",
	})
}

func (cl *Client) listing(capability, id string, limit int) (meting.Payload, error) {
	if err := cl.catalog.enter(capability); err != nil {
		return meting.Payload{}, err
	}
	ids := cl.catalog.collection(capability, id)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return cl.emit(cl.catalog.records(ids, cl.server))
}

// emit renders v the way a provider would in the current output mode.
func (cl *Client) emit(v any) (meting.Payload, error) {
	if !cl.formatted {
		return meting.ValuePayload(v), nil
	}
	raw, err := meting.EncodeJSON(v)
	if err != nil {
		return meting.Payload{}, fmt.Errorf("encode %s payload: %w", cl.server, err)
	}
	return meting.TextPayload(string(raw)), nil
}

func cloneRecord(rec map[string]any) map[string]any {
	cp := make(map[string]any, len(rec))
	for k, v := range rec {
		cp[k] = v
	}
	return cp
}
