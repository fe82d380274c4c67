// Package resolver turns provider identifiers on a Track into direct links.
package resolver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/meting-gateway/internal/meting"
	"github.com/JakeFAU/meting-gateway/internal/metrics"
	"github.com/JakeFAU/meting-gateway/internal/provider"
)

// Resolver fills the url, pic and lrc fields of a Track.
type Resolver struct {
	logger *zap.Logger
}

// New constructs a Resolver.
func New(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve returns track with its missing links populated. Each field is
// handled on its own: a field that is already set is kept and never costs a
// provider call, so resolving an already-resolved Track is free. Lyrics are
// never fetched; a self-referential reference is built instead.
func (r *Resolver) Resolve(
	ctx context.Context,
	client provider.Client,
	track meting.Track,
	req meting.ResolutionRequest,
) (meting.Track, error) {
	req = req.WithDefaults()

	if track.URL == "" && !track.URLID.IsZero() {
		id := track.URLID.String()
		payload, err := client.URL(ctx, id, req.Bitrate)
		metrics.ObserveProviderCall(provider.CapabilityURL, err)
		if err != nil {
			return meting.Track{}, fmt.Errorf("%w: url for %s: %w", meting.ErrUpstreamResolution, id, err)
		}
		track.URL = ExtractLink(payload)
	}

	if track.Pic == "" && !track.PicID.IsZero() {
		id := track.PicID.String()
		payload, err := client.Picture(ctx, id, req.PictureSize)
		metrics.ObserveProviderCall(provider.CapabilityPicture, err)
		if err != nil {
			return meting.Track{}, fmt.Errorf("%w: pic for %s: %w", meting.ErrUpstreamResolution, id, err)
		}
		track.Pic = ExtractLink(payload)
	}

	if req.IncludeLyric && track.Lrc == "" && !track.LyricID.IsZero() {
		server := req.Server
		if server == "" {
			server = track.Source
		}
		track.Lrc = LyricReference(req.BaseURL, server, track.LyricID.String())
	}

	if track.URL == "" {
		r.logger.Debug("track left without url",
			zap.String("name", track.Name),
			zap.String("url_id", track.URLID.String()),
		)
	}
	return track, nil
}
