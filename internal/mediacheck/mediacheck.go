// Package mediacheck runs an end-to-end liveness check: search a provider,
// resolve the first hit's media and artwork links, then probe both.
package mediacheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/meting-gateway/internal/meting"
	"github.com/JakeFAU/meting-gateway/internal/probe"
	"github.com/JakeFAU/meting-gateway/internal/provider"
	"github.com/JakeFAU/meting-gateway/internal/resolver"
)

// ErrNoResult is returned when the search finds nothing to check.
var ErrNoResult = errors.New("no search result")

// Prober is satisfied by *probe.Engine.
type Prober interface {
	Probe(ctx context.Context, target string) (probe.Result, error)
}

// Options configures a check.
type Options struct {
	Keyword     string
	Bitrate     int
	PictureSize int
	// Pause is waited before each probe to stay under provider rate limits.
	Pause time.Duration
}

// Report summarizes one check.
type Report struct {
	Song       meting.Track `json:"song"`
	MediaURL   string       `json:"mediaUrl"`
	PictureURL string       `json:"picUrl"`
	Media      probe.Result `json:"mediaProbe"`
	Picture    probe.Result `json:"picProbe"`
}

// Run performs the check with client in formatted mode. Any failure aborts
// the whole check.
func Run(ctx context.Context, client provider.Client, prober Prober, opts Options, logger *zap.Logger) (Report, error) {
	if opts.Keyword == "" {
		return Report{}, fmt.Errorf("%w: keyword", meting.ErrMissingParameter)
	}
	if opts.Bitrate <= 0 {
		opts.Bitrate = meting.DefaultBitrate
	}
	if opts.PictureSize <= 0 {
		opts.PictureSize = meting.DefaultPictureSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client.Format(true)
	raw, err := client.Search(ctx, opts.Keyword, provider.SearchOptions{Limit: 1})
	if err != nil {
		return Report{}, fmt.Errorf("search %q: %w", opts.Keyword, err)
	}
	song, err := firstTrack(raw)
	if err != nil {
		return Report{}, err
	}
	report := Report{Song: song}

	mediaDesc, err := client.URL(ctx, song.URLID.String(), opts.Bitrate)
	if err != nil {
		return Report{}, fmt.Errorf("%w: url for %s: %w", meting.ErrUpstreamResolution, song.URLID, err)
	}
	report.MediaURL = resolver.ExtractLink(mediaDesc)

	picDesc, err := client.Picture(ctx, song.PicID.String(), opts.PictureSize)
	if err != nil {
		return Report{}, fmt.Errorf("%w: pic for %s: %w", meting.ErrUpstreamResolution, song.PicID, err)
	}
	report.PictureURL = resolver.ExtractLink(picDesc)

	logger.Info("resolved media links",
		zap.String("song", song.Name+" - "+song.ArtistLine()),
		zap.String("media_url", report.MediaURL),
		zap.String("pic_url", report.PictureURL),
	)

	if report.Media, err = probeAfterPause(ctx, prober, report.MediaURL, opts.Pause); err != nil {
		return report, fmt.Errorf("probe media: %w", err)
	}
	if report.Picture, err = probeAfterPause(ctx, prober, report.PictureURL, opts.Pause); err != nil {
		return report, fmt.Errorf("probe picture: %w", err)
	}
	return report, nil
}

func firstTrack(raw meting.Payload) (meting.Track, error) {
	decoded := raw.Decode()
	list, ok := decoded.Value.([]any)
	if decoded.Opaque || !ok || len(list) == 0 {
		return meting.Track{}, ErrNoResult
	}
	rec, ok := list[0].(map[string]any)
	if !ok {
		return meting.Track{}, ErrNoResult
	}
	return meting.TrackFromRecord(rec), nil
}

func probeAfterPause(ctx context.Context, prober Prober, target string, pause time.Duration) (probe.Result, error) {
	if target == "" {
		return probe.Result{}, errors.New("empty link")
	}
	if pause > 0 {
		timer := time.NewTimer(pause)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return probe.Result{}, fmt.Errorf("wait before probe: %w", ctx.Err())
		case <-timer.C:
		}
	}
	res, err := prober.Probe(ctx, target)
	if err != nil {
		return probe.Result{}, fmt.Errorf("probe %s: %w", target, err)
	}
	return res, nil
}
