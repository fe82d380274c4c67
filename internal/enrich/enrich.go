// Package enrich decides whether a provider result set needs link
// resolution and drives the worker pool over the resolver when it does.
package enrich

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/JakeFAU/meting-gateway/internal/meting"
	"github.com/JakeFAU/meting-gateway/internal/metrics"
	"github.com/JakeFAU/meting-gateway/internal/pool"
	"github.com/JakeFAU/meting-gateway/internal/provider"
	"github.com/JakeFAU/meting-gateway/internal/resolver"
	"github.com/JakeFAU/meting-gateway/internal/telemetry"
)

// Enrichment outcomes, used as metrics labels.
const (
	OutcomeSkipped  = "skipped"
	OutcomeEnriched = "enriched"
	OutcomeFailed   = "failed"
)

// Orchestrator enriches result sets with resolved links.
type Orchestrator struct {
	resolver *resolver.Resolver
	logger   *zap.Logger
}

// New constructs an Orchestrator around res.
func New(res *resolver.Resolver, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if res == nil {
		res = resolver.New(logger)
	}
	return &Orchestrator{resolver: res, logger: logger}
}

// Enrich returns raw with every record's links resolved, in the shape it was
// received: text in gives JSON text out, a structured value gives []meting.Track.
// When enrichment is not requested or not needed raw is returned untouched.
// Resolution failures are returned as-is.
func (o *Orchestrator) Enrich(
	ctx context.Context,
	client provider.Client,
	raw meting.Payload,
	req meting.ResolutionRequest,
	requested bool,
) (meting.Payload, error) {
	if !requested {
		return raw, nil
	}
	tracks, ok := needsEnrichment(raw)
	if !ok {
		metrics.ObserveEnrichment(OutcomeSkipped)
		return raw, nil
	}

	req = req.WithDefaults()
	ctx, span := telemetry.StartSpan(ctx, "enrich.Enrich",
		attribute.Int("tracks", len(tracks)),
		attribute.Int("concurrency", req.Concurrency),
	)
	resolved, err := pool.Map(ctx, tracks, req.Concurrency,
		func(ctx context.Context, _ int, t meting.Track) (meting.Track, error) {
			return o.resolver.Resolve(ctx, client, t, req)
		},
		pool.WithObserver(metrics.AddActiveWorkers),
	)
	telemetry.EndSpan(span, err)
	if err != nil {
		metrics.ObserveEnrichment(OutcomeFailed)
		return meting.Payload{}, err
	}
	metrics.ObserveEnrichment(OutcomeEnriched)
	o.logger.Debug("enriched result set",
		zap.Int("tracks", len(resolved)),
		zap.Int("concurrency", pool.Workers(req.Concurrency, len(resolved))),
		zap.String("shape", raw.Kind().String()),
	)

	if raw.Kind() == meting.KindText {
		body, err := meting.EncodeJSON(resolved)
		if err != nil {
			return meting.Payload{}, fmt.Errorf("encode enriched tracks: %w", err)
		}
		return meting.TextPayload(string(body)), nil
	}
	return meting.ValuePayload(resolved), nil
}

// needsEnrichment applies the decision rule: raw must decode to a non-empty
// list of records, and the first record must be missing a link while
// carrying an id that can resolve it.
func needsEnrichment(raw meting.Payload) ([]meting.Track, bool) {
	decoded := raw.Decode()
	if decoded.Opaque {
		return nil, false
	}
	list, ok := decoded.Value.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	tracks := make([]meting.Track, len(list))
	for i, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		tracks[i] = meting.TrackFromRecord(rec)
	}
	first := tracks[0]
	if first.Resolved() || !first.HasResolvableID() {
		return nil, false
	}
	return tracks, true
}
