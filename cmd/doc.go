// Package cmd defines and implements the CLI commands for the meting-gateway
// executable.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the Meting query surface on / and
//     /api, plus health and metrics endpoints. Each request builds its own
//     provider client from the registry.
//   - Enrichment: when resolve is set, internal/enrich decides whether the
//     result set needs links and fans internal/resolver out over an
//     internal/pool bounded worker pool, preserving record order.
//   - Providers: internal/provider/upstream forwards to a Meting-compatible
//     backend paced by a per-server token bucket; without one configured, an
//     in-memory catalog answers.
//   - Verification: internal/probe chases redirects with HEAD and falls back
//     to a ranged GET; the probe and check commands drive it.
//
// Quick checklist:
//   - Configure env vars: METING_UPSTREAM_BASE_URL, METING_GATEWAY_PUBLIC_BASE_URL,
//     METING_GATEWAY_DEFAULT_CONCURRENCY, PORT (or METING_SERVER_PORT).
//   - Run locally: go run . serve --config config.yaml
//   - Verify links: go run . check --server netease --keyword "..."
package cmd
