// Package api hosts the HTTP server for the Meting gateway. Notable routes:
//   - GET / and /api for Meting queries (search, song, album, artist,
//     playlist, url, lyric, pic), optionally enriched with resolved links.
//   - GET /health, /healthz and /readyz for liveness checks.
//   - GET /metrics for Prometheus scraping.
package api
