// Package meting defines the core types shared across the gateway: normalized
// tracks, resolution requests, provider payloads, and the error kinds surfaced
// to the HTTP boundary.
package meting
