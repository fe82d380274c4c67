package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/meting-gateway/internal/config"
	"github.com/JakeFAU/meting-gateway/internal/enrich"
	"github.com/JakeFAU/meting-gateway/internal/middleware"
	"github.com/JakeFAU/meting-gateway/internal/provider"
	"github.com/JakeFAU/meting-gateway/internal/provider/memory"
	"github.com/JakeFAU/meting-gateway/internal/resolver"
)

func newTestCatalog() *memory.Catalog {
	catalog := memory.NewCatalog()
	catalog.AddSong(map[string]any{"id": "101", "name": "Dust in Fireworks", "artist": []any{"Hua"}, "pic_id": "p101"})
	catalog.AddSong(map[string]any{"id": "102", "name": "Another Song", "pic_id": "p102"})
	catalog.SetURL("101", "http://media/101.mp3")
	catalog.SetURL("102", "http://media/102.mp3")
	catalog.SetPicture("p101", "http://img/101.jpg")
	catalog.SetPicture("p102", "http://img/102.jpg")
	catalog.SetLyric("101", "[00:00.00]la")
	catalog.SetCollection(provider.CapabilityPlaylist, "pl1", "102", "101")
	return catalog
}

func newTestServer(catalog *memory.Catalog, cfg config.GatewayConfig) *Server {
	registry := provider.NewRegistry()
	registry.Register("netease", catalog.Factory())
	registry.Register("tencent", catalog.Factory())
	logger := zap.NewNop()
	return NewServer(registry, enrich.New(resolver.New(logger), logger), cfg, logger)
}

func defaultGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		DefaultServer:      "netease",
		DefaultBitrate:     320,
		DefaultPicSize:     300,
		DefaultConcurrency: 6,
		MaxConcurrency:     32,
	}
}

func serve(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_SearchFormattedText(t *testing.T) {
	t.Parallel()

	s := newTestServer(newTestCatalog(), defaultGatewayConfig())
	rec := serve(t, s, http.MethodGet, "/api?type=search&keyword=dust&format=true")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	require.Equal(t, "Dust in Fireworks", records[0]["name"])
	require.Nil(t, records[0]["url"])
}

func TestServer_SearchResolved(t *testing.T) {
	t.Parallel()

	catalog := newTestCatalog()
	s := newTestServer(catalog, defaultGatewayConfig())
	req := httptest.NewRequest(http.MethodGet, "/?server=netease&type=search&s=o&format=1&resolve=true", nil)
	req.Host = "gw.local:3000"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	require.Equal(t, "http://media/101.mp3", records[0]["url"])
	require.Equal(t, "http://img/101.jpg", records[0]["pic"])
	require.Equal(t, "http://gw.local:3000/?server=netease&type=lyric&id=101", records[0]["lrc"])
	require.Equal(t, "http://media/102.mp3", records[1]["url"])
	require.Equal(t, 2, catalog.Calls(provider.CapabilityURL))
}

func TestServer_ResolvedUsesPublicBaseAndForwardedProto(t *testing.T) {
	t.Parallel()

	cfg := defaultGatewayConfig()
	cfg.PublicBaseURL = "https://music.example.com/"
	s := newTestServer(newTestCatalog(), cfg)
	rec := serve(t, s, http.MethodGet, "/?type=song&id=101&resolve=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `https://music.example.com/?server=netease&type=lyric&id=101`)

	s = newTestServer(newTestCatalog(), defaultGatewayConfig())
	req := httptest.NewRequest(http.MethodGet, "/?type=song&id=101&resolve=1&format=1", nil)
	req.Host = "edge.example"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Equal(t, "https://edge.example/?server=netease&type=lyric&id=101", records[0]["lrc"])
}

func TestServer_ResolveWithoutLyric(t *testing.T) {
	t.Parallel()

	s := newTestServer(newTestCatalog(), defaultGatewayConfig())
	rec := serve(t, s, http.MethodGet, "/?type=playlist&id=pl1&resolve=true&lrc=false&format=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	require.Equal(t, "Another Song", records[0]["name"])
	require.NotContains(t, records[0], "lrc")
}

func TestServer_TypeAliasesAndScalars(t *testing.T) {
	t.Parallel()

	s := newTestServer(newTestCatalog(), defaultGatewayConfig())

	rec := serve(t, s, http.MethodGet, "/?type=songs&id=101&format=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Dust in Fireworks")

	rec = serve(t, s, http.MethodGet, "/?type=url&id=101&br=128&format=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"url":"http://media/101.mp3","size":0,"br":128}`, rec.Body.String())

	rec = serve(t, s, http.MethodGet, "/?type=pic&id=p101")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"url":"http://img/101.jpg"}`, rec.Body.String())

	rec = serve(t, s, http.MethodGet, "/?type=lyric&id=101")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"lyric":"[00:00.00]la","tlyric":""}`, rec.Body.String())
}

func TestServer_MetingErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		target  string
		message string
	}{
		{name: "missing type", target: "/", message: "missing query param: type"},
		{name: "missing keyword", target: "/?type=search", message: "missing query param: keyword"},
		{name: "missing id", target: "/?type=song", message: "missing query param: id"},
		{name: "unknown type", target: "/?type=radio&id=1", message: "unsupported operation: type radio"},
		{name: "unknown server", target: "/?server=nope&type=song&id=1", message: "unsupported operation"},
	}

	s := newTestServer(newTestCatalog(), defaultGatewayConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, s, http.MethodGet, tt.target)
			require.Equal(t, http.StatusInternalServerError, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, "Meting API Error", body["error"])
			require.Contains(t, body["message"], tt.message)
		})
	}
}

func TestServer_ResolutionFailureIsReported(t *testing.T) {
	t.Parallel()

	catalog := newTestCatalog()
	catalog.FailOn(provider.CapabilityPicture, errors.New("cdn unavailable"))
	s := newTestServer(catalog, defaultGatewayConfig())

	rec := serve(t, s, http.MethodGet, "/?type=search&keyword=dust&resolve=true")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "cdn unavailable")
}

func TestServer_SurfaceRoutes(t *testing.T) {
	t.Parallel()

	s := newTestServer(newTestCatalog(), defaultGatewayConfig())

	rec := serve(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = serve(t, s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, s, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, s, http.MethodGet, "/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())

	rec = serve(t, s, http.MethodPost, "/api")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.JSONEq(t, `{"error":"Method Not Allowed"}`, rec.Body.String())

	rec = serve(t, s, http.MethodOptions, "/api")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "GET,OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	require.Empty(t, rec.Body.String())
}

func TestParseQuery(t *testing.T) {
	t.Parallel()

	values := map[string][]string{
		"type":        {"Artists"},
		"id":          {"9"},
		"s":           {"kw"},
		"format":      {"yes"},
		"resolve":     {"1"},
		"concurrency": {"x"},
		"limit":       {"20"},
	}
	q := parseQuery(values, "netease")
	require.Equal(t, "artist", q.Type)
	require.Equal(t, "netease", q.Server)
	require.Equal(t, "kw", q.Keyword)
	require.False(t, q.Format)
	require.True(t, q.Resolve)
	require.True(t, q.Lyric)
	require.Zero(t, q.Concurrency)
	require.Equal(t, 20, q.Limit)
}

func TestResolutionRequestClampsConcurrency(t *testing.T) {
	t.Parallel()

	cfg := defaultGatewayConfig()
	cfg.MaxConcurrency = 8
	s := newTestServer(newTestCatalog(), cfg)

	req := s.resolutionRequest(metingQuery{Server: "netease", Concurrency: 100, Lyric: true}, "http://gw")
	require.Equal(t, 8, req.Concurrency)
	require.Equal(t, 320, req.Bitrate)
	require.Equal(t, 300, req.PictureSize)

	req = s.resolutionRequest(metingQuery{Server: "netease"}, "http://gw")
	require.Equal(t, 6, req.Concurrency)
	require.False(t, req.IncludeLyric)
}

func TestServer_RejectedMethodsAreLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	registry := provider.NewRegistry()
	registry.Register("netease", newTestCatalog().Factory())
	s := NewServer(registry, enrich.New(resolver.New(logger), logger), defaultGatewayConfig(), logger)

	rec := serve(t, s, http.MethodPost, "/api")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = serve(t, s, http.MethodOptions, "/api")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	var statuses []int64
	for _, entry := range logs.FilterMessage("request completed").All() {
		statuses = append(statuses, entry.ContextMap()["status"].(int64))
	}
	require.Equal(t, []int64{http.StatusMethodNotAllowed, http.StatusNoContent}, statuses)
}
