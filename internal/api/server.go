package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/meting-gateway/internal/config"
	"github.com/JakeFAU/meting-gateway/internal/enrich"
	"github.com/JakeFAU/meting-gateway/internal/meting"
	"github.com/JakeFAU/meting-gateway/internal/metrics"
	"github.com/JakeFAU/meting-gateway/internal/middleware"
	"github.com/JakeFAU/meting-gateway/internal/provider"
)

const requestTimeout = 60 * time.Second

// Server wires HTTP handlers to the provider registry and orchestrator.
type Server struct {
	router   chi.Router
	registry *provider.Registry
	enricher *enrich.Orchestrator
	cfg      config.GatewayConfig
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	registry *provider.Registry,
	enricher *enrich.Orchestrator,
	cfg config.GatewayConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry: registry,
		enricher: enricher,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(middleware.CORS)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.GetOnly)
	r.Use(middleware.Timeout(requestTimeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
	})

	r.Get("/health", s.health)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/", s.meting)
	r.Get("/api", s.meting)

	s.router = r
	return s
}

// Handler returns the traced router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "meting-gateway")
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Providers are built per request; there is nothing to warm up.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) meting(w http.ResponseWriter, r *http.Request) {
	q := parseQuery(r.URL.Query(), s.cfg.DefaultServer)
	payload, err := s.handleMeting(r.Context(), q, s.baseURL(r))
	if err != nil {
		s.logger.Warn("meting request failed",
			zap.String("request_id", middleware.RequestIDFrom(r.Context())),
			zap.String("server", q.Server),
			zap.String("type", q.Type),
			zap.Error(err),
		)
		s.writeMetingError(w, err)
		return
	}
	body, err := payload.Bytes()
	if err != nil {
		s.writeMetingError(w, err)
		return
	}
	w.Header().Set("Content-Type", middleware.JSONContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}

// handleMeting validates q, runs the matching provider capability and
// enriches listing results when asked to.
func (s *Server) handleMeting(ctx context.Context, q metingQuery, baseURL string) (meting.Payload, error) {
	if q.Type == "" {
		return meting.Payload{}, fmt.Errorf("%w: type", meting.ErrMissingParameter)
	}
	if q.Type == typeSearch {
		if q.Keyword == "" {
			return meting.Payload{}, fmt.Errorf("%w: keyword", meting.ErrMissingParameter)
		}
	} else if !knownType(q.Type) {
		return meting.Payload{}, fmt.Errorf("%w: type %s", meting.ErrUnsupportedOperation, q.Type)
	} else if q.ID == "" {
		return meting.Payload{}, fmt.Errorf("%w: id", meting.ErrMissingParameter)
	}

	client, err := s.registry.New(q.Server)
	if err != nil {
		return meting.Payload{}, err
	}
	client.Format(q.Format)

	payload, listing, err := s.call(ctx, client, q)
	metrics.ObserveProviderCall(q.Type, err)
	if err != nil {
		return meting.Payload{}, fmt.Errorf("%s %s: %w", q.Server, q.Type, err)
	}
	if !listing {
		return payload, nil
	}
	return s.enricher.Enrich(ctx, client, payload, s.resolutionRequest(q, baseURL), q.Resolve)
}

// call dispatches q to client. listing reports whether the result is a set
// of song records eligible for enrichment.
func (s *Server) call(ctx context.Context, client provider.Client, q metingQuery) (payload meting.Payload, listing bool, err error) {
	switch q.Type {
	case typeSearch:
		payload, err = client.Search(ctx, q.Keyword, provider.SearchOptions{
			Category: q.Category,
			Page:     q.Page,
			Limit:    q.Limit,
		})
		return payload, true, err
	case typeSong:
		payload, err = client.Song(ctx, q.ID)
		return payload, true, err
	case typeAlbum:
		payload, err = client.Album(ctx, q.ID)
		return payload, true, err
	case typeArtist:
		payload, err = client.Artist(ctx, q.ID, q.Limit)
		return payload, true, err
	case typePlaylist:
		payload, err = client.Playlist(ctx, q.ID)
		return payload, true, err
	case typeURL:
		payload, err = client.URL(ctx, q.ID, valueOr(q.Bitrate, s.cfg.DefaultBitrate))
		return payload, false, err
	case typePic:
		payload, err = client.Picture(ctx, q.ID, valueOr(q.PictureSize, s.cfg.DefaultPicSize))
		return payload, false, err
	case typeLyric:
		payload, err = client.Lyric(ctx, q.ID)
		return payload, false, err
	default:
		return meting.Payload{}, false, fmt.Errorf("%w: type %s", meting.ErrUnsupportedOperation, q.Type)
	}
}

func (s *Server) resolutionRequest(q metingQuery, baseURL string) meting.ResolutionRequest {
	concurrency := valueOr(q.Concurrency, s.cfg.DefaultConcurrency)
	if s.cfg.MaxConcurrency > 0 && concurrency > s.cfg.MaxConcurrency {
		concurrency = s.cfg.MaxConcurrency
	}
	return meting.ResolutionRequest{
		Server:       q.Server,
		BaseURL:      baseURL,
		Bitrate:      valueOr(q.Bitrate, s.cfg.DefaultBitrate),
		PictureSize:  valueOr(q.PictureSize, s.cfg.DefaultPicSize),
		IncludeLyric: q.Lyric,
		Concurrency:  concurrency,
	}.WithDefaults()
}

// baseURL is the externally visible root of this gateway, used for lyric
// references.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	host := r.Host
	if host == "" {
		host = "localhost"
	}
	return scheme + "://" + host
}

func knownType(kind string) bool {
	switch kind {
	case typeSearch, typeSong, typeAlbum, typeArtist, typePlaylist, typeURL, typeLyric, typePic:
		return true
	}
	return false
}

func valueOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func (s *Server) writeMetingError(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "Meting API Error",
		"message": err.Error(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := middleware.WriteJSON(w, status, payload); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}
