// Package api serves the HTTP surface: the catalog proxy, stream-URL
// resolution, the byte-streaming passthrough and player control.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/stesse/stesse/internal/player"
	"github.com/stesse/stesse/internal/soundcloud"
)

// Config configures the HTTP API module.
type Config struct {
	Listen     string
	CORSOrigin string
	APIBase    string
}

// Module is the HTTP API server.
type Module struct {
	log        *zap.Logger
	config     Config
	tokens     *soundcloud.TokenCache
	catalog    *soundcloud.Catalog
	resolver   *soundcloud.Resolver
	controller *player.Controller
	http       *http.Client
}

// NewModule creates the API module. controller may be nil when the
// player module is disabled; control endpoints then report unavailable.
func NewModule(log *zap.Logger, tokens *soundcloud.TokenCache, catalog *soundcloud.Catalog, resolver *soundcloud.Resolver, controller *player.Controller, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:8080"
	}
	if strings.TrimSpace(cfg.APIBase) == "" {
		cfg.APIBase = soundcloud.DefaultAPIBase
	}
	return &Module{
		log:        log,
		config:     cfg,
		tokens:     tokens,
		catalog:    catalog,
		resolver:   resolver,
		controller: controller,
		http:       &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Router builds the route table. The CORS middleware wraps the whole
// router so preflight requests are answered for every path.
func (m *Module) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", m.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/genres", m.handleGenres).Methods(http.MethodGet)
	r.HandleFunc("/api/soundcloud-resolve", m.handleResolve).Methods(http.MethodGet)
	r.HandleFunc("/api/stream", m.handleStream).Methods(http.MethodGet)
	r.PathPrefix("/api/soundcloud/").HandlerFunc(m.handleProxy).Methods(http.MethodGet)

	p := r.PathPrefix("/api/player").Subrouter()
	p.HandleFunc("/state", m.handleState).Methods(http.MethodGet)
	p.HandleFunc("/playlist", m.handlePlaylist).Methods(http.MethodGet)
	p.HandleFunc("/genre", m.handleGenre).Methods(http.MethodPost)
	p.HandleFunc("/play", m.control(func(c *player.Controller) error { return c.Play() })).Methods(http.MethodPost)
	p.HandleFunc("/pause", m.control(func(c *player.Controller) error { return c.Pause() })).Methods(http.MethodPost)
	p.HandleFunc("/toggle", m.control(func(c *player.Controller) error { return c.TogglePlay() })).Methods(http.MethodPost)
	p.HandleFunc("/next", m.handleNext).Methods(http.MethodPost)
	p.HandleFunc("/previous", m.handlePrevious).Methods(http.MethodPost)
	p.HandleFunc("/track", m.handleTrack).Methods(http.MethodPost)
	p.HandleFunc("/seek", m.handleSeek).Methods(http.MethodPost)
	p.HandleFunc("/volume", m.handleVolume).Methods(http.MethodPost)
	p.HandleFunc("/mute", m.control(func(c *player.Controller) error { return c.ToggleMute() })).Methods(http.MethodPost)
	p.HandleFunc("/rate", m.handleRate).Methods(http.MethodPost)
	p.HandleFunc("/shuffle", m.handleShuffle).Methods(http.MethodPost)
	p.HandleFunc("/repeat", m.handleRepeat).Methods(http.MethodPost)
	p.HandleFunc("/search", m.handleSearch).Methods(http.MethodPost)

	return m.corsMiddleware(r)
}

// Run serves until ctx is cancelled.
func (m *Module) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              m.config.Listen,
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		m.log.Info("api listening", zap.String("addr", m.config.Listen))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (m *Module) corsMiddleware(next http.Handler) http.Handler {
	origin := m.config.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
