package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-geoserve/internal/api"
	"github.com/joeblew999/plat-geoserve/internal/api/stream"
	"github.com/joeblew999/plat-geoserve/internal/cache"
	"github.com/joeblew999/plat-geoserve/internal/config"
	"github.com/joeblew999/plat-geoserve/internal/humastar"
	"github.com/joeblew999/plat-geoserve/internal/logger"
	"github.com/joeblew999/plat-geoserve/internal/metrics"
	"github.com/joeblew999/plat-geoserve/internal/relay"
	"github.com/joeblew999/plat-geoserve/internal/service"
	"github.com/joeblew999/plat-geoserve/internal/upstream"
)

// Server is the geoserve HTTP server.
type Server struct {
	config  *config.Config
	mux     *http.ServeMux
	humaAPI huma.API
	links   *humastar.Links
	cache   cache.Store
	svc     *service.LocationService
	handler *api.APIHandler
	relay   *relay.Relay
}

// New builds the server from cfg. No network connection is made until
// Start.
func New(cfg *config.Config) (*Server, error) {
	store, err := cache.Open(cache.Options{
		Backend:    cfg.Cache.Backend,
		Size:       cfg.Cache.Size,
		ValkeyAddr: cfg.Cache.ValkeyAddr,
		DataDir:    cfg.Cache.DataDir,
	})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	client := upstream.New(upstream.Config{
		Timeout:       cfg.HTTP.Timeout,
		RatePerSecond: cfg.HTTP.RatePerSecond,
		Burst:         cfg.HTTP.Burst,
		UserAgent:     cfg.HTTP.UserAgent,
		Cache:         store,
		CacheTTL:      cfg.Cache.TTL,
	})

	svc := service.NewLocationService(client, service.Options{
		GeocodeURL:  cfg.Endpoints.Geocode,
		PlacesURL:   cfg.Endpoints.Places,
		RegionsURL:  cfg.Endpoints.Regions,
		LayersURL:   cfg.Endpoints.Layers,
		RegionTypes: cfg.Regions.Types,
	})

	mux := http.NewServeMux()
	links := humastar.NewLinks()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-geoserve API", api.Version)
	humaConfig.Info.Description = "Resolves addresses and coordinates into places, regions and map overlays from the USGS geoserve services."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humago.New(mux, humaConfig),
		links:   links,
		cache:   store,
		svc:     svc,
		handler: api.NewAPIHandler(svc),
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Service returns the location service behind the API.
func (s *Server) Service() *service.LocationService {
	return s.svc
}

// Start loads the overlay catalog and, when configured, starts relaying
// state changes to NATS until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.svc.FetchCatalog(ctx)

	if s.config.NATS.URL == "" {
		return nil
	}
	r, err := relay.Connect(s.config.NATS.URL, s.config.NATS.SubjectPrefix)
	if err != nil {
		return err
	}
	s.relay = r
	go r.Run(ctx, s.svc.Bus)
	logger.L().Info("relay_started", "url", s.config.NATS.URL, "prefix", s.config.NATS.SubjectPrefix)
	return nil
}

// Close closes server resources.
func (s *Server) Close() error {
	s.svc.Close()
	if s.relay != nil {
		s.relay.Close()
	}
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, s.handler)

	api.NewInfoHandler(api.Info{
		Cache:       s.config.Cache.Backend,
		Relay:       s.config.NATS.URL != "",
		RegionTypes: s.config.Regions.Types,
		Endpoints: map[string]string{
			"geocode": s.config.Endpoints.Geocode,
			"places":  s.config.Endpoints.Places,
			"regions": s.config.Endpoints.Regions,
			"layers":  s.config.Endpoints.Layers,
		},
	}).RegisterRoutes(s.humaAPI)

	// Datastar SSE routes
	stream.NewEventHandler(s.svc).RegisterRoutes(s.humaAPI)

	s.links.Build(s.humaAPI)

	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.Root() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-geoserve",
		"status":  "running",
	})
}
