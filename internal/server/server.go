// Package server wires the HTTP surface of the buildings explorer.
package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-buildings/internal/api"
	"github.com/joeblew999/plat-buildings/internal/api/explorer"
	"github.com/joeblew999/plat-buildings/internal/db"
	"github.com/joeblew999/plat-buildings/internal/imagery"
	"github.com/joeblew999/plat-buildings/internal/service"
	"github.com/joeblew999/plat-buildings/internal/storage"
	"github.com/joeblew999/plat-buildings/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host      string
	Port      string
	DataDir   string
	WebDir    string // Path to web/ directory for static files and templates
	BucketURL string // Shard bucket root; empty for the public Open Buildings bucket
}

// Server is the buildings explorer HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	renderer *templates.Renderer
}

// New creates a new explorer server.
func New(cfg Config) *Server {
	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("plat-buildings API", "1.0.0")
	humaConfig.Info.Description = "Open Buildings explorer: S2 coverings, shard downloads, and spatial filtering of building footprints."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}

	humaAPI := humago.New(mux, humaConfig)

	store := storage.NewHTTPStore(cfg.BucketURL)
	services := &api.Services{
		Region:   service.NewRegionService(cfg.DataDir),
		Explorer: service.NewExplorer(store, cfg.DataDir),
		Session:  service.NewSession(),
		Imagery:  imagery.New(""),
	}

	var renderer *templates.Renderer
	if cfg.WebDir != "" {
		fragmentsDir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if r, err := templates.New(fragmentsDir); err == nil {
			renderer = r
			fmt.Printf("Loaded fragment templates from %s\n", fragmentsDir)
		}
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		services: services,
		renderer: renderer,
	}

	conn, err := db.Get(db.Config{
		DataDir: cfg.DataDir,
		DBName:  "buildings",
	})
	if err == nil {
		s.db = conn
		services.Explorer.RegisterShard = func(token, csvPath string) error {
			return db.RegisterShardView(conn, token, csvPath)
		}
		services.Explorer.DropShards = func() error {
			return db.DropShardViews(conn)
		}
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close closes server resources.
func (s *Server) Close() error {
	return db.Close()
}

// OpenAPI returns the API description for spec export.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

func (s *Server) routes() {
	// REST API (OpenAPI-documented JSON endpoints)
	apiHandler := api.NewAPIHandler(s.services, s.config.DataDir, s.db != nil)
	apiHandler.RegisterRoutes(s.humaAPI)

	dbHandler := api.NewDBHandler(s.db)
	dbHandler.RegisterRoutes(s.humaAPI)

	// Explorer SSE routes using Huma + Datastar SDK
	if s.renderer != nil {
		regionHandler := explorer.NewRegionHandler(s.services.Region, s.services.Session, s.services.Explorer, s.renderer)
		regionHandler.RegisterRoutes(s.humaAPI)

		fetchHandler := explorer.NewFetchHandler(s.services.Explorer, s.services.Session, s.renderer)
		fetchHandler.RegisterRoutes(s.humaAPI)

		imageryHandler := explorer.NewImageryHandler(s.services.Imagery, s.services.Session, s.renderer)
		imageryHandler.RegisterRoutes(s.humaAPI)
	}

	// GeoJSON export stays on the plain mux: it streams a file download,
	// not a documented JSON body.
	s.mux.HandleFunc("/api/v1/export", s.handleExport)

	// Static files
	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	// Page routes
	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

// handleExport serves the filtered result set as a downloadable GeoJSON
// document.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session := s.services.Session
	session.Lock()
	result := session.Result
	session.Unlock()

	if result == nil {
		http.Error(w, "No filtered result to export; fetch a region first", http.StatusNotFound)
		return
	}

	data, err := json.Marshal(result.FeatureCollection())
	if err != nil {
		http.Error(w, "Failed to encode GeoJSON: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Content-Disposition", `attachment; filename="filtered_buildings.geojson"`)
	w.Write(data)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-buildings",
		"status":  "running",
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	templatePath := filepath.Join(s.config.WebDir, "templates", "viewer.html")
	http.ServeFile(w, r, templatePath)
}
