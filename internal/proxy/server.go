package proxy

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"listview/table"
	"listview/widget"
)

const defaultIndexHTML = `<!DOCTYPE html>
<html><body>
<h1>List View Server</h1>
<form action="/view" method="get">
<h3>Open a list page without JavaScript</h3>
URL: <input name="url" size="60"><br>
<button type="submit">Open</button>
</form>
</body></html>`

// Settings are the environment driven knobs.
type Settings struct {
	Addr            string        `env:"LISTVIEW_ADDR" envDefault:":8081"`
	SitesDir        string        `env:"LISTVIEW_SITES_DIR" envDefault:"config/sites"`
	Caption         string        `env:"LISTVIEW_CAPTION" envDefault:"en"`
	TableStyle      string        `env:"LISTVIEW_TABLE_STYLE"`
	UpstreamTimeout time.Duration `env:"LISTVIEW_UPSTREAM_TIMEOUT" envDefault:"15s"`
	PageCacheTTL    time.Duration `env:"LISTVIEW_PAGE_TTL" envDefault:"30s"`
	JarTTL          time.Duration `env:"LISTVIEW_JAR_TTL" envDefault:"30m"`
	JarLimit        int           `env:"LISTVIEW_JAR_LIMIT" envDefault:"1024"`
	UserAgent       string        `env:"LISTVIEW_USER_AGENT" envDefault:"listview/1.0"`
	Debug           bool          `env:"LISTVIEW_DEBUG" envDefault:"false"`
	JSBaking        bool          `env:"LISTVIEW_JS_BAKING" envDefault:"false"`
}

// Config describes server wiring and runtime behaviour.
type Config struct {
	Settings
	IndexHTML string
	IDs       widget.IDs
	Logger    *log.Logger
	Clock     func() time.Time
	// Transport overrides the upstream round tripper, mostly for tests.
	Transport http.RoundTripper
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg.Settings); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Addr = ":" + port
	}
	return cfg, nil
}

// Server exposes the HTTP handlers implementing the proxy behaviour.
type Server struct {
	cfg        Config
	mux        *http.ServeMux
	handler    http.Handler
	logger     *log.Logger
	cookieJars *cookieJarStore
	sites      *siteConfigStore
	cache      *pageCache
	renderer   *table.Renderer
	baker      *jsBaker
}

// New wires a new proxy server with the provided configuration.
func New(cfg Config) (*Server, error) {
	if cfg.IndexHTML == "" {
		cfg.IndexHTML = defaultIndexHTML
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.IDs.Form == "" {
		cfg.IDs = widget.DefaultIDs()
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 15 * time.Second
	}
	renderer, err := table.NewRenderer(table.Config{
		CaptionFormat: table.CaptionPreset(cfg.Caption),
		Style:         cfg.TableStyle,
	})
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		logger:     cfg.Logger,
		cookieJars: newCookieJarStore(cfg.Clock, cfg.JarTTL, cfg.JarLimit),
		sites:      newSiteConfigStore(cfg.SitesDir),
		cache:      newPageCache(cfg.Clock, cfg.PageCacheTTL),
		renderer:   renderer,
	}
	if cfg.JSBaking {
		s.baker = newJSBaker(s.logger)
	}
	s.registerRoutes()
	s.handler = withLogging(s.logger, s.mux)
	return s, nil
}

// Close releases the headless browser, if any.
func (s *Server) Close() {
	if s.baker != nil {
		s.baker.Close()
	}
}

// Handler exposes the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler { return s }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/view", s.handleView)
	s.mux.HandleFunc("/ping", s.handlePing)
}

func (s *Server) upstreamClient(jar http.CookieJar) *http.Client {
	return &http.Client{
		Timeout:   s.cfg.UpstreamTimeout,
		Jar:       jar,
		Transport: s.cfg.Transport,
	}
}
