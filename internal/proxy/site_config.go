package proxy

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Page handling modes.
const (
	ModeBake = "bake"
	ModeJS   = "js"
	ModePass = "pass"
)

// SiteConfig overrides how pages of one host are handled. It is read from
// <dir>/<host>.json; parent domains are tried when the full host has no file.
type SiteConfig struct {
	Mode string `json:"mode"`
	// Endpoint is the rows URL, used when the page does not name one.
	Endpoint     string            `json:"endpoint,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	WaitSelector string            `json:"wait_selector,omitempty"`
}

type siteConfigStore struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]*SiteConfig
}

func newSiteConfigStore(dir string) *siteConfigStore {
	return &siteConfigStore{
		dir:   dir,
		cache: make(map[string]*SiteConfig),
	}
}

func (s *siteConfigStore) Find(target string) *SiteConfig {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	s.mu.RLock()
	if cfg, ok := s.cache[host]; ok {
		s.mu.RUnlock()
		return cfg
	}
	s.mu.RUnlock()

	var found *SiteConfig
	labels := strings.Split(host, ".")
	for i := 0; i < len(labels); i++ {
		if found = s.load(strings.Join(labels[i:], ".")); found != nil {
			break
		}
	}
	s.mu.Lock()
	s.cache[host] = found
	s.mu.Unlock()
	return found
}

func (s *siteConfigStore) load(host string) *SiteConfig {
	if s.dir == "" || host == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(s.dir, host+".json"))
	if err != nil {
		return nil
	}
	var cfg SiteConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil
	}
	cfg.Mode = strings.TrimSpace(strings.ToLower(cfg.Mode))
	switch cfg.Mode {
	case ModeJS, ModePass:
	default:
		cfg.Mode = ModeBake
	}
	return &cfg
}

func (c *SiteConfig) mode() string {
	if c == nil {
		return ModeBake
	}
	return c.Mode
}
