package proxy

import (
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

const defaultJarLimit = 1024

type jarEntry struct {
	jar  http.CookieJar
	used time.Time
}

// cookieJarStore keeps one upstream jar per browser, so the CSRF cookie the
// list page sets is replayed on the rows request. Jars idle for ttl are
// dropped, and past limit the least recently used jar goes first.
type cookieJarStore struct {
	mu    sync.Mutex
	now   func() time.Time
	ttl   time.Duration
	limit int
	jars  map[string]*jarEntry
}

func newCookieJarStore(now func() time.Time, ttl time.Duration, limit int) *cookieJarStore {
	if now == nil {
		now = time.Now
	}
	if limit <= 0 {
		limit = defaultJarLimit
	}
	return &cookieJarStore{
		now:   now,
		ttl:   ttl,
		limit: limit,
		jars:  make(map[string]*jarEntry),
	}
}

func (s *cookieJarStore) Get(key string) http.CookieJar {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.jars[key]; ok && !s.expired(e, now) {
		e.used = now
		return e.jar
	}
	s.prune(now)
	jar, _ := cookiejar.New(nil)
	s.jars[key] = &jarEntry{jar: jar, used: now}
	return jar
}

func (s *cookieJarStore) expired(e *jarEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.used) >= s.ttl
}

// prune makes room for one more jar. Callers hold s.mu.
func (s *cookieJarStore) prune(now time.Time) {
	for k, e := range s.jars {
		if s.expired(e, now) {
			delete(s.jars, k)
		}
	}
	for len(s.jars) >= s.limit {
		var (
			oldest string
			at     time.Time
			found  bool
		)
		for k, e := range s.jars {
			if !found || e.used.Before(at) {
				oldest, at, found = k, e.used, true
			}
		}
		delete(s.jars, oldest)
	}
}

func (s *cookieJarStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jars)
}
