package rag

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// Session holds the current index reference of one client. Ask holds the read
// lock for its whole run; clear and the reference swap of an upload take the
// write lock.
type Session struct {
	ID string

	mu        sync.RWMutex
	indexName string
}

func NewSession(id string) *Session {
	return &Session{ID: id}
}

// IndexName returns the current index reference, "" when nothing is indexed
func (s *Session) IndexName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexName
}

// SessionStore hands out sessions by id. Sessions idle for longer than the
// ttl are evicted and passed to onEvict.
type SessionStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewSessionStore(ttl time.Duration, onEvict func(*Session)) *SessionStore {
	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		expiration, cleanup = ttl, ttl/2
	}
	c := cache.New(expiration, cleanup)
	if onEvict != nil {
		c.OnEvicted(func(id string, v interface{}) {
			if sess, ok := v.(*Session); ok {
				log.Info().Str("session", id).Msg("Session expired")
				onEvict(sess)
			}
		})
	}
	return &SessionStore{cache: c}
}

// Get returns the session for id, creating it on first use, and refreshes its expiry
func (s *SessionStore) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sess *Session
	if v, ok := s.cache.Get(id); ok {
		sess = v.(*Session)
	} else {
		sess = NewSession(id)
	}
	s.cache.SetDefault(id, sess)
	return sess
}

// Len is the number of live sessions
func (s *SessionStore) Len() int {
	return s.cache.ItemCount()
}

// Expire evicts every session whose ttl has passed
func (s *SessionStore) Expire() {
	s.cache.DeleteExpired()
}
