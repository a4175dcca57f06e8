// Package token holds the bearer credential used to authenticate the
// streaming channel and the resync endpoint.
//
// Acquisition is external: something else logs in and hands us a token.
// This package stores it, exposes it to the transport, and fans out an
// invalidation signal (e.g. on a 401) so the sync core can clear its cache
// and suspend reconnection until a fresh token arrives.
package token

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// EnvVar is checked before the configured token file.
const EnvVar = "STATESYNC_TOKEN"

// Provider exposes the current token to consumers.
type Provider interface {
	// Get returns the current token, or "" when none is available.
	Get() string
}

// Store is the canonical Provider: it holds the token and notifies
// listeners on invalidation and refresh.
type Store struct {
	mu        sync.RWMutex
	token     string
	onInvalid []func()
	onRefresh []func()
}

// NewStore creates a store seeded with an initial token ("" for none).
func NewStore(initial string) *Store {
	return &Store{token: initial}
}

// Load creates a store from the environment or a token file. A missing
// credential is not an error: the core runs unauthenticated until Set.
func Load(path string) (*Store, error) {
	if tok := os.Getenv(EnvVar); tok != "" {
		return NewStore(strings.TrimSpace(tok)), nil
	}

	if path == "" {
		return NewStore(""), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStore(""), nil
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}

	return NewStore(strings.TrimSpace(string(data))), nil
}

// Get returns the current token.
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set installs a fresh token and notifies refresh listeners.
func (s *Store) Set(tok string) {
	s.mu.Lock()
	s.token = tok
	listeners := make([]func(), len(s.onRefresh))
	copy(listeners, s.onRefresh)
	s.mu.Unlock()

	if tok == "" {
		return
	}
	for _, fn := range listeners {
		fn()
	}
}

// Invalidate drops the token and notifies invalidation listeners. Called
// by whoever observes an unauthorized response.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.token = ""
	listeners := make([]func(), len(s.onInvalid))
	copy(listeners, s.onInvalid)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// OnInvalid registers a listener for invalidation signals.
func (s *Store) OnInvalid(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInvalid = append(s.onInvalid, fn)
}

// OnRefresh registers a listener for fresh-token signals.
func (s *Store) OnRefresh(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRefresh = append(s.onRefresh, fn)
}
