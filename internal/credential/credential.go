// Package credential abstracts where the Gemini API key comes from.
//
// A Selector answers whether the user has picked a key and can ask the host
// to open its key picker. A Provider hands out the key itself and is
// consulted on every remote call, so a key changed at runtime takes effect
// on the next request.
package credential

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ErrNoKey is returned when no API key is available.
var ErrNoKey = errors.New("credential: no API key available")

// Selector reports and drives the host's key selection.
type Selector interface {
	// HasSelectedKey reports whether a key has been selected.
	HasSelectedKey(ctx context.Context) (bool, error)
	// OpenSelectKey asks the host to let the user pick a key.
	OpenSelectKey(ctx context.Context) error
}

// Provider returns the API key to use for a single remote call.
type Provider interface {
	APIKey(ctx context.Context) (string, error)
}

// KeySetter is implemented by selectors that accept a key directly.
type KeySetter interface {
	SetKey(ctx context.Context, key string) error
}

// EnvProvider reads the key from an environment variable on every call.
type EnvProvider struct {
	name string
}

// NewEnvProvider creates a provider reading the given variable.
func NewEnvProvider(name string) *EnvProvider {
	return &EnvProvider{name: name}
}

// APIKey returns the current value of the environment variable.
func (p *EnvProvider) APIKey(_ context.Context) (string, error) {
	key := strings.TrimSpace(os.Getenv(p.name))
	if key == "" {
		return "", ErrNoKey
	}
	return key, nil
}

// AlwaysReady is a Selector for deployments where the key is configured
// out of band. It always reports a selected key.
type AlwaysReady struct{}

// HasSelectedKey always returns true.
func (AlwaysReady) HasSelectedKey(context.Context) (bool, error) { return true, nil }

// OpenSelectKey is a no-op.
func (AlwaysReady) OpenSelectKey(context.Context) error { return nil }

// MemoryStore is a host-side key store held in process memory.
// It implements Selector, Provider and KeySetter.
type MemoryStore struct {
	mu     sync.RWMutex
	key    string
	opens  int
	logger *slog.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{logger: logger}
}

// SetKey replaces the stored key. An empty key clears the selection.
func (s *MemoryStore) SetKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = strings.TrimSpace(key)
	return nil
}

// HasSelectedKey reports whether a non-empty key is stored.
func (s *MemoryStore) HasSelectedKey(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != "", nil
}

// OpenSelectKey records a selection request. The store has no UI of its
// own; clients submit the key through SetKey.
func (s *MemoryStore) OpenSelectKey(_ context.Context) error {
	s.mu.Lock()
	s.opens++
	opens := s.opens
	s.mu.Unlock()

	s.logger.Info("key selection requested", slog.Int("requests", opens))
	return nil
}

// APIKey returns the stored key.
func (s *MemoryStore) APIKey(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == "" {
		return "", ErrNoKey
	}
	return s.key, nil
}
