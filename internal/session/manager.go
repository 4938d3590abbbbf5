// Package session holds the per-user workspace state of the logo animator:
// inputs, busy flags, the current message, the readiness gate and the
// current logo and video.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maauso/logo-animator-api/internal/credential"
	"github.com/maauso/logo-animator-api/internal/job"
	"github.com/maauso/logo-animator-api/internal/job/id"
	"github.com/maauso/logo-animator-api/internal/media"
	"github.com/maauso/logo-animator-api/internal/storage"
	"github.com/maauso/logo-animator-api/internal/studio"
)

// Generator produces logos and renders animations.
type Generator interface {
	GenerateLogoImage(ctx context.Context, description string) (studio.Image, error)
	AnimateLogo(ctx context.Context, req studio.AnimateRequest, opts ...studio.PollOption) (*studio.Video, error)
}

// deps are shared by every workspace of a manager.
type deps struct {
	gen      Generator
	keys     credential.Selector
	setter   credential.KeySetter
	store    storage.Storage
	jobs     job.Repository
	poster   media.Processor
	logger   *slog.Logger
	pollOpts []studio.PollOption
}

// Manager creates and tracks workspaces.
type Manager struct {
	deps

	mu       sync.RWMutex
	sessions map[string]*Workspace
	closed   bool
}

// Option is a function that configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithKeySetter lets SelectKey store a caller-supplied key.
func WithKeySetter(s credential.KeySetter) Option {
	return func(m *Manager) {
		m.setter = s
	}
}

// WithPosterFrames enables poster frame extraction for finished videos.
func WithPosterFrames(p media.Processor) Option {
	return func(m *Manager) {
		m.poster = p
	}
}

// WithPollOptions sets poll options passed to every render.
func WithPollOptions(opts ...studio.PollOption) Option {
	return func(m *Manager) {
		m.pollOpts = append(m.pollOpts, opts...)
	}
}

// NewManager creates a Manager. keys may be nil, in which case every
// session starts ready.
func NewManager(gen Generator, keys credential.Selector, store storage.Storage, jobs job.Repository, opts ...Option) *Manager {
	m := &Manager{
		deps: deps{
			gen:    gen,
			keys:   keys,
			store:  store,
			jobs:   jobs,
			logger: slog.Default(),
		},
		sessions: make(map[string]*Workspace),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session. The readiness gate is initialised from the
// credential host; a host error counts as ready.
func (m *Manager) Create(ctx context.Context) (*Workspace, error) {
	ready := true
	if m.keys != nil {
		ok, err := m.keys.HasSelectedKey(ctx)
		if err != nil {
			m.logger.Warn("credential host check failed, assuming a key is selected",
				slog.String("error", err.Error()),
			)
		} else {
			ready = ok
		}
	}

	w := newWorkspace(id.Session(), ready, &m.deps)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.sessions[w.id] = w

	m.logger.Info("session created",
		slog.String("session_id", w.id),
		slog.Bool("ready", ready),
	)
	return w, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(sessionID string) (*Workspace, error) {
	if !id.ValidSession(sessionID) {
		return nil, ErrNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return w, nil
}

// Delete tears a session down: its render is cancelled, its video released
// and its jobs forgotten.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	w, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	err := w.Close(ctx)
	m.forgetJobs(ctx, sessionID)

	m.logger.Info("session deleted", slog.String("session_id", sessionID))
	return err
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close tears down every session. New sessions cannot be created afterwards.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Workspace, 0, len(m.sessions))
	for _, w := range m.sessions {
		sessions = append(sessions, w)
	}
	m.sessions = make(map[string]*Workspace)
	m.mu.Unlock()

	var errs []error
	for _, w := range sessions {
		if err := w.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", w.id, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) forgetJobs(ctx context.Context, sessionID string) {
	jobs, err := m.jobs.ListBySession(ctx, sessionID)
	if err != nil {
		m.logger.Warn("failed to list session jobs",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, j := range jobs {
		if err := m.jobs.Delete(ctx, j.ID); err != nil && !errors.Is(err, job.ErrJobNotFound) {
			m.logger.Warn("failed to delete job",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
