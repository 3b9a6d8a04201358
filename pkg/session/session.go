// Package session keeps one conversation per browser session.
//
// Each session owns its own Orchestrator (and therefore its own transcript
// and submission guard) plus a websocket hub for pushing events. Sessions
// that stay idle longer than the configured timeout are expired by Run.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-voicechat/pkg/conversation"
	"github.com/teslashibe/go-voicechat/pkg/hub"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session: not found")

// ErrLimitReached is returned when MaxSessions sessions already exist.
var ErrLimitReached = errors.New("session: limit reached")

// Factory builds the orchestrator for a new session.
type Factory func(id string) (*conversation.Orchestrator, error)

// Session is one browser conversation.
type Session struct {
	ID           string
	CreatedAt    time.Time
	Orchestrator *conversation.Orchestrator
	Hub          *hub.Hub

	cancel     context.CancelFunc
	mu         sync.Mutex
	lastActive time.Time
}

// LastActive returns when the session was last used.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Config holds manager configuration.
type Config struct {
	// IdleTimeout expires sessions not touched for this long.
	IdleTimeout time.Duration

	// SweepInterval is how often Run looks for expired sessions.
	SweepInterval time.Duration

	// MaxSessions caps concurrent sessions; zero means unlimited.
	MaxSessions int

	Logger *slog.Logger
}

// Option is a functional option for configuring the manager.
type Option func(*Config)

// WithIdleTimeout sets how long an untouched session lives.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.IdleTimeout = d
	}
}

// WithSweepInterval sets how often expired sessions are collected.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Config) {
		c.SweepInterval = d
	}
}

// WithMaxSessions caps concurrent sessions.
func WithMaxSessions(n int) Option {
	return func(c *Config) {
		c.MaxSessions = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		IdleTimeout:   30 * time.Minute,
		SweepInterval: time.Minute,
		Logger:        slog.Default(),
	}
}

// Manager is the registry of live sessions.
type Manager struct {
	factory Factory
	config  *Config
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewManager creates a session manager.
func NewManager(factory Factory, opts ...Option) *Manager {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	return &Manager{
		factory:  factory,
		config:   cfg,
		logger:   cfg.Logger.With("component", "session.manager"),
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts a new session with a fresh orchestrator and hub.
func (m *Manager) Create() (*Session, error) {
	if m.full() {
		return nil, ErrLimitReached
	}

	id := uuid.NewString()
	orch, err := m.factory(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := m.now()
	s := &Session{
		ID:           id,
		CreatedAt:    now,
		Orchestrator: orch,
		Hub:          hub.New(id, m.config.Logger),
		cancel:       cancel,
		lastActive:   now,
	}

	// Concurrent creates may have filled the cap while the factory ran.
	m.mu.Lock()
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		m.mu.Unlock()
		cancel()
		return nil, ErrLimitReached
	}
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	go s.Hub.Run(ctx)

	m.logger.Info("session created", "session_id", id, "sessions", count)
	return s, nil
}

func (m *Manager) full() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions
}

// Get returns a live session and marks it active.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	s.lastActive = m.now()
	s.mu.Unlock()
	return s, nil
}

// Delete ends a session and disconnects its websocket clients.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.cancel()
	m.logger.Info("session deleted", "session_id", id)
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run expires idle sessions until ctx is cancelled, then ends every session.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep removes sessions idle longer than IdleTimeout and returns how many
// were removed. Sessions with a submission in flight are kept.
func (m *Manager) Sweep() int {
	if m.config.IdleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.config.IdleTimeout)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) && !s.Orchestrator.Busy() {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.cancel()
	}
	if len(expired) > 0 {
		m.logger.Info("expired idle sessions",
			"expired", len(expired),
			"sessions", remaining,
		)
	}
	return len(expired)
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.cancel()
	}
}
