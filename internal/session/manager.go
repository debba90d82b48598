package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/adspower"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/config"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

// Provider starts and stops remote browser profiles.
type Provider interface {
	StartProfile(ctx context.Context, profileID string) (*adspower.StartResult, error)
	StopProfile(ctx context.Context, profileID string) error
}

// Manager owns at most one live session per account. Acquire reuses a
// healthy session, reconnects a dead one, and serializes per-account access.
type Manager struct {
	provider      Provider
	settle        time.Duration
	releaseDelay  time.Duration
	opTimeout     time.Duration
	stopOnRelease bool
	warmupURL     string

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex

	// Overridable seams for connection and liveness.
	connect func(ctx context.Context, accountID, profileID, wsURL string) (*Session, error)
	probe   func(ctx context.Context, s *Session) bool
}

// NewManager creates a session manager backed by the vendor provider.
func NewManager(provider Provider, cfg *config.Config) *Manager {
	m := &Manager{
		provider:      provider,
		settle:        cfg.SessionSettle,
		releaseDelay:  cfg.ReleaseDelay,
		opTimeout:     cfg.NavTimeout,
		stopOnRelease: cfg.StopOnRelease,
		warmupURL:     config.LinkedInFeedURL,
		sessions:      make(map[string]*Session),
		locks:         make(map[string]*sync.Mutex),
	}
	if cfg.WarmupDisabled {
		m.warmupURL = ""
	}
	m.connect = func(ctx context.Context, accountID, profileID, wsURL string) (*Session, error) {
		return Connect(ctx, accountID, profileID, wsURL, m.opTimeout)
	}
	m.probe = func(ctx context.Context, s *Session) bool {
		return s.Alive(ctx)
	}
	return m
}

// Acquire returns a live session for the account, starting the profile and
// attaching if needed. Concurrent acquires for the same account serialize;
// different accounts proceed independently.
func (m *Manager) Acquire(ctx context.Context, account *models.Account) (*Session, error) {
	lock := m.accountLock(account.ID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	existing := m.sessions[account.ID]
	m.mu.Unlock()

	if existing != nil {
		if m.probe(ctx, existing) {
			return existing, nil
		}
		logrus.Warnf("Session for account %s went stale, reconnecting", account.ID)
		existing.Close()
		m.mu.Lock()
		delete(m.sessions, account.ID)
		m.mu.Unlock()
	}

	res, err := m.provider.StartProfile(ctx, account.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to start profile for account %s: %w", account.ID, err)
	}

	// The browser needs a moment after start before CDP accepts attachments.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.settle):
	}

	s, err := m.connect(ctx, account.ID, account.ProfileID, res.WebSocketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to attach to profile for account %s: %w", account.ID, err)
	}

	if err := s.CloseExtraTabs(ctx); err != nil {
		logrus.Warnf("Failed to trim tabs for account %s: %v", account.ID, err)
	}

	// Warm-up is best effort; a failed first navigation is handled by the
	// login healer once the engines run.
	if m.warmupURL != "" {
		if err := s.Navigate(ctx, m.warmupURL); err != nil {
			logrus.Warnf("Warm-up navigation failed for account %s: %v", account.ID, err)
		}
	}

	m.mu.Lock()
	m.sessions[account.ID] = s
	m.mu.Unlock()

	logrus.Infof("Acquired session for account %s (profile %s)", account.ID, account.ProfileID)
	return s, nil
}

// IsValid reports whether the account holds a live, answering session.
func (m *Manager) IsValid(ctx context.Context, accountID string) bool {
	m.mu.Lock()
	s := m.sessions[accountID]
	m.mu.Unlock()
	if s == nil {
		return false
	}
	return m.probe(ctx, s)
}

// Release detaches the account's session. The vendor profile keeps running
// unless stop-on-release is configured; keeping it warm makes the next
// acquire a plain reattach.
func (m *Manager) Release(ctx context.Context, accountID string) {
	lock := m.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	s := m.sessions[accountID]
	delete(m.sessions, accountID)
	m.mu.Unlock()

	if s == nil {
		return
	}

	// Give in-flight CDP traffic a moment to settle before detaching.
	select {
	case <-ctx.Done():
	case <-time.After(m.releaseDelay):
	}
	s.Close()

	if m.stopOnRelease {
		if err := m.provider.StopProfile(ctx, s.ProfileID); err != nil {
			logrus.Warnf("Failed to stop profile %s: %v", s.ProfileID, err)
		}
	}
	logrus.Infof("Released session for account %s", accountID)
}

// ReleaseAll detaches every live session, used during shutdown.
func (m *Manager) ReleaseAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Release(ctx, id)
	}
}

func (m *Manager) accountLock(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[accountID] = lock
	}
	return lock
}
