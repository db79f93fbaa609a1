// Package session owns the authentication lifecycle of the client: the
// current token and user, and the token persisted between runs. Every other
// client component asks the Manager for the token instead of keeping one.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"dnsmanager/internal/failure"
	"dnsmanager/internal/model"
)

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Authenticator is the remote side of the lifecycle.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, model.Identity, error)
	Logout(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (model.Identity, error)
}

type Session struct {
	Token string
	User  model.Identity
}

type Manager struct {
	api   Authenticator
	store TokenStore
	log   *logrus.Entry

	mu      sync.RWMutex
	state   State
	current Session
}

func NewManager(api Authenticator, store TokenStore, log *logrus.Entry) *Manager {
	if store == nil {
		store = &MemoryTokenStore{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{api: api, store: store, log: log.WithField("component", "session")}
}

func (m *Manager) transition(to State, s Session) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.current = s
	m.mu.Unlock()
	if from != to {
		m.log.WithFields(logrus.Fields{"from": from, "to": to, "user": s.User.Username}).Debug("session state changed")
	}
}

// Login authenticates against the service. On failure the manager is left
// Anonymous with nothing persisted, and the returned failure carries the
// message to show.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return failure.Validation("Username and password are required")
	}

	m.transition(Authenticating, Session{})

	token, user, err := m.api.Login(ctx, username, password)
	if err != nil {
		m.clearStore(ctx)
		m.transition(Anonymous, Session{})
		return err
	}

	if err := m.store.Save(ctx, token); err != nil {
		m.log.WithError(err).Warn("could not persist session token")
	}
	m.transition(Authenticated, Session{Token: token, User: user})
	return nil
}

// Verify restores a session from the persisted token. Any failure clears
// the persisted token; the result is always a settled state.
func (m *Manager) Verify(ctx context.Context) State {
	token, err := m.store.Load(ctx)
	if err != nil {
		m.log.WithError(err).Warn("could not read persisted token")
		m.clearStore(ctx)
	}
	if err != nil || token == "" {
		m.transition(Anonymous, Session{})
		return Anonymous
	}

	m.transition(Authenticating, Session{})

	user, err := m.api.Verify(ctx, token)
	if err != nil {
		m.log.WithError(err).Debug("persisted token rejected")
		m.clearStore(ctx)
		m.transition(Anonymous, Session{})
		return Anonymous
	}

	m.transition(Authenticated, Session{Token: token, User: user})
	return Authenticated
}

// Logout notifies the service when a session exists and always ends
// Anonymous with nothing persisted.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.RLock()
	token := m.current.Token
	m.mu.RUnlock()

	if token != "" {
		if err := m.api.Logout(ctx, token); err != nil {
			m.log.WithError(err).Debug("remote logout failed")
		}
	}
	m.clearStore(ctx)
	m.transition(Anonymous, Session{})
}

// Expire drops the session without telling the service, after the service
// rejected the token.
func (m *Manager) Expire(ctx context.Context) {
	m.clearStore(ctx)
	m.transition(Anonymous, Session{})
}

// Observe expires the session when err is an auth failure reported by the
// service, and returns err unchanged.
func (m *Manager) Observe(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, failure.ErrAnonymous) {
		return err
	}
	if failure.KindOf(err) == failure.KindAuth {
		m.log.WithField("reason", failure.Message(err)).Info("session expired by service")
		m.Expire(ctx)
	}
	return err
}

func (m *Manager) clearStore(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.log.WithError(err).Warn("could not clear persisted token")
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.state == Authenticated
}

// Token returns the bearer token, or failure.ErrAnonymous when no session
// is established.
func (m *Manager) Token() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != Authenticated {
		return "", failure.ErrAnonymous
	}
	return m.current.Token, nil
}

// User returns the authenticated identity, or failure.ErrAnonymous.
func (m *Manager) User() (model.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != Authenticated {
		return model.Identity{}, failure.ErrAnonymous
	}
	return m.current.User, nil
}
