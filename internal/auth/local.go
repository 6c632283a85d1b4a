package auth

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"sportsmeet/internal/config"
	"sportsmeet/internal/models"
)

// LocalProvider checks logins against configured accounts and keeps sessions
// in memory.
type LocalProvider struct {
	accounts   []config.Account
	adminEmail string
	ttl        time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewLocalProvider(accounts []config.Account, adminEmail string, ttl time.Duration) *LocalProvider {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &LocalProvider{
		accounts:   accounts,
		adminEmail: adminEmail,
		ttl:        ttl,
		now:        time.Now,
		sessions:   make(map[string]*Session),
	}
}

func (p *LocalProvider) Login(ctx context.Context, identity, password string) (*Session, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	for _, a := range p.accounts {
		if identity != a.Username && (a.Email == "" || identity != a.Email) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(password), []byte(a.Password)) != 1 {
			return nil, ErrInvalidCredentials
		}
		s := &Session{
			Token: uuid.NewString(),
			Account: &models.Account{
				ID:           a.Username,
				Username:     a.Username,
				Email:        a.Email,
				Organisation: a.Organisation,
				Admin:        isAdmin(p.adminEmail, a.Username, a.Email),
			},
			LastActivity: p.now(),
		}
		p.mu.Lock()
		p.sessions[s.Token] = s
		p.mu.Unlock()
		logger.Infof("Login for %s (%s)", a.Username, a.Organisation)
		return s, nil
	}
	return nil, ErrInvalidCredentials
}

func (p *LocalProvider) Resolve(ctx context.Context, token string) (*models.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[token]
	if !ok || p.now().Sub(s.LastActivity) > p.ttl {
		return nil, ErrNoSession
	}
	s.LastActivity = p.now()
	return s.Account, nil
}

func (p *LocalProvider) Logout(ctx context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, token)
	return nil
}

// CleanUpInactiveSessions removes sessions idle for longer than the TTL.
func (p *LocalProvider) CleanUpInactiveSessions() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for token, s := range p.sessions {
		if p.now().Sub(s.LastActivity) > p.ttl {
			logger.Infof("Expiring session for %s", s.Account.Username)
			delete(p.sessions, token)
		}
	}
}

// ActiveSessions returns the number of live sessions.
func (p *LocalProvider) ActiveSessions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}
