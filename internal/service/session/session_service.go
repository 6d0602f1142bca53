// Package session issues, reuses, expires and evicts the ephemeral
// tokens binding client connections to accounts.
package session

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weiwangfds/photosync/config"
	"github.com/weiwangfds/photosync/internal/errors"
	"github.com/weiwangfds/photosync/internal/logger"
	"github.com/weiwangfds/photosync/internal/storage"
)

// Session is one issued token.
type Session struct {
	Username string `json:"username"`
	// Expiration is a sliding unix timestamp, extended on reuse.
	Expiration int64 `json:"expiration"`
	// IP is the source address the token was issued to.
	IP string `json:"ip"`
}

// Service is the session manager.
type Service interface {
	// Login returns a token for the user. A still-valid token issued to
	// the same source address is reused with its expiration extended;
	// otherwise a fresh token is minted. When the account then holds
	// more than the configured maximum, the session with the earliest
	// expiration is evicted.
	Login(username, ip string) (string, error)

	// Validate resolves a token to its username. Unknown, expired or
	// empty tokens are invalid; validation does not extend expiration.
	Validate(token string) (string, error)

	// Revoke removes a token. Revoking an unknown token is a no-op.
	Revoke(token string) error

	// Reassign re-points a still-valid token to another account without
	// reissuing it, and returns the username it previously bound.
	Reassign(token, username string) (string, error)
}

type sessionService struct {
	cfg   config.AuthConfig
	store *storage.JSONFile

	// mu serializes read-modify-write cycles over the token map and the
	// persisted file.
	mu       sync.Mutex
	sessions map[string]*Session

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewService loads the persisted token store.
func NewService(cfg config.AuthConfig, sessionsFile string) (Service, error) {
	s := &sessionService{
		cfg:      cfg,
		store:    storage.NewJSONFile(sessionsFile),
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	if err := s.store.Load(&s.sessions); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if s.sessions == nil {
		s.sessions = make(map[string]*Session)
	}
	logger.Infof("session store loaded: %d tokens", len(s.sessions))
	return s, nil
}

func (s *sessionService) persist() error {
	if err := s.store.Save(s.sessions); err != nil {
		return errors.Wrap(errors.ErrInternalServer, "failed to persist sessions", err)
	}
	return nil
}

func (s *sessionService) expiration() int64 {
	return s.now().Unix() + s.cfg.TokenExpiration
}

func (s *sessionService) Login(username, ip string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowUnix := s.now().Unix()

	// Reuse a live token from the same address instead of minting.
	for token, sess := range s.sessions {
		if sess.Username == username && sess.IP == ip && sess.Expiration >= nowUnix {
			sess.Expiration = s.expiration()
			if err := s.persist(); err != nil {
				return "", err
			}
			return token, nil
		}
	}

	token := uuid.NewString()
	for s.sessions[token] != nil {
		token = uuid.NewString()
	}
	s.sessions[token] = &Session{
		Username:   username,
		Expiration: s.expiration(),
		IP:         ip,
	}

	s.evictLocked(username)

	if err := s.persist(); err != nil {
		return "", err
	}
	return token, nil
}

// evictLocked drops the earliest-expiring session of username while the
// account holds more than the configured maximum. Other users' sessions
// are never touched.
func (s *sessionService) evictLocked(username string) {
	for {
		count := 0
		oldest := ""
		var oldestExp int64
		for token, sess := range s.sessions {
			if sess.Username != username {
				continue
			}
			count++
			if oldest == "" || sess.Expiration < oldestExp {
				oldest = token
				oldestExp = sess.Expiration
			}
		}
		if count <= s.cfg.MaxTokens {
			return
		}
		delete(s.sessions, oldest)
		logger.Infof("evicted session for %s (expiration %d)", username, oldestExp)
	}
}

func (s *sessionService) Validate(token string) (string, error) {
	if token == "" {
		return "", errors.NewByCode(errors.ErrTokenMissing)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", errors.NewByCode(errors.ErrTokenInvalid)
	}
	if sess.Expiration < s.now().Unix() {
		return "", errors.NewByCode(errors.ErrTokenInvalid).WithDetails("token expired")
	}
	return sess.Username, nil
}

func (s *sessionService) Revoke(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		logger.Debugf("revoke: token not found")
		return nil
	}
	delete(s.sessions, token)
	return s.persist()
}

func (s *sessionService) Reassign(token, username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok || sess.Expiration < s.now().Unix() {
		return "", errors.NewByCode(errors.ErrTokenInvalid)
	}

	previous := sess.Username
	sess.Username = username
	if err := s.persist(); err != nil {
		return "", err
	}
	// The reassignment is logged with both identities for audit.
	logger.Infof("session reassigned from %s to %s", previous, username)
	return previous, nil
}
