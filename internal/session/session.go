// Package session owns the process-wide authentication and
// device-binding session. The in-memory copy is the single source read
// by every component; each mutation is written through to the durable
// kvstore so the session survives restarts.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AirLink-Net/client_core/internal/kvstore"
	"github.com/AirLink-Net/client_core/internal/logging"
)

// storageKey is the kvstore key the session persists under.
const storageKey = "session"

// Session is a point-in-time snapshot of the current session. Values
// are copies; mutating a snapshot has no effect on the store.
type Session struct {
	AuthToken       string `json:"auth_token"`
	UserID          string `json:"user_id"`
	DeviceCode      string `json:"device_code"`
	IsAuthenticated bool   `json:"is_authenticated"`
}

// Store holds the session and is the only component allowed to mutate
// it. Invariant: DeviceCode is empty whenever IsAuthenticated is false.
type Store struct {
	mu  sync.RWMutex
	cur Session
	kv  *kvstore.Store
	log logging.Logger
}

// NewStore creates a session store seeded once from the kvstore. A
// persisted session violating the device-code invariant is repaired on
// load rather than trusted.
func NewStore(kv *kvstore.Store, log logging.Logger) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("session: kvstore is required")
	}
	if log == nil {
		log = logging.Nop()
	}

	s := &Store{kv: kv, log: log}

	var persisted Session
	err := kv.GetJSON(storageKey, &persisted)
	switch {
	case err == kvstore.ErrNotFound:
		// fresh start
	case err != nil:
		return nil, fmt.Errorf("session: load persisted session: %w", err)
	default:
		if !persisted.IsAuthenticated {
			persisted.DeviceCode = ""
		}
		s.cur = persisted
	}
	return s, nil
}

// Get returns a snapshot of the current session.
func (s *Store) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Token returns the current bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.AuthToken
}

// SetAuthenticated records a successful login.
func (s *Store) SetAuthenticated(token, userID string) error {
	if token == "" {
		return fmt.Errorf("session: token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur.AuthToken = token
	s.cur.UserID = userID
	s.cur.IsAuthenticated = true
	return s.persistLocked()
}

// SetDeviceCode records the device the user is bound to. Rejected on an
// unauthenticated session to preserve the store invariant.
func (s *Store) SetDeviceCode(code string) error {
	if code == "" {
		return fmt.Errorf("session: device code is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cur.IsAuthenticated {
		return fmt.Errorf("session: cannot set device code while unauthenticated")
	}
	s.cur.DeviceCode = code
	return s.persistLocked()
}

// ClearDevice removes device-binding fields but keeps authentication.
func (s *Store) ClearDevice() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur.DeviceCode = ""
	return s.persistLocked()
}

// ClearAll wipes the entire session, token and identity included. This
// is the 401 path and the explicit-logout path.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = Session{}
	if err := s.kv.Delete(storageKey); err != nil {
		return fmt.Errorf("session: clear persisted session: %w", err)
	}
	return nil
}

// TokenExpired reports whether the bearer token carries an exp claim in
// the past. The signature is the backend's concern; this is only a
// local shortcut to skip calls that are certain to 401. Tokens without
// a parseable exp claim are treated as live.
func (s *Store) TokenExpired() bool {
	token := s.Token()
	if token == "" {
		return true
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().After(exp.Time)
}

func (s *Store) persistLocked() error {
	if err := s.kv.PutJSON(storageKey, s.cur); err != nil {
		return fmt.Errorf("session: persist session: %w", err)
	}
	return nil
}
