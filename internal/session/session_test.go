package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AirLink-Net/client_core/internal/kvstore"
	"github.com/AirLink-Net/client_core/internal/logging"
)

func newStore(t *testing.T) (*Store, *kvstore.Store) {
	t.Helper()
	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("kvstore.Open() error: %v", err)
	}
	s, err := NewStore(kv, logging.Nop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return s, kv
}

func TestNewStore_StartsEmpty(t *testing.T) {
	s, _ := newStore(t)
	sess := s.Get()
	if sess.IsAuthenticated || sess.AuthToken != "" || sess.DeviceCode != "" {
		t.Errorf("fresh session not empty: %+v", sess)
	}
}

func TestSetAuthenticated_Persists(t *testing.T) {
	s, kv := newStore(t)

	if err := s.SetAuthenticated("tok-1", "user-1"); err != nil {
		t.Fatalf("SetAuthenticated() error: %v", err)
	}

	reloaded, err := NewStore(kv, logging.Nop())
	if err != nil {
		t.Fatalf("NewStore() reload error: %v", err)
	}
	sess := reloaded.Get()
	if !sess.IsAuthenticated {
		t.Error("reloaded session not authenticated")
	}
	if sess.AuthToken != "tok-1" || sess.UserID != "user-1" {
		t.Errorf("reloaded session = %+v", sess)
	}
}

func TestSetDeviceCode_RequiresAuthentication(t *testing.T) {
	s, _ := newStore(t)

	if err := s.SetDeviceCode("DEV-1"); err == nil {
		t.Error("SetDeviceCode() on unauthenticated session should fail")
	}
	if got := s.Get().DeviceCode; got != "" {
		t.Errorf("DeviceCode = %q, want empty", got)
	}
}

func TestClearDevice_KeepsAuthentication(t *testing.T) {
	s, _ := newStore(t)
	_ = s.SetAuthenticated("tok-1", "user-1")
	_ = s.SetDeviceCode("DEV-1")

	if err := s.ClearDevice(); err != nil {
		t.Fatalf("ClearDevice() error: %v", err)
	}
	sess := s.Get()
	if sess.DeviceCode != "" {
		t.Errorf("DeviceCode = %q after ClearDevice", sess.DeviceCode)
	}
	if !sess.IsAuthenticated || sess.AuthToken != "tok-1" {
		t.Error("ClearDevice() must preserve authentication")
	}
}

func TestClearAll_WipesEverything(t *testing.T) {
	s, kv := newStore(t)
	_ = s.SetAuthenticated("tok-1", "user-1")
	_ = s.SetDeviceCode("DEV-1")

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}
	sess := s.Get()
	if sess.IsAuthenticated || sess.AuthToken != "" || sess.DeviceCode != "" || sess.UserID != "" {
		t.Errorf("session after ClearAll = %+v", sess)
	}

	reloaded, err := NewStore(kv, logging.Nop())
	if err != nil {
		t.Fatalf("NewStore() reload error: %v", err)
	}
	if reloaded.Get().IsAuthenticated {
		t.Error("ClearAll() did not remove the persisted session")
	}
}

func TestNewStore_RepairsInvariantOnLoad(t *testing.T) {
	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("kvstore.Open() error: %v", err)
	}
	// Device code without authentication should never be trusted.
	bad := Session{DeviceCode: "DEV-1", IsAuthenticated: false}
	if err := kv.PutJSON("session", bad); err != nil {
		t.Fatalf("seed kvstore: %v", err)
	}

	s, err := NewStore(kv, logging.Nop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	if got := s.Get().DeviceCode; got != "" {
		t.Errorf("DeviceCode = %q, want empty after invariant repair", got)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestTokenExpired(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"no token", "", true},
		{"live token", "", false},
		{"expired token", "", true},
		{"opaque token treated as live", "not-a-jwt", false},
	}
	tests[1].token = signedToken(t, time.Now().Add(time.Hour))
	tests[2].token = signedToken(t, time.Now().Add(-time.Hour))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newStore(t)
			if tt.token != "" {
				_ = s.SetAuthenticated(tt.token, "user-1")
			}
			if got := s.TokenExpired(); got != tt.want {
				t.Errorf("TokenExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}
