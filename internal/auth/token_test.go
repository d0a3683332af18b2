package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/P4X666/small-ledger/internal/log"
)

type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	sets    int
	deletes int
	failAll bool
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}}
}

func (m *memKV) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return "", errors.New("storage unavailable")
	}
	return m.data[key], nil
}

func (m *memKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("storage unavailable")
	}
	m.data[key] = value
	m.sets++
	return nil
}

func (m *memKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deletes++
	return nil
}

func testLogger() *log.Logger {
	return log.New(slog.LevelError, log.ComponentAuth)
}

// unsignedJWT builds a structurally valid JWT with the given claims and a
// dummy signature. The client never verifies signatures, so any value works.
func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		t.Fatal(err)
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("%s.%s.%s",
		base64.RawURLEncoding.EncodeToString(header),
		base64.RawURLEncoding.EncodeToString(payload),
		base64.RawURLEncoding.EncodeToString([]byte("sig")))
}

func TestTokenStore_ReadThrough(t *testing.T) {
	kv := newMemKV()
	kv.data["token"] = "persisted-token"

	store := NewTokenStore(kv, testLogger())
	if got := store.Token(); got != "persisted-token" {
		t.Errorf("Token() = %q, want persisted-token", got)
	}

	// A second read must come from the memory cache
	kv.failAll = true
	if got := store.Token(); got != "persisted-token" {
		t.Errorf("Token() after cache fill = %q, want persisted-token", got)
	}
}

func TestTokenStore_SetSkipsIdentical(t *testing.T) {
	kv := newMemKV()
	store := NewTokenStore(kv, testLogger())

	if err := store.Set("tok"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set("tok"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if kv.sets != 1 {
		t.Errorf("storage writes = %d, want 1 for identical token", kv.sets)
	}

	if err := store.Set("other"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if kv.sets != 2 {
		t.Errorf("storage writes = %d, want 2 after token change", kv.sets)
	}
}

func TestTokenStore_ClearPurgesTokenAndUser(t *testing.T) {
	kv := newMemKV()
	store := NewTokenStore(kv, testLogger())

	if err := store.Set("tok"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetUser(UserInfo{ID: 7, Username: "ming"}); err != nil {
		t.Fatal(err)
	}

	store.Clear()

	if got := store.Token(); got != "" {
		t.Errorf("Token() after Clear = %q, want empty", got)
	}
	if user := store.User(); user != nil {
		t.Errorf("User() after Clear = %+v, want nil", user)
	}
	if kv.deletes != 2 {
		t.Errorf("storage deletes = %d, want 2 (token and user info)", kv.deletes)
	}
}

func TestTokenStore_UserRoundTrip(t *testing.T) {
	store := NewTokenStore(newMemKV(), testLogger())
	if err := store.SetUser(UserInfo{ID: 42, Username: "xiaohong"}); err != nil {
		t.Fatal(err)
	}
	user := store.User()
	if user == nil || user.ID != 42 || user.Username != "xiaohong" {
		t.Errorf("User() = %+v, want id 42 username xiaohong", user)
	}
}

func TestIsTokenExpired(t *testing.T) {
	future := time.Now().Add(time.Hour).Unix()
	past := time.Now().Add(-time.Hour).Unix()

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"empty token", "", true},
		{"malformed token", "not-a-jwt", true},
		{"no expiry claim", "", true}, // filled in below
		{"future expiry", "", false},
		{"past expiry", "", true},
	}
	tests[2].token = unsignedJWT(t, map[string]any{"sub": "1"})
	tests[3].token = unsignedJWT(t, map[string]any{"sub": "1", "exp": future})
	tests[4].token = unsignedJWT(t, map[string]any{"sub": "1", "exp": past})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTokenExpired(tt.token); got != tt.want {
				t.Errorf("IsTokenExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeExpiry(t *testing.T) {
	expiry := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	token := unsignedJWT(t, map[string]any{"exp": expiry.Unix()})

	got, err := DecodeExpiry(token)
	if err != nil {
		t.Fatalf("DecodeExpiry() error = %v", err)
	}
	if !got.Equal(expiry) {
		t.Errorf("DecodeExpiry() = %v, want %v", got, expiry)
	}
}

func TestTokenStore_LoggedIn(t *testing.T) {
	kv := newMemKV()
	store := NewTokenStore(kv, testLogger())
	if store.LoggedIn() {
		t.Error("LoggedIn() = true with no token")
	}

	valid := unsignedJWT(t, map[string]any{"exp": time.Now().Add(time.Hour).Unix()})
	if err := store.Set(valid); err != nil {
		t.Fatal(err)
	}
	if !store.LoggedIn() {
		t.Error("LoggedIn() = false with valid token")
	}

	expired := unsignedJWT(t, map[string]any{"exp": time.Now().Add(-time.Hour).Unix()})
	if err := store.Set(expired); err != nil {
		t.Fatal(err)
	}
	if store.LoggedIn() {
		t.Error("LoggedIn() = true with expired token")
	}
}
