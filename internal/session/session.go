// Package session holds the operator's identity-provider credentials.
//
// Only the access token and user ID are persisted, in the OS keyring. The role
// is never stored: it is looked up again on every reconciliation pass.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the keyring service under which credentials are stored
	ServiceName = "noisepanel"

	// RoleAdmin is the only role allowed to use the controls
	RoleAdmin = "admin"

	defaultAccount = "default"
)

// ErrNoSession is returned by Load when no credentials are stored
var ErrNoSession = errors.New("no stored session")

// Session is the operator's credential pair plus the last looked-up role
type Session struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Role        string `json:"-"`
}

// HasCredentials reports whether both halves of the credential pair are present
func (s Session) HasCredentials() bool {
	return s.AccessToken != "" && s.UserID != ""
}

// IsAdmin reports whether the last looked-up role is admin
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Store persists a Session
type Store interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// KeyringStore keeps the credential pair in the OS keyring, one entry per account
type KeyringStore struct {
	Account string
}

// NewKeyringStore creates a store for an account name; "" selects the default account
func NewKeyringStore(account string) *KeyringStore {
	if account == "" {
		account = defaultAccount
	}
	return &KeyringStore{Account: account}
}

// Load returns the stored session or ErrNoSession
func (k *KeyringStore) Load() (Session, error) {
	raw, err := keyring.Get(ServiceName, k.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to read keyring: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Session{}, fmt.Errorf("corrupt keyring entry: %w", err)
	}
	if !s.HasCredentials() {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Save stores the credential pair; the role is dropped
func (k *KeyringStore) Save(s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := keyring.Set(ServiceName, k.Account, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}

// Clear removes the stored credentials; clearing an empty store is not an error
func (k *KeyringStore) Clear() error {
	err := keyring.Delete(ServiceName, k.Account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keyring entry: %w", err)
	}
	return nil
}

// MemoryStore keeps the session in process memory
type MemoryStore struct {
	mu sync.Mutex
	s  Session
}

// Load returns the stored session or ErrNoSession
func (m *MemoryStore) Load() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.s.HasCredentials() {
		return Session{}, ErrNoSession
	}
	return Session{AccessToken: m.s.AccessToken, UserID: m.s.UserID}, nil
}

// Save stores the credential pair; the role is dropped
func (m *MemoryStore) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = Session{AccessToken: s.AccessToken, UserID: s.UserID}
	return nil
}

// Clear removes the stored credentials
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = Session{}
	return nil
}
