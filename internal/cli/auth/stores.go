package auth

import "sync"

// KeyringStore stores one server's token in the OS keyring.
// It and MemoryStore satisfy session.TokenStore.
type KeyringStore struct {
	Server string
}

// ForServer returns the keyring-backed store for a server
func ForServer(server string) *KeyringStore {
	return &KeyringStore{Server: server}
}

func (k *KeyringStore) Load() (string, error) {
	return LoadToken(k.Server)
}

func (k *KeyringStore) Save(token string) error {
	return SaveToken(k.Server, token)
}

func (k *KeyringStore) Delete() error {
	return DeleteToken(k.Server)
}

// MemoryStore keeps the token in process memory
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore returns a store pre-loaded with token (may be "")
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStore) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
