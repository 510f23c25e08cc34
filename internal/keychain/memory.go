// ABOUTME: In-memory Keychain implementation for tests
// ABOUTME: Map-backed store with Set and Delete helpers

package keychain

import "sync"

type memoryKey struct {
	service string
	account string
}

// Memory is a map-backed Keychain for tests
type Memory struct {
	mu      sync.RWMutex
	secrets map[memoryKey]string
}

// NewMemory returns an empty in-memory keychain
func NewMemory() *Memory {
	return &Memory{secrets: make(map[memoryKey]string)}
}

// Get returns the stored secret or ErrNotFound
func (m *Memory) Get(service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	secret, ok := m.secrets[memoryKey{service, account}]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Set stores a secret for a service/account pair
func (m *Memory) Set(service, account, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.secrets[memoryKey{service, account}] = secret
}

// Delete removes a secret if present
func (m *Memory) Delete(service, account string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.secrets, memoryKey{service, account})
}

// Ensure Memory implements Keychain.
var _ Keychain = (*Memory)(nil)
