// In-process registry store driver. Same semantics as the Redis driver but
// with no shared state across processes, so it is only suitable for tests and
// for single-worker dev use.
package memregistrystore

import (
	"context"
	"strconv"
	"sync"

	"github.com/function61/exohost/pkg/registrystore"
)

func New() *memStore {
	return &memStore{
		hashes: map[string]map[string]string{},
	}
}

type memStore struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
}

func (m *memStore) HGet(ctx context.Context, key string, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, found := m.hashes[key][field]
	if !found {
		return "", registrystore.ErrFieldNotFound
	}

	return val, nil
}

func (m *memStore) HSet(ctx context.Context, key string, field string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hash(key)[field] = value

	return nil
}

func (m *memStore) HSetNX(ctx context.Context, key string, field string, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := m.hash(key)

	if _, exists := hash[field]; exists {
		return false, nil
	}

	hash[field] = value

	return true, nil
}

func (m *memStore) HExists(ctx context.Context, key string, field string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.hashes[key][field]

	return exists, nil
}

func (m *memStore) HIncrBy(ctx context.Context, key string, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := m.hash(key)

	// absent field counts from zero, like Redis
	current := int64(0)
	if serialized, exists := hash[field]; exists {
		parsed, err := strconv.ParseInt(serialized, 10, 64)
		if err != nil {
			return 0, err
		}

		current = parsed
	}

	current += delta

	hash[field] = strconv.FormatInt(current, 10)

	return current, nil
}

// caller must hold mu
func (m *memStore) hash(key string) map[string]string {
	hash, found := m.hashes[key]
	if !found {
		hash = map[string]string{}
		m.hashes[key] = hash
	}

	return hash
}
