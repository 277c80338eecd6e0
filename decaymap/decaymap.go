package decaymap

import (
	"sync"
	"time"
)

func Zilch[T any]() T {
	var zero T
	return zero
}

// Impl is a lazy key->value map. It's a wrapper around a map and a mutex. If values exceed their time-to-live, they are pruned at Get time.
type Impl[K comparable, V any] struct {
	data map[K]decayMapEntry[V]
	lock sync.RWMutex
	now  func() time.Time
}

type decayMapEntry[V any] struct {
	Value  V
	expiry time.Time
}

// New creates a new DecayMap of key type K and value type V.
//
// Key types must be comparable to work with maps.
func New[K comparable, V any]() *Impl[K, V] {
	return NewWithClock[K, V](time.Now)
}

// NewWithClock creates a new DecayMap that reads the current time from now.
// Tests use this to move time forward without sleeping.
func NewWithClock[K comparable, V any](now func() time.Time) *Impl[K, V] {
	return &Impl[K, V]{
		data: make(map[K]decayMapEntry[V]),
		now:  now,
	}
}

// expire forcibly expires a key by setting its time-to-live one second in the past.
func (m *Impl[K, V]) expire(key K) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	val, ok := m.data[key]
	if !ok {
		return false
	}

	val.expiry = m.now().Add(-1 * time.Second)
	m.data[key] = val
	return true
}

// Delete a value from the DecayMap by key.
//
// If the value does not exist, return false. Return true after
// deletion.
func (m *Impl[K, V]) Delete(key K) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	_, ok := m.data[key]
	delete(m.data, key)
	return ok
}

// Get gets a value from the DecayMap by key.
//
// If a value has expired, forcibly delete it if it was not updated.
func (m *Impl[K, V]) Get(key K) (V, bool) {
	m.lock.RLock()
	value, ok := m.data[key]
	m.lock.RUnlock()

	if !ok {
		return Zilch[V](), false
	}

	if !m.now().Before(value.expiry) {
		m.lock.Lock()
		// Since previously reading m.data[key], the value may have been updated.
		// Delete the entry only if the expiry time is still the same.
		if m.data[key].expiry.Equal(value.expiry) {
			delete(m.data, key)
		}
		m.lock.Unlock()

		return Zilch[V](), false
	}

	return value.Value, true
}

// Consume removes a live value from the DecayMap and returns it. Exactly one
// caller observes ok == true for a given Set. Expired values are removed and
// reported as missing.
func (m *Impl[K, V]) Consume(key K) (V, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	value, ok := m.data[key]
	if !ok {
		return Zilch[V](), false
	}

	delete(m.data, key)

	if !m.now().Before(value.expiry) {
		return Zilch[V](), false
	}

	return value.Value, true
}

// Set sets a key value pair in the map.
func (m *Impl[K, V]) Set(key K, value V, ttl time.Duration) {
	m.SetUntil(key, value, m.now().Add(ttl))
}

// SetUntil sets a key value pair in the map that expires at an absolute time.
func (m *Impl[K, V]) SetUntil(key K, value V, expiry time.Time) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.data[key] = decayMapEntry[V]{
		Value:  value,
		expiry: expiry,
	}
}

// AddUntil sets key only if it is absent or expired, and reports whether it
// did. Concurrent callers for the same key see exactly one true.
func (m *Impl[K, V]) AddUntil(key K, value V, expiry time.Time) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	if old, ok := m.data[key]; ok && m.now().Before(old.expiry) {
		return false
	}

	m.data[key] = decayMapEntry[V]{
		Value:  value,
		expiry: expiry,
	}
	return true
}

// Cleanup removes all expired entries from the DecayMap and returns how many
// were removed.
//
// Expired keys are collected under the read lock and then removed one at a
// time, so the write lock is never held for more than a single deletion.
func (m *Impl[K, V]) Cleanup() int {
	now := m.now()

	m.lock.RLock()
	var expired []K
	expiries := map[K]time.Time{}
	for key, val := range m.data {
		if !now.Before(val.expiry) {
			expired = append(expired, key)
			expiries[key] = val.expiry
		}
	}
	m.lock.RUnlock()

	removed := 0
	for _, key := range expired {
		m.lock.Lock()
		if val, ok := m.data[key]; ok && val.expiry.Equal(expiries[key]) {
			delete(m.data, key)
			removed++
		}
		m.lock.Unlock()
	}

	return removed
}

// Len returns the number of items in the cache, including expired entries
// that have not yet been cleaned up.
func (m *Impl[K, V]) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.data)
}
