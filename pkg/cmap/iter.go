// Package cmap provides a sharded concurrent map.
package cmap

// Range iterates over all key-value pairs.
//
// The callback returns false to stop iteration. Locks are taken shard by
// shard, so the view is not a consistent snapshot and fn must not write to m.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for _, shard := range m.shards {
		shard.mu.RLock()
		for k, v := range shard.items {
			if !fn(k, v) {
				shard.mu.RUnlock()
				return
			}
		}
		shard.mu.RUnlock()
	}
}

// Values returns all values.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.Count())
	m.Range(func(_ K, value V) bool {
		values = append(values, value)
		return true
	})
	return values
}

// CompareAndDelete deletes key only if it currently maps to old.
// V must be comparable at runtime (pointers, ids); it panics otherwise.
func (m *Map[K, V]) CompareAndDelete(key K, old V) bool {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	current, ok := shard.items[key]
	if !ok || any(current) != any(old) {
		return false
	}
	delete(shard.items, key)
	return true
}
