package store

import "sync"

const treePrefix = "tree:"

// keyPool provides reusable byte slices for read-path keys.
var keyPool = sync.Pool{
	New: func() any {
		// Prefix plus a typical account identifier.
		return make([]byte, 0, 128)
	},
}

// buildKey constructs a database key from prefix and suffix using a pooled buffer.
// The returned slice is valid until releaseKey is called, so it must only be
// used for lookups: Badger may keep a reference to keys passed to Set or Delete.
func buildKey(prefix, suffix string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return buf
}

// releaseKey returns a key buffer to the pool for reuse.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}

// treeKey returns a freshly allocated key for writes.
func treeKey(accountID string) []byte {
	return []byte(treePrefix + accountID)
}
