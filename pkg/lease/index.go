package lease

import (
	"github.com/patrickmn/go-cache"
)

// Index is a concurrent leaseId/vmId -> hostname table. It is a weak
// reference, not an owning one: removing a hostname from Index has no
// effect on the MachineState that holds the lease. The scheduler looks
// entries up from goroutines other than the single writer owning the
// corresponding MachineState, so every operation here must be safe for
// concurrent use.
type Index struct {
	byKey *cache.Cache
}

// NewIndex returns an empty, concurrency-safe Index. Entries never expire
// on their own; they are removed explicitly via Remove.
func NewIndex() *Index {
	return &Index{byKey: cache.New(cache.NoExpiration, 0)}
}

// InsertIfAbsent atomically inserts key -> hostname if key is not already
// present, reporting whether the insert happened.
func (idx *Index) InsertIfAbsent(key, hostname string) bool {
	return idx.byKey.Add(key, hostname, cache.NoExpiration) == nil
}

// Set unconditionally (re)publishes key -> hostname.
func (idx *Index) Set(key, hostname string) {
	idx.byKey.SetDefault(key, hostname)
}

// Lookup returns the hostname published for key, if any.
func (idx *Index) Lookup(key string) (string, bool) {
	v, ok := idx.byKey.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Remove atomically deletes key from the index.
func (idx *Index) Remove(key string) {
	idx.byKey.Delete(key)
}

// Len returns the number of entries currently published. Intended for
// tests and diagnostics, not the hot path.
func (idx *Index) Len() int {
	return idx.byKey.ItemCount()
}
