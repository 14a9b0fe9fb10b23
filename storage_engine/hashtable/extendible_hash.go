package hashtable

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

/*
Extendible hash table with directory doubling.

The directory is a slice of shared bucket pointers of length 2^globalDepth.
A bucket with local depth d is reachable from 2^(globalDepth-d) directory
slots: every slot whose low d bits match. Growth is incremental — an insert
into a full bucket splits just that bucket, doubling the directory only when
the bucket's local depth has caught up with the global depth.

The buffer pool instantiates this as its page table (PageID -> frame index);
the catalog instantiates it for table-name lookups. Both go through a
pluggable Hasher so integer keys can hash to their own value (the low bits
of a page id are already well distributed) while string keys go through
xxhash.
*/

// Hasher maps a key to the 64-bit hash whose low bits index the directory.
type Hasher[K comparable] func(K) uint64

// StringHasher hashes string keys through xxhash.
func StringHasher(key string) uint64 {
	return xxhash.Sum64String(key)
}

// IntHasher hashes integer keys to their own value, so directory placement
// follows the key's low bits directly.
func IntHasher(key int) uint64 {
	return uint64(key)
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// bucket holds at most size entries at local depth depth. Entries are
// unordered; lookups are linear scans.
type bucket[K comparable, V any] struct {
	items []entry[K, V]
	size  int
	depth int
}

func newBucket[K comparable, V any](size, depth int) *bucket[K, V] {
	return &bucket[K, V]{
		items: make([]entry[K, V], 0, size),
		size:  size,
		depth: depth,
	}
}

func (b *bucket[K, V]) find(key K) (V, bool) {
	for i := range b.items {
		if b.items[i].key == key {
			return b.items[i].value, true
		}
	}
	var zero V
	return zero, false
}

func (b *bucket[K, V]) remove(key K) bool {
	for i := range b.items {
		if b.items[i].key == key {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return true
		}
	}
	return false
}

// insert updates an existing key in place or appends into spare capacity.
// Returns false when the bucket is full and the key is new — the caller must
// split.
func (b *bucket[K, V]) insert(key K, value V) bool {
	for i := range b.items {
		if b.items[i].key == key {
			b.items[i].value = value
			return true
		}
	}
	if len(b.items) >= b.size {
		return false
	}
	b.items = append(b.items, entry[K, V]{key: key, value: value})
	return true
}

// ExtendibleHashTable maps keys to values with split-on-overflow growth.
type ExtendibleHashTable[K comparable, V any] struct {
	globalDepth int
	bucketSize  int
	numBuckets  int
	hash        Hasher[K]
	dir         []*bucket[K, V]
	mu          sync.Mutex
}

// NewExtendibleHashTable starts at global depth 0 with a single bucket
// holding at most bucketSize entries.
func NewExtendibleHashTable[K comparable, V any](bucketSize int, hash Hasher[K]) *ExtendibleHashTable[K, V] {
	t := &ExtendibleHashTable[K, V]{
		globalDepth: 0,
		bucketSize:  bucketSize,
		numBuckets:  1,
		hash:        hash,
	}
	t.dir = append(t.dir, newBucket[K, V](bucketSize, 0))
	return t
}

// indexOf masks the hash down to the directory slot for key.
func (t *ExtendibleHashTable[K, V]) indexOf(key K) int {
	mask := uint64(1)<<t.globalDepth - 1
	return int(t.hash(key) & mask)
}

// Find returns the value stored under key.
func (t *ExtendibleHashTable[K, V]) Find(key K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir[t.indexOf(key)].find(key)
}

// Remove erases key and reports whether an entry existed. The directory
// never shrinks.
func (t *ExtendibleHashTable[K, V]) Remove(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir[t.indexOf(key)].remove(key)
}

// Insert stores value under key, updating in place if the key exists.
// A full target bucket is split, doubling the directory when its local
// depth equals the global depth. The retry loop is required: a skewed hash
// distribution can force several consecutive splits before the colliding
// keys separate.
func (t *ExtendibleHashTable[K, V]) Insert(key K, value V) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := t.dir[t.indexOf(key)]
	for !target.insert(key, value) {
		// 1. Directory is saturated for this bucket: double it by
		// appending a copy of itself. Every existing mapping is preserved
		// because slot i+len and slot i share their low globalDepth bits.
		if target.depth == t.globalDepth {
			t.dir = append(t.dir, t.dir...)
			t.globalDepth++
		}

		// 2. Split the bucket one bit deeper.
		target.depth++
		mask := uint64(1) << (target.depth - 1)
		b0 := newBucket[K, V](t.bucketSize, target.depth)
		b1 := newBucket[K, V](t.bucketSize, target.depth)
		t.numBuckets++

		// 3. Re-target every directory slot that pointed at the old bucket:
		// bit (depth-1) of the slot index decides which half it follows.
		for i := range t.dir {
			if t.dir[i] == target {
				if uint64(i)&mask == 0 {
					t.dir[i] = b0
				} else {
					t.dir[i] = b1
				}
			}
		}

		// 4. Re-insert the old bucket's pairs; each lands in b0 or b1.
		for _, item := range target.items {
			t.dir[t.indexOf(item.key)].insert(item.key, item.value)
		}

		// 5. Retry the original insert against the fresh target.
		target = t.dir[t.indexOf(key)]
	}
}

// GlobalDepth returns the number of hash bits the directory discriminates on.
func (t *ExtendibleHashTable[K, V]) GlobalDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.globalDepth
}

// LocalDepth returns the depth of the bucket behind directory slot dirIndex.
func (t *ExtendibleHashTable[K, V]) LocalDepth(dirIndex int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir[dirIndex].depth
}

// NumBuckets returns the count of distinct buckets in the directory.
func (t *ExtendibleHashTable[K, V]) NumBuckets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numBuckets
}
