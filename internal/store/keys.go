package store

import "sync"

// keyPool provides reusable byte slices for building database keys,
// reducing allocations on the hot path of store lookups.
//
// Pooled keys are for READ paths only (txn.Get). Badger retains any key
// passed to txn.Set or txn.Delete until the transaction commits, so write
// paths must allocate plain keys instead.
var keyPool = sync.Pool{
	New: func() any {
		// 256 bytes covers prefix + "idx:" + index name + value + NanoID.
		return make([]byte, 0, 256)
	},
}

// buildKey constructs a primary key from prefix and id using a pooled
// buffer. Callers MUST call releaseKey when done with the key, and must not
// pass it to txn.Set or txn.Delete.
func buildKey(prefix, id string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, id...)
	return buf
}

// buildIndexKey constructs a secondary index key using a pooled buffer.
// Same contract as buildKey: read paths only, release when done.
func buildIndexKey(prefix, indexName, value string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, "idx:"...)
	buf = append(buf, indexName...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	return buf
}

// releaseKey returns a key buffer to the pool. The slice must not be used
// afterwards.
func releaseKey(key []byte) {
	// Don't pool oversized buffers.
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}
