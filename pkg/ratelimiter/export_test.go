package ratelimiter

// CorruptBucket overwrites the token count of an existing bucket.
func CorruptBucket(ms *MemoryStore, id Identifier, strategy string, tokens float64) bool {
	key := bucketKey{identifier: id, strategy: strategy}
	sh := ms.shardFor(key)

	sh.mu.Lock()
	b, ok := sh.buckets[key]
	sh.mu.Unlock()
	if !ok {
		return false
	}

	b.mu.Lock()
	b.tokens = tokens
	b.mu.Unlock()
	return true
}
