package ratelimiter

import "strings"

// Identifier partitions rate limit state per caller. It always carries its
// origin so an IP address and an API key with the same literal value never
// share a bucket.
type Identifier string

const (
	ipPrefix     = "IP:"
	apiKeyPrefix = "API:"
)

// IPIdentifier tags a client address.
func IPIdentifier(addr string) Identifier {
	return Identifier(ipPrefix + addr)
}

// APIKeyIdentifier tags an API key.
func APIKeyIdentifier(key string) Identifier {
	return Identifier(apiKeyPrefix + key)
}

// IsIP reports whether the identifier was derived from a client address.
func (id Identifier) IsIP() bool {
	return strings.HasPrefix(string(id), ipPrefix)
}

// IsAPIKey reports whether the identifier was derived from an API key.
func (id Identifier) IsAPIKey() bool {
	return strings.HasPrefix(string(id), apiKeyPrefix)
}

func (id Identifier) String() string {
	return string(id)
}
