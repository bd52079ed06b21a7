// Package clientip extracts the client address from HTTP requests.
//
// Headers are checked in this order:
//  1. X-Forwarded-For (leftmost hop, the original client)
//  2. X-Real-IP
//  3. RemoteAddr
//
// Every candidate is parsed with net.ParseIP and normalized, so
// "::ffff:192.0.2.1" and "192.0.2.1" map to the same string. Malformed values
// and 0.0.0.0 are skipped. GetIP never fails: if nothing parses, the raw
// RemoteAddr is returned.
//
// # Usage
//
//	ip := clientip.GetIP(r)
//	id := ratelimiter.IPIdentifier(ip)
//
// Only trust forwarded headers when the service runs behind a proxy that
// overwrites them.
package clientip
