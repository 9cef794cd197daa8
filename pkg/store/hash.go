// pkg/store/hash.go

package store

import "github.com/cespare/xxhash/v2"

// HashFunc computes a bucket-selection hash over a raw key. It must be
// stable across platform and endianness for dump/load portability to
// mean anything — the installed default satisfies that by construction
// since xxhash operates byte-wise over its input.
type HashFunc func(key []byte) uint64

// DefaultHash is xxhash, already present in this module's dependency
// graph via go-redis; it gives a high-quality string hash without
// hand-rolling one.
func DefaultHash(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// nextPrime returns the smallest prime >= n, used to size the bucket
// table.
func nextPrime(n uint64) uint64 {
	if n <= 2 {
		return 2
	}
	if n%2 == 0 {
		n++
	}
	for !isPrime(n) {
		n += 2
	}
	return n
}

func isPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := uint64(3); d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}
