package store

import "errors"

var (
	// ErrNotFound - key absent or expired; normal control flow for reads
	// and deletes.
	ErrNotFound = errors.New("key not found")

	// ErrExists - add collision or cas mismatch.
	ErrExists = errors.New("key exists")

	// ErrItemOversized - key+value+header exceeds one segment.
	ErrItemOversized = errors.New("item exceeds segment size")

	// ErrNoFreeSegment - eviction could not free a segment under the
	// active policy.
	ErrNoFreeSegment = errors.New("no free segment")

	// ErrHashTableFull - overflow chain budget exhausted.
	ErrHashTableFull = errors.New("hash table full")

	// ErrMalformedNumber - incr/decr on a value that is not an unsigned
	// decimal integer.
	ErrMalformedNumber = errors.New("malformed number")
)
