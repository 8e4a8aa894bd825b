package segcache

import "github.com/Borislavv/go-seg-cache/internal/store"

// Engine error kinds. All are local to a single call and leave the cache
// usable; match with errors.Is.
var (
	ErrNotFound        = store.ErrNotFound
	ErrExists          = store.ErrExists
	ErrItemOversized   = store.ErrItemOversized
	ErrNoFreeSegment   = store.ErrNoFreeSegment
	ErrHashTableFull   = store.ErrHashTableFull
	ErrMalformedNumber = store.ErrMalformedNumber
)
