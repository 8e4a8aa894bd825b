package segcache

// Item is what a read returns. Value is a private copy owned by the
// caller; Flags are returned verbatim as stored; CAS is the engine-issued
// token for optimistic writes and is never 0 for a stored item.
type Item struct {
	Value []byte
	Flags uint32
	CAS   uint64
}
