package table

const (
	// TableSize represents the fixed size of the internal hash table.
	// This value (2^16) is chosen to map directly to the uint16 hash space.
	TableSize = 1 << 16
)

// PrefixTable stores byte keys and enumerates, for a given input, every stored
// key which is a prefix of it.
//
// Prefixes are hashed into a 65536-byte marker array, so that an input whose
// first bytes do not start any stored key is rejected after a single lookup.
// Several values may share the same key: they are kept in insertion order.
type PrefixTable[T any] struct {
	table [TableSize]byte
	elems map[string][]T
	size  int
}

const (
	// none indicates that no key prefix hashes to this position in the table.
	none = iota
	// presentMarker indicates that a prefix of a longer key hashes here.
	presentMarker
	// elemMarker indicates that a complete key hashes here.
	elemMarker
)

// New creates and returns a new initialized PrefixTable.
func New[T any]() *PrefixTable[T] {
	return &PrefixTable[T]{
		elems: make(map[string][]T),
	}
}

// Insert adds the value v under key. Empty keys are ignored.
//
// Every prefix of the key is marked in the hash array; the position of the
// full key is marked as an element. The hash `h = (h << 2) + b` lets the first
// bytes of a key dominate, which is what matters for magic numbers.
func (t *PrefixTable[T]) Insert(key []byte, v T) {
	if len(key) == 0 {
		return
	}

	var h uint16
	for _, b := range key {
		h = (h << 2) + uint16(b)
		t.table[h] = max(t.table[h], presentMarker)
	}
	t.table[h] = elemMarker
	t.elems[string(key)] = append(t.elems[string(key)], v)
	t.size++
}

// Get returns the values stored under key, in insertion order.
func (t *PrefixTable[T]) Get(key []byte) ([]T, bool) {
	v, found := t.elems[string(key)]
	return v, found
}

// Walk calls onMatch for every value whose key is a prefix of input.
// Shorter keys are visited first; values sharing a key are visited in
// insertion order. Traversal stops when onMatch returns true.
//
// For example, if the table contains "apple", "applet" and "apricot",
// Walk("appletie") visits "apple" and then "applet", while
// Walk("application") visits nothing.
func (t *PrefixTable[T]) Walk(input []byte, onMatch func(T) bool) {
	var h uint16
	for i, b := range input {
		h = (h << 2) + uint16(b)

		marker := t.table[h]
		if marker == none {
			return
		}

		if marker == elemMarker {
			for _, v := range t.elems[string(input[:i+1])] {
				if onMatch(v) {
					return
				}
			}
		}
	}
}

// Size returns the number of values stored in the table.
func (t *PrefixTable[T]) Size() int {
	return t.size
}
