// String interning for the schema resolver's field-name and display-string
// tables, which otherwise accumulate one allocation per occurrence across
// potentially millions of decoded pair records of the same pair_type_id.
// Three selectable hash algorithms trade off speed, dependency-freedom, and
// distribution quality.
package pipedb

import (
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Hash algorithm selectors for Config.HashAlgorithm.
const (
	HashXXHash3 = 1 // default, fastest
	HashFNV1a   = 2 // no external dependencies
	HashBlake2b = 3 // best distribution
)

// internTable deduplicates strings by content hash. Not safe for
// concurrent use; each schema build owns its own table.
type internTable struct {
	alg   int
	table map[uint64]string
}

func newInternTable(alg int) *internTable {
	if alg == 0 {
		alg = HashXXHash3
	}
	return &internTable{alg: alg, table: make(map[uint64]string)}
}

func (t *internTable) intern(s string) string {
	if s == "" {
		return s
	}
	h := t.hash(s)
	if existing, ok := t.table[h]; ok && existing == s {
		return existing
	}
	t.table[h] = s
	return s
}

func (t *internTable) hash(s string) uint64 {
	switch t.alg {
	case HashFNV1a:
		h := fnv.New64a()
		h.Write([]byte(s))
		return h.Sum64()
	case HashBlake2b:
		h, _ := blake2b.New(8, nil)
		h.Write([]byte(s))
		sum := h.Sum(nil)
		var v uint64
		for _, b := range sum {
			v = v<<8 | uint64(b)
		}
		return v
	default:
		return xxh3.HashString(s)
	}
}
