package instance

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// Fingerprint returns a MurmurHash3 digest of the module's structure: the
// function table (order, names, body lengths) and the global table (count,
// mutability). Two modules with the same fingerprint resolve snapshot
// pointers identically.
func Fingerprint(mod Module) uint64 {
	h := murmur3.New64()
	buf := make([]byte, 8)

	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf, v)
		h.Write(buf)
	}

	funcs := mod.Functions()
	put(uint64(len(funcs)))
	for _, f := range funcs {
		put(uint64(f.Len()))
		put(uint64(len(f.Name())))
		h.Write([]byte(f.Name()))
	}

	globals := mod.Globals()
	put(uint64(len(globals)))
	for _, g := range globals {
		if g.Mutable {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	return h.Sum64()
}
