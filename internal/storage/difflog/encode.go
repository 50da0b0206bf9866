package difflog

import "github.com/yndnr/wasmsnap-go/internal/storage/archive"

// Encode writes the records that turn prev into cur.
//
// With no baseline (prev == nil) every byte of cur is written, except zero
// bytes when sparse is set. With a baseline, every differing position is
// written; positions past the end of prev compare against zero because
// memory growth zero-fills.
func Encode(w archive.Writer, cur, prev []byte, sparse bool) (Stats, error) {
	var st Stats

	emit := func(off int, v byte) error {
		if err := w.WriteUint64(uint64(off)); err != nil {
			return err
		}
		if err := w.WriteUint8(v); err != nil {
			return err
		}
		st.Records++
		return nil
	}

	if prev == nil {
		for i, b := range cur {
			if sparse && b == 0 {
				st.Skipped++
				continue
			}
			if err := emit(i, b); err != nil {
				return st, err
			}
		}
		return st, w.Flush()
	}

	for i, b := range cur {
		var old byte
		if i < len(prev) {
			old = prev[i]
		}
		if b == old {
			continue
		}
		if err := emit(i, b); err != nil {
			return st, err
		}
	}
	return st, w.Flush()
}
