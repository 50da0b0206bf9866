package snapshot

import (
	"sort"

	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/core/instance"
)

// Resolver translates between live code positions and (function id, offset)
// pairs for one module.
type Resolver struct {
	funcs  []instance.Function
	starts []domain.Position
	ids    []uint32
}

// NewResolver indexes the function table of mod. Functions with empty bodies
// are left out of the index since no position can point into them.
func NewResolver(mod instance.Module) *Resolver {
	funcs := mod.Functions()
	r := &Resolver{funcs: funcs}

	for i, fn := range funcs {
		if fn.Len() == 0 {
			continue
		}
		r.starts = append(r.starts, fn.Entry())
		r.ids = append(r.ids, uint32(i))
	}

	sort.Sort(byStart{r})
	return r
}

type byStart struct{ r *Resolver }

func (b byStart) Len() int           { return len(b.r.starts) }
func (b byStart) Less(i, j int) bool { return b.r.starts[i] < b.r.starts[j] }
func (b byStart) Swap(i, j int) {
	b.r.starts[i], b.r.starts[j] = b.r.starts[j], b.r.starts[i]
	b.r.ids[i], b.r.ids[j] = b.r.ids[j], b.r.ids[i]
}

// ToLogical returns the function containing pos and the offset of pos from
// that function's entry. The owning function is the one with the greatest
// entry not after pos. A position one past a function's last instruction is
// accepted as that function's end.
func (r *Resolver) ToLogical(pos domain.Position) (domain.ProgramCounter, error) {
	// First start strictly after pos; its predecessor owns pos.
	i := sort.Search(len(r.starts), func(i int) bool { return r.starts[i] > pos })
	if i == 0 {
		return domain.ProgramCounter{}, domain.ErrFormatCorruption.
			WithDetailsf("position %d precedes every function", pos)
	}

	id := r.ids[i-1]
	off := uint64(pos - r.starts[i-1])
	if off > uint64(r.funcs[id].Len()) {
		return domain.ProgramCounter{}, domain.ErrFormatCorruption.
			WithDetailsf("position %d lies past the end of function %d", pos, id)
	}

	return domain.ProgramCounter{FuncID: id, Offset: off}, nil
}

// ToPhysical returns the live position named by pc and its owning function.
func (r *Resolver) ToPhysical(pc domain.ProgramCounter) (domain.Position, instance.Function, error) {
	if int(pc.FuncID) >= len(r.funcs) {
		return 0, nil, domain.ErrFormatCorruption.
			WithDetailsf("function id %d out of range (%d functions)", pc.FuncID, len(r.funcs))
	}

	fn := r.funcs[pc.FuncID]
	if pc.Offset > uint64(fn.Len()) {
		return 0, nil, domain.ErrFormatCorruption.
			WithDetailsf("%s: offset exceeds body length %d", pc, fn.Len())
	}

	return fn.Entry() + domain.Position(pc.Offset), fn, nil
}
