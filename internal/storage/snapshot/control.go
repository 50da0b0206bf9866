package snapshot

import (
	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/core/instance"
	"github.com/yndnr/wasmsnap-go/internal/storage/archive"
)

// maxPrealloc caps slice preallocation driven by counts read from a stream.
const maxPrealloc = 1 << 16

// FrameRecord is the persisted form of one frame above the sentinels.
type FrameRecord struct {
	Locals uint32                `json:"locals" yaml:"locals"`
	Arity  uint32                `json:"arity" yaml:"arity"`
	VPos   uint32                `json:"vpos" yaml:"vpos"`
	Return domain.ProgramCounter `json:"return" yaml:"return"`
}

// ControlState is the module-independent form of the operand stack, the
// frame stack and the program counter.
type ControlState struct {
	Values []domain.Value `json:"-" yaml:"-"`
	// FrameCount includes the sentinel frames.
	FrameCount uint32                `json:"frame_count" yaml:"frame_count"`
	Frames     []FrameRecord         `json:"frames" yaml:"frames"`
	PC         domain.ProgramCounter `json:"pc" yaml:"pc"`

	// Truncated counts captured values whose high half was dropped. It is
	// not persisted.
	Truncated int `json:"-" yaml:"-"`
}

// CaptureControl builds the logical control state of stack with pc as the
// current position.
func CaptureControl(stack instance.StackManager, r *Resolver, pc domain.Position) (ControlState, error) {
	var st ControlState

	values := stack.Values()
	st.Values = make([]domain.Value, len(values))
	for i, v := range values {
		if v.Wide() {
			st.Truncated++
		}
		st.Values[i] = v.Truncate()
	}

	frames := stack.Frames()
	st.FrameCount = uint32(len(frames))
	if len(frames) > domain.SentinelFrames {
		st.Frames = make([]FrameRecord, 0, len(frames)-domain.SentinelFrames)
		for i, f := range frames[domain.SentinelFrames:] {
			ret, err := r.ToLogical(f.From)
			if err != nil {
				return st, domain.ErrFormatCorruption.
					WithDetailsf("frame %d return point", i+domain.SentinelFrames).Wrap(err)
			}
			st.Frames = append(st.Frames, FrameRecord{
				Locals: f.Locals,
				Arity:  f.Arity,
				VPos:   f.VPos,
				Return: ret,
			})
		}
	}

	cur, err := r.ToLogical(pc)
	if err != nil {
		return st, domain.ErrFormatCorruption.WithDetails("program counter").Wrap(err)
	}
	st.PC = cur
	return st, nil
}

func encodePC(w archive.Writer, pc domain.ProgramCounter) error {
	if err := w.WriteUint32(pc.FuncID); err != nil {
		return err
	}
	return w.WriteUint64(pc.Offset)
}

func decodePC(r archive.Reader) (domain.ProgramCounter, error) {
	var pc domain.ProgramCounter
	var err error
	if pc.FuncID, err = r.ReadUint32(); err != nil {
		return pc, err
	}
	pc.Offset, err = r.ReadUint64()
	return pc, err
}

// EncodeControl writes the value count and values, the frame count with the
// per-frame fields of every frame above the sentinels, then the program
// counter.
func EncodeControl(w archive.Writer, st ControlState) error {
	if err := w.WriteUint64(uint64(len(st.Values))); err != nil {
		return err
	}
	for _, v := range st.Values {
		if err := w.WriteUint64(v.Uint64()); err != nil {
			return err
		}
	}

	if err := w.WriteUint32(st.FrameCount); err != nil {
		return err
	}
	for _, f := range st.Frames {
		for _, u := range [...]uint32{f.Locals, f.Arity, f.VPos} {
			if err := w.WriteUint32(u); err != nil {
				return err
			}
		}
		if err := encodePC(w, f.Return); err != nil {
			return err
		}
	}

	return encodePC(w, st.PC)
}

// DecodeControl reads a control state written by EncodeControl.
func DecodeControl(r archive.Reader) (ControlState, error) {
	var st ControlState

	n, err := r.ReadUint64()
	if err != nil {
		return st, classify(err, "value count")
	}
	st.Values = make([]domain.Value, 0, min(n, maxPrealloc))
	for i := uint64(0); i < n; i++ {
		u, err := r.ReadUint64()
		if err != nil {
			return st, classify(err, "operand stack")
		}
		st.Values = append(st.Values, domain.ValueOf(u))
	}

	if st.FrameCount, err = r.ReadUint32(); err != nil {
		return st, classify(err, "frame count")
	}
	if st.FrameCount > domain.SentinelFrames {
		records := st.FrameCount - domain.SentinelFrames
		st.Frames = make([]FrameRecord, 0, min(records, maxPrealloc))
		for i := uint32(0); i < records; i++ {
			var f FrameRecord
			if f.Locals, err = r.ReadUint32(); err == nil {
				if f.Arity, err = r.ReadUint32(); err == nil {
					if f.VPos, err = r.ReadUint32(); err == nil {
						f.Return, err = decodePC(r)
					}
				}
			}
			if err != nil {
				return st, classify(err, "frame stack")
			}
			st.Frames = append(st.Frames, f)
		}
	}

	if st.PC, err = decodePC(r); err != nil {
		return st, classify(err, "program counter")
	}
	return st, nil
}

// resolvedControl is a control state whose pointers all resolved against the
// live module. Applying it cannot fail.
type resolvedControl struct {
	values []domain.Value
	frames []domain.Frame
	pc     domain.Position
	fn     instance.Function
}

func resolveControl(r *Resolver, st ControlState) (*resolvedControl, error) {
	rc := &resolvedControl{
		values: st.Values,
		frames: make([]domain.Frame, 0, len(st.Frames)),
	}

	for i, f := range st.Frames {
		from, _, err := r.ToPhysical(f.Return)
		if err != nil {
			return nil, domain.ErrFormatCorruption.
				WithDetailsf("frame %d return point", i+domain.SentinelFrames).Wrap(err)
		}
		rc.frames = append(rc.frames, domain.Frame{
			Locals: f.Locals,
			Arity:  f.Arity,
			VPos:   f.VPos,
			From:   from,
		})
	}

	pc, fn, err := r.ToPhysical(st.PC)
	if err != nil {
		return nil, domain.ErrFormatCorruption.WithDetails("program counter").Wrap(err)
	}
	rc.pc, rc.fn = pc, fn
	return rc, nil
}

func (rc *resolvedControl) apply(stack instance.StackManager) (domain.Position, instance.Function) {
	stack.SetValues(rc.values)
	stack.ResetFrames()
	for _, f := range rc.frames {
		stack.PushFrame(f)
	}
	return rc.pc, rc.fn
}

// ApplyControl replaces the operand stack and the frames above the sentinels
// with st and returns the restored program counter and its function. The
// stack is left untouched when any position fails to resolve.
func ApplyControl(stack instance.StackManager, r *Resolver, st ControlState) (domain.Position, instance.Function, error) {
	rc, err := resolveControl(r, st)
	if err != nil {
		return 0, nil, err
	}
	pc, fn := rc.apply(stack)
	return pc, fn, nil
}
