package domain

import "fmt"

// SentinelFrames is the number of VM-internal root frames at the bottom of
// every frame stack. They are owned by the VM and never persisted.
const SentinelFrames = 2

// Position is a live instruction position: an index into the module's code
// arena. It is only meaningful inside the process that produced it.
type Position uint64

// ProgramCounter is a relocatable instruction position.
//
// FuncID indexes the module's function table; Offset is the distance from
// that function's first instruction.
type ProgramCounter struct {
	FuncID uint32 `json:"func_id" yaml:"func_id"`
	Offset uint64 `json:"offset" yaml:"offset"`
}

func (pc ProgramCounter) String() string {
	return fmt.Sprintf("func[%d]+%d", pc.FuncID, pc.Offset)
}

// Frame is one call activation on the live frame stack.
type Frame struct {
	// Locals is the number of local slots owned by the frame.
	Locals uint32
	// Arity is the number of results the callee leaves on the stack.
	Arity uint32
	// VPos is the operand stack index marking the frame's base.
	VPos uint32
	// From is where execution resumes in the caller.
	From Position
}
