package instance

import "github.com/yndnr/wasmsnap-go/internal/core/domain"

// StackManager exposes the live operand and frame stacks of one VM.
type StackManager interface {
	Module() Module
	Values() []domain.Value
	// SetValues replaces the operand stack.
	SetValues(values []domain.Value)
	// Frames returns the frame stack bottom to top, sentinels included.
	Frames() []domain.Frame
	PushFrame(f domain.Frame)
	// ResetFrames drops every frame above the sentinel frames.
	ResetFrames()
}

// Stack is an in-memory StackManager. It starts with the sentinel frames in
// place.
type Stack struct {
	mod    Module
	values []domain.Value
	frames []domain.Frame
}

// NewStack returns a stack bound to mod.
func NewStack(mod Module) *Stack {
	return &Stack{
		mod:    mod,
		frames: make([]domain.Frame, domain.SentinelFrames),
	}
}

func (s *Stack) Module() Module           { return s.mod }
func (s *Stack) Values() []domain.Value   { return s.values }
func (s *Stack) Frames() []domain.Frame   { return s.frames }
func (s *Stack) PushFrame(f domain.Frame) { s.frames = append(s.frames, f) }

func (s *Stack) SetValues(values []domain.Value) {
	s.values = append(s.values[:0], values...)
}

func (s *Stack) ResetFrames() {
	s.frames = s.frames[:domain.SentinelFrames]
}

// Push pushes v onto the operand stack.
func (s *Stack) Push(v domain.Value) {
	s.values = append(s.values, v)
}

// Pop removes and returns the top operand. It reports false on an empty stack.
func (s *Stack) Pop() (domain.Value, bool) {
	if len(s.values) == 0 {
		return domain.Value{}, false
	}
	v := s.values[len(s.values)-1]
	s.values = s.values[:len(s.values)-1]
	return v, true
}
