package instance

import (
	"errors"

	"github.com/yndnr/wasmsnap-go/internal/core/domain"
)

// Function is one entry of a module's function table.
type Function interface {
	// Entry is the code arena position of the first instruction.
	Entry() domain.Position
	// Len is the number of instructions in the body. Host functions have none.
	Len() int
	Name() string
}

// Global is one module global in declaration order.
type Global struct {
	Mutable bool
	Value   domain.Value
}

// Module is the loaded module a snapshot is taken from or restored into.
type Module interface {
	Functions() []Function
	Globals() []*Global
	// Memory returns nil when the module declares no linear memory.
	Memory() Memory
	// AddMemory creates the module's linear memory. It fails if one exists.
	AddMemory(pageSize uint64, pages uint32) (Memory, error)
}

// Instruction is one decoded bytecode instruction.
type Instruction struct {
	Op  uint8
	Imm uint64
}

// ErrMemoryExists is returned by AddMemory when the module already has one.
var ErrMemoryExists = errors.New("instance: module already has a linear memory")

type function struct {
	name  string
	entry domain.Position
	n     int
}

func (f *function) Entry() domain.Position { return f.entry }
func (f *function) Len() int               { return f.n }
func (f *function) Name() string           { return f.name }

// ModuleInstance is an in-memory Module. Function bodies live back to back in
// a single code arena, so a domain.Position is an index into Code().
type ModuleInstance struct {
	name     string
	code     []Instruction
	funcs    []Function
	globals  []*Global
	mem      *MemoryInstance
	maxPages uint32
}

// NewModule returns an empty module. maxPages bounds memory growth; zero
// means unbounded.
func NewModule(name string, maxPages uint32) *ModuleInstance {
	return &ModuleInstance{name: name, maxPages: maxPages}
}

// Name returns the module name.
func (m *ModuleInstance) Name() string { return m.name }

// AddFunction appends body to the code arena and returns the new FunctionId.
func (m *ModuleInstance) AddFunction(name string, body []Instruction) uint32 {
	id := uint32(len(m.funcs))
	m.funcs = append(m.funcs, &function{
		name:  name,
		entry: domain.Position(len(m.code)),
		n:     len(body),
	})
	m.code = append(m.code, body...)
	return id
}

// AddHostFunction registers an imported function with no body.
func (m *ModuleInstance) AddHostFunction(name string) uint32 {
	return m.AddFunction(name, nil)
}

// AddGlobal appends a global and returns it.
func (m *ModuleInstance) AddGlobal(mutable bool, v domain.Value) *Global {
	g := &Global{Mutable: mutable, Value: v}
	m.globals = append(m.globals, g)
	return g
}

// Code returns the code arena.
func (m *ModuleInstance) Code() []Instruction { return m.code }

func (m *ModuleInstance) Functions() []Function { return m.funcs }

func (m *ModuleInstance) Globals() []*Global { return m.globals }

func (m *ModuleInstance) Memory() Memory {
	if m.mem == nil {
		return nil
	}
	return m.mem
}

func (m *ModuleInstance) AddMemory(pageSize uint64, pages uint32) (Memory, error) {
	if m.mem != nil {
		return nil, ErrMemoryExists
	}
	mem, err := NewMemory(pageSize, pages, m.maxPages)
	if err != nil {
		return nil, err
	}
	m.mem = mem
	return mem, nil
}
