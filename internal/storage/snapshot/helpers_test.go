package snapshot

import (
	"testing"

	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/core/instance"
	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/telemetry/logger"
)

// vm bundles a module and its stack.
type vm struct {
	mod   *instance.ModuleInstance
	stack *instance.Stack
}

// newVM builds the module used throughout these tests:
//
//	0 main    10 instructions
//	1 env.log host
//	2 callee   8 instructions
//
// plus one mutable global. memPages > 0 adds a memory.
func newVM(t *testing.T, memPages uint32) *vm {
	t.Helper()
	mod := instance.NewModule("test", 0)
	mod.AddFunction("main", make([]instance.Instruction, 10))
	mod.AddHostFunction("env.log")
	mod.AddFunction("callee", make([]instance.Instruction, 8))
	mod.AddGlobal(true, domain.Value{})
	if memPages > 0 {
		if _, err := mod.AddMemory(instance.DefaultPageSize, memPages); err != nil {
			t.Fatalf("AddMemory: %v", err)
		}
	}
	return &vm{mod: mod, stack: instance.NewStack(mod)}
}

func (v *vm) entry(id int) domain.Position {
	return v.mod.Functions()[id].Entry()
}

func newFileStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestManager(t *testing.T, v *vm, store storage.Store, strategy Strategy) *Manager {
	t.Helper()
	cfg := DefaultConfig("")
	cfg.Strategy = strategy
	m, err := NewManager(cfg, v.stack, WithStore(store), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}
