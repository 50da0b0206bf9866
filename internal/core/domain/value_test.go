package domain

import "testing"

func TestValue_Accessors(t *testing.T) {
	if got := ValueOfI32(-1).I32(); got != -1 {
		t.Errorf("I32() = %d, want -1", got)
	}
	if got := ValueOfI32(-1).Uint64(); got != 0xFFFFFFFF {
		t.Errorf("i32 must be zero-extended, got %#x", got)
	}
	if got := ValueOfI64(-42).I64(); got != -42 {
		t.Errorf("I64() = %d, want -42", got)
	}
	if got := ValueOfF64(3.5).F64(); got != 3.5 {
		t.Errorf("F64() = %v, want 3.5", got)
	}
}

func TestValue_Truncate(t *testing.T) {
	v := Value{Lo: 7, Hi: 9}
	if !v.Wide() {
		t.Fatal("value with high bits should be wide")
	}

	tr := v.Truncate()
	if tr.Wide() {
		t.Error("truncated value should not be wide")
	}
	if tr.Uint64() != 7 {
		t.Errorf("low half = %d, want 7", tr.Uint64())
	}
	if ValueOf(7).Truncate() != ValueOf(7) {
		t.Error("narrow value must survive truncation unchanged")
	}
}

func TestProgramCounter_String(t *testing.T) {
	pc := ProgramCounter{FuncID: 2, Offset: 5}
	if got := pc.String(); got != "func[2]+5" {
		t.Errorf("String() = %q", got)
	}
}
