// Package ir lowers an annotated ast.Program into the typed, SSA-form module
// of spec.md §4.4: one record type and vtable type per class, one global
// vtable constant per class, <C>_new/<C>_init, and one function per user
// method, textually serialized by emit.go.
package ir

// FieldSlot is one entry of a RecordType's body. Slot 0 is always the
// vtable pointer (Name == "").
type FieldSlot struct {
	Name string
	Type string // IR type string: "i32", "i1", "i8*", "%struct.C*", ...
}

// RecordType is a class's instance layout: %struct.C.
type RecordType struct {
	Class  string
	Fields []FieldSlot
}

// MethodSlot is one entry of a VTableType's body.
type MethodSlot struct {
	Name     string
	FuncType string // "rettype (argtypes...)"
}

// VTableType is a class's vtable layout: %struct.CVTable.
type VTableType struct {
	Class   string
	Methods []MethodSlot
}

// VTableEntry is one initializer element of a GlobalVTable: the function
// symbol occupying the slot (the ancestor's, unless overridden), the slot's
// declared type (the receiver is always the class being laid out), and the
// function's own type (the receiver is its owner, which differs from the
// slot's when the method is inherited and not overridden).
type VTableEntry struct {
	FuncName string
	SlotType string // "rettype (argtypes...)", matches the owning VTableType's MethodSlot
	FuncType string // the function symbol's actual type; needs a bitcast when it differs from SlotType
}

// GlobalVTable is the one constant vtable instance per class.
type GlobalVTable struct {
	Class   string
	Entries []VTableEntry
}

// StringConst is a uniquely named global byte array backing a StrLit.
type StringConst struct {
	Name  string
	Value []byte
}

// Param is one formal of a Func.
type Param struct {
	Name string
	Type string
}

// Instr is a single non-terminating instruction: Dest (empty for a bare
// store or a call to a unit method) receives the value of Text, the
// instruction's already-rendered right-hand side.
type Instr struct {
	Dest string
	Text string
}

// Terminator ends a BasicBlock: a branch or return, already rendered.
type Terminator struct {
	Text string
}

// BasicBlock is a straight-line instruction sequence ending in one
// Terminator, per spec.md §4.4's basic-block discipline.
type BasicBlock struct {
	Label  string
	Instrs []Instr
	Term   Terminator
}

// Func is one emitted function: a synthesized <C>_new/<C>_init, a lowered
// user method (named C_method_m, receiver first), or Main.main (emitted
// under the external symbol "main").
type Func struct {
	Name    string
	Params  []Param
	RetType string
	Blocks  []*BasicBlock
}

// Module is the whole compiled program.
type Module struct {
	SourceFile string
	Records    []*RecordType
	VTables    []*VTableType
	Globals    []*GlobalVTable
	Strings    []*StringConst
	Funcs      []*Func
}
