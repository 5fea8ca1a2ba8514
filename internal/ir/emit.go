package ir

import (
	"fmt"
	"strings"
)

// runtimePrelude declares the object-runtime surface every module depends
// on: the Object record/vtable shape, the six builtin I/O methods (defined
// by the runtime library, not by this compiler), and the three external
// functions the lowerer calls directly.
const runtimePrelude = `%struct.Object = type { %struct.ObjectVTable* }
%struct.ObjectVTable = type {
  %struct.Object* (%struct.Object*, i8*),
  %struct.Object* (%struct.Object*, i1),
  %struct.Object* (%struct.Object*, i32),
  i8* (%struct.Object*),
  i1 (%struct.Object*),
  i32 (%struct.Object*)
}
@Object_vtable = external global %struct.ObjectVTable

declare %struct.Object* @Object_new()
declare %struct.Object* @Object_init(%struct.Object*)
declare %struct.Object* @Object_print(%struct.Object*, i8*)
declare %struct.Object* @Object_printBool(%struct.Object*, i1)
declare %struct.Object* @Object_printInt32(%struct.Object*, i32)
declare i8* @Object_inputLine(%struct.Object*)
declare i1 @Object_inputBool(%struct.Object*)
declare i32 @Object_inputInt32(%struct.Object*)

declare i8* @malloc(i64)
declare double @pow(double, double)
declare i32 @strcmp(i8*, i8*)
`

// Emit renders mod as the textual LLVM-like module printed by -llvm.
func Emit(mod *Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; source: %s\n\n", mod.SourceFile)
	b.WriteString(runtimePrelude)
	b.WriteString("\n")

	for _, r := range mod.Records {
		emitRecord(&b, r)
	}
	b.WriteString("\n")
	for _, v := range mod.VTables {
		emitVTableType(&b, v)
	}
	b.WriteString("\n")
	for _, g := range mod.Globals {
		emitGlobalVTable(&b, g)
	}
	b.WriteString("\n")
	for _, s := range mod.Strings {
		emitString(&b, s)
	}
	b.WriteString("\n")
	for _, f := range mod.Funcs {
		emitFunc(&b, f)
		b.WriteString("\n")
	}
	return b.String()
}

func emitRecord(b *strings.Builder, r *RecordType) {
	if r.Class == "Object" {
		return // declared by the runtime prelude
	}
	fmt.Fprintf(b, "%%struct.%s = type {\n", r.Class)
	for i, f := range r.Fields {
		sep := ","
		if i == len(r.Fields)-1 {
			sep = ""
		}
		if f.Name == "" {
			fmt.Fprintf(b, "  %s%s\n", f.Type, sep)
		} else {
			fmt.Fprintf(b, "  %s%s ; %s\n", f.Type, sep, f.Name)
		}
	}
	b.WriteString("}\n")
}

func emitVTableType(b *strings.Builder, v *VTableType) {
	if v.Class == "Object" {
		return
	}
	fmt.Fprintf(b, "%%struct.%sVTable = type {\n", v.Class)
	for i, m := range v.Methods {
		sep := ","
		if i == len(v.Methods)-1 {
			sep = ""
		}
		fmt.Fprintf(b, "  %s*%s ; %s\n", m.FuncType, sep, m.Name)
	}
	b.WriteString("}\n")
}

// emitGlobalVTable initializes each slot with its declared slot type,
// bitcasting the function symbol when its own type (the owner's receiver)
// differs from the slot type (the class being laid out's receiver) — the
// common case for an inherited, unoverridden method.
func emitGlobalVTable(b *strings.Builder, g *GlobalVTable) {
	if g.Class == "Object" {
		return // @Object_vtable is external, defined by the runtime library
	}
	fmt.Fprintf(b, "@%s_vtable = global %%struct.%sVTable { ", g.Class, g.Class)
	parts := make([]string, len(g.Entries))
	for i, e := range g.Entries {
		if e.FuncType == e.SlotType {
			parts[i] = fmt.Sprintf("%s* @%s", e.SlotType, e.FuncName)
		} else {
			parts[i] = fmt.Sprintf("%s* bitcast (%s* @%s to %s*)", e.SlotType, e.FuncType, e.FuncName, e.SlotType)
		}
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(" }\n")
}

func emitString(b *strings.Builder, s *StringConst) {
	fmt.Fprintf(b, "%s = private constant [%d x i8] c\"", s.Name, len(s.Value)+1)
	for _, c := range s.Value {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(b, "\\%02X", c)
		}
	}
	b.WriteString("\\00\"\n")
}

func emitFunc(b *strings.Builder, f *Func) {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %%%s", p.Type, p.Name)
	}
	fmt.Fprintf(b, "define %s @%s(%s) {\n", f.RetType, f.Name, strings.Join(params, ", "))
	for _, blk := range f.Blocks {
		fmt.Fprintf(b, "%s:\n", blk.Label)
		for _, instr := range blk.Instrs {
			if instr.Dest == "" {
				fmt.Fprintf(b, "  %s\n", instr.Text)
			} else {
				fmt.Fprintf(b, "  %s = %s\n", instr.Dest, instr.Text)
			}
		}
		fmt.Fprintf(b, "  %s\n", blk.Term.Text)
	}
	b.WriteString("}\n")
}
