package ir

import (
	"fmt"
	"strings"

	"github.com/gmofishsauce/vsopc/internal/sem"
)

// irType maps a VSOP static type name to its IR type string (spec.md §4.4
// type lowering).
func irType(t string) string {
	switch t {
	case "int32":
		return "i32"
	case "bool":
		return "i1"
	case "unit":
		return "void"
	case "string":
		return "i8*"
	}
	return "%struct." + t + "*"
}

// ClassLayout is the compiled record/vtable layout derived from one class's
// flattened sem.ClassTable: field slots (vtable pointer first) and method
// slots (each naming the function symbol that actually implements it).
type ClassLayout struct {
	Record  *RecordType
	VTable  *VTableType
	Globals *GlobalVTable
}

// funcSymbol names the function implementing method m on class owner,
// matching the <C>_method_m convention of spec.md §4.4 ("main" is handled
// separately by the lowerer since it is emitted under the external symbol
// "main" rather than Main_method_main).
func funcSymbol(owner, method string) string {
	return owner + "_method_" + method
}

func funcTypeOf(recv string, m sem.MethodInfo) string {
	params := make([]string, 0, len(m.Formals)+1)
	params = append(params, irType(recv))
	for _, f := range m.Formals {
		params = append(params, irType(f.Type))
	}
	return fmt.Sprintf("%s (%s)", irType(m.RetType), strings.Join(params, ", "))
}

// BuildLayouts computes a ClassLayout for every class in g, including the
// synthetic Object.
func BuildLayouts(g *sem.ClassGraph) map[string]*ClassLayout {
	layouts := make(map[string]*ClassLayout, len(g.Classes))
	for _, name := range g.Order {
		ct := g.Classes[name]
		rec := &RecordType{Class: name}
		rec.Fields = append(rec.Fields, FieldSlot{Name: "", Type: "%struct." + name + "VTable*"})
		for _, f := range ct.Fields {
			rec.Fields = append(rec.Fields, FieldSlot{Name: f.Name, Type: irType(f.Type)})
		}

		vt := &VTableType{Class: name}
		gv := &GlobalVTable{Class: name}
		for _, m := range ct.Methods {
			slotType := funcTypeOf(name, m)
			vt.Methods = append(vt.Methods, MethodSlot{Name: m.Name, FuncType: slotType})

			var fn, fnType string
			switch {
			case name == "Main" && m.Name == "main":
				fn, fnType = "main", fmt.Sprintf("%s ()", irType(m.RetType))
			case m.Owner == "Object":
				fn, fnType = "Object_"+m.Name, funcTypeOf("Object", m)
			default:
				fn, fnType = funcSymbol(m.Owner, m.Name), funcTypeOf(m.Owner, m)
			}
			gv.Entries = append(gv.Entries, VTableEntry{FuncName: fn, SlotType: slotType, FuncType: fnType})
		}

		layouts[name] = &ClassLayout{Record: rec, VTable: vt, Globals: gv}
	}
	return layouts
}

// FieldOffset returns a field's slot index within its record, +1 for the
// vtable slot already baked into l.Record.Fields.
func (l *ClassLayout) FieldOffset(name string) (int, bool) {
	for i, f := range l.Record.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

// MethodSlotIndex returns a method's vtable slot index.
func (l *ClassLayout) MethodSlotIndex(name string) (int, bool) {
	for i, m := range l.VTable.Methods {
		if m.Name == name {
			return i, true
		}
	}
	return 0, false
}
