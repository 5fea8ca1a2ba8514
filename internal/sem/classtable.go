// Package sem implements the semantic analyzer of spec.md §4.3: inheritance
// graph construction, symbol tables, scoped name resolution, and
// Hindley-style type synthesis over the AST.
package sem

import "github.com/gmofishsauce/vsopc/internal/ast"

// FieldInfo is one entry of a ClassTable's flattened field list.
type FieldInfo struct {
	Name string
	Type string
	Loc  ast.Loc
}

// MethodInfo is one entry of a ClassTable's flattened method list. Formals
// is kept as an ordered slice (not a map) because arity and positional
// argument conformance both depend on declaration order.
type MethodInfo struct {
	Name    string
	Formals []FieldInfo
	RetType string
	Loc     ast.Loc
	Owner   string // class that supplies the function implementing this slot
}

// ClassTable is the fully flattened view of one class: Fields and Methods
// are in [inherited in ancestor declaration order, then own in source
// order], matching spec.md §3's invariant on insertion order (field offsets
// and vtable slots both depend on it).
type ClassTable struct {
	Name    string
	Parent  *ClassTable // nil only for Object
	Fields  []FieldInfo
	Methods []MethodInfo
	Loc     ast.Loc

	fieldIndex  map[string]int
	methodIndex map[string]int
}

// Field looks up a field by name across the whole flattened table.
func (c *ClassTable) Field(name string) (FieldInfo, bool) {
	i, ok := c.fieldIndex[name]
	if !ok {
		return FieldInfo{}, false
	}
	return c.Fields[i], true
}

// FieldOffset returns the field's position in the combined insertion order
// (0-based; the IR lowerer adds 1 for the vtable slot).
func (c *ClassTable) FieldOffset(name string) (int, bool) {
	i, ok := c.fieldIndex[name]
	return i, ok
}

// Method looks up a method by name across the whole flattened table.
func (c *ClassTable) Method(name string) (MethodInfo, bool) {
	i, ok := c.methodIndex[name]
	if !ok {
		return MethodInfo{}, false
	}
	return c.Methods[i], true
}

// MethodSlot returns the method's vtable slot index.
func (c *ClassTable) MethodSlot(name string) (int, bool) {
	i, ok := c.methodIndex[name]
	return i, ok
}

// declaredOwnField appends a field that is new to this class (not an
// override; VSOP has no field overriding).
func (c *ClassTable) declaredOwnField(f FieldInfo) {
	if c.fieldIndex == nil {
		c.fieldIndex = map[string]int{}
	}
	c.fieldIndex[f.Name] = len(c.Fields)
	c.Fields = append(c.Fields, f)
}

// declaredOwnMethod appends a brand-new method, or replaces an inherited
// one's Loc/Formals/RetType in place when it is a validated override (same
// slot index is preserved, matching the vtable-slot-reuse rule of §4.4).
func (c *ClassTable) declaredOwnMethod(m MethodInfo) {
	m.Owner = c.Name
	if c.methodIndex == nil {
		c.methodIndex = map[string]int{}
	}
	if i, overriding := c.methodIndex[m.Name]; overriding {
		c.Methods[i] = m
		return
	}
	c.methodIndex[m.Name] = len(c.Methods)
	c.Methods = append(c.Methods, m)
}

// cloneFrom seeds c's flattened tables from its parent, so further
// declaredOwn* calls append/override on top of the inherited layout.
func (c *ClassTable) cloneFrom(parent *ClassTable) {
	c.Fields = append([]FieldInfo{}, parent.Fields...)
	c.fieldIndex = make(map[string]int, len(parent.fieldIndex))
	for k, v := range parent.fieldIndex {
		c.fieldIndex[k] = v
	}
	c.Methods = append([]MethodInfo{}, parent.Methods...)
	c.methodIndex = make(map[string]int, len(parent.methodIndex))
	for k, v := range parent.methodIndex {
		c.methodIndex[k] = v
	}
}

// Primitive type names; never compatible with class types (spec.md §4.3).
func IsPrimitive(t string) bool {
	switch t {
	case "int32", "bool", "string", "unit":
		return true
	}
	return false
}
