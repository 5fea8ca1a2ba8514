package sem

import (
	"github.com/gmofishsauce/vsopc/internal/ast"
)

// ClassGraph is the complete, read-only class symbol table built by Pass A
// and Pass B's member validation (spec.md §4.3). Once built it is never
// mutated; only the AST's resolved-type slots change during Pass B's
// initializer/body checking.
type ClassGraph struct {
	Classes map[string]*ClassTable
	Order   []string // Object first, then declared classes in source order, each moved after its parent
}

func objectClassTable() *ClassTable {
	c := &ClassTable{Name: "Object"}
	c.declaredOwnMethod(MethodInfo{Name: "print", Formals: []FieldInfo{{Name: "s", Type: "string"}}, RetType: "Object"})
	c.declaredOwnMethod(MethodInfo{Name: "printBool", Formals: []FieldInfo{{Name: "b", Type: "bool"}}, RetType: "Object"})
	c.declaredOwnMethod(MethodInfo{Name: "printInt32", Formals: []FieldInfo{{Name: "i", Type: "int32"}}, RetType: "Object"})
	c.declaredOwnMethod(MethodInfo{Name: "inputLine", RetType: "string"})
	c.declaredOwnMethod(MethodInfo{Name: "inputBool", RetType: "bool"})
	c.declaredOwnMethod(MethodInfo{Name: "inputInt32", RetType: "int32"})
	return c
}

// buildGraph runs Pass A: inject Object, register declared classes
// (rejecting a redefined Object or duplicate names), resolve parents
// (rejecting a missing parent, self-parent, or an ancestor cycle), require
// a Main class to exist, then flattens every class's fields and methods
// (Pass B's field/method validation) in parent-before-child order.
//
// It aborts via the same fail-fast panic(semError) convention as a.infer
// uses, so a single recover in Analyze handles both passes.
func (a *analyzer) buildGraph(prog *ast.Program) *ClassGraph {
	g := &ClassGraph{Classes: map[string]*ClassTable{}}

	object := objectClassTable()
	g.Classes["Object"] = object
	g.Order = append(g.Order, "Object")

	decls := map[string]*ast.Class{}
	for _, c := range prog.Classes {
		if c.Name == "Object" {
			a.failAt(c.Loc, "class Object may not be redefined")
		}
		if prior, dup := decls[c.Name]; dup {
			a.failAt(c.Loc, "class %s redefined (previously declared at %d:%d)", c.Name, prior.Loc.Line, prior.Loc.Col)
		}
		decls[c.Name] = c
		g.Classes[c.Name] = &ClassTable{Name: c.Name, Loc: c.Loc}
		g.Order = append(g.Order, c.Name)
	}

	if _, ok := decls["Main"]; !ok {
		a.fail("class Main is not declared")
	}

	// Resolve parents and check for cycles via DFS coloring.
	const (
		white = iota
		gray
		black
	)
	color := map[string]int{"Object": black}
	topo := []string{"Object"}

	var visit func(name string)
	visit = func(name string) {
		c := decls[name]
		if c == nil {
			return // Object, already resolved
		}
		switch color[name] {
		case black:
			return
		case gray:
			a.failAt(c.Loc, "cycle in class hierarchy at %s", name)
		}
		color[name] = gray

		parentName := c.Parent
		_, isUser := decls[parentName]
		if parentName != "Object" && !isUser {
			a.failAt(c.Loc, "class %s extends undeclared class %s", name, parentName)
		}
		if parentName == name {
			a.failAt(c.Loc, "class %s extends itself", name)
		}
		if isUser {
			visit(parentName)
		}
		g.Classes[name].Parent = g.Classes[parentName]
		color[name] = black
		topo = append(topo, name)
	}
	for _, name := range g.Order {
		visit(name)
	}
	g.Order = topo

	// Flatten in parent-before-child order: visit() above appends a class to
	// Order only after its parent, so Order is a valid topological order.
	for _, name := range g.Order {
		if name == "Object" {
			continue
		}
		a.flattenClass(g, decls[name])
	}

	return g
}

// flattenClass performs the field/method half of Pass B: seed from the
// parent's flattened tables, then validate and append this class's own
// declarations.
func (a *analyzer) flattenClass(g *ClassGraph, decl *ast.Class) {
	ct := g.Classes[decl.Name]
	ct.cloneFrom(ct.Parent)

	for _, f := range decl.Fields {
		if f.Name == "self" {
			a.failAt(f.Loc, "field may not be named self")
		}
		if prior, exists := ct.Field(f.Name); exists {
			a.failAt(f.Loc, "field %s already declared at %d:%d", f.Name, prior.Loc.Line, prior.Loc.Col)
		}
		if !IsPrimitive(f.Type) && !g.exists(f.Type) {
			a.failAt(f.Loc, "undeclared type %s", f.Type)
		}
		ct.declaredOwnField(FieldInfo{Name: f.Name, Type: f.Type, Loc: f.Loc})
	}

	ownMethods := map[string]bool{}
	for _, m := range decl.Methods {
		if ownMethods[m.Name] {
			a.failAt(m.Loc, "method %s already declared in class %s", m.Name, decl.Name)
		}
		ownMethods[m.Name] = true

		seenFormal := map[string]bool{}
		var formals []FieldInfo
		for _, f := range m.Formals {
			if seenFormal[f.Name] {
				a.failAt(f.Loc, "duplicate formal %s in method %s", f.Name, m.Name)
			}
			seenFormal[f.Name] = true
			if !IsPrimitive(f.Type) && !g.exists(f.Type) {
				a.failAt(f.Loc, "undeclared type %s", f.Type)
			}
			formals = append(formals, FieldInfo{Name: f.Name, Type: f.Type, Loc: f.Loc})
		}
		if !IsPrimitive(m.RetType) && !g.exists(m.RetType) {
			a.failAt(m.Loc, "undeclared type %s", m.RetType)
		}

		if prev, overrides := ct.Parent.Method(m.Name); overrides {
			checkOverrideCompatible(a, m, prev)
		}
		ct.declaredOwnMethod(MethodInfo{Name: m.Name, Formals: formals, RetType: m.RetType, Loc: m.Loc})
	}

	if decl.Name == "Main" {
		mm, ok := ct.Method("main")
		if !ok || len(mm.Formals) != 0 || mm.RetType != "int32" {
			a.failAt(decl.Loc, "class Main must declare main() : int32")
		}
	}
}

func checkOverrideCompatible(a *analyzer, m *ast.Method, prev MethodInfo) {
	if len(m.Formals) != len(prev.Formals) {
		a.failAt(m.Loc, "method %s overrides with different arity", m.Name)
	}
	for i, f := range m.Formals {
		if f.Type != prev.Formals[i].Type {
			a.failAt(f.Loc, "method %s overrides formal %s with a different type", m.Name, f.Name)
		}
	}
	if m.RetType != prev.RetType {
		a.failAt(m.Loc, "method %s overrides with a different return type", m.Name)
	}
}

func (g *ClassGraph) exists(name string) bool {
	_, ok := g.Classes[name]
	return ok
}

// IsSubtype reports whether a <: b: a equals b, or b is reachable from a by
// following parent links.
func (g *ClassGraph) IsSubtype(a, b string) bool {
	if a == b {
		return true
	}
	c, ok := g.Classes[a]
	if !ok {
		return false
	}
	for c.Parent != nil {
		c = c.Parent
		if c.Name == b {
			return true
		}
	}
	return false
}

// LeastUpperBound returns the first common ancestor of a and b, which
// always exists because both ancestor chains terminate at Object.
func (g *ClassGraph) LeastUpperBound(a, b string) string {
	ancestors := map[string]bool{}
	for c := g.Classes[a]; c != nil; c = c.Parent {
		ancestors[c.Name] = true
	}
	for c := g.Classes[b]; c != nil; c = c.Parent {
		if ancestors[c.Name] {
			return c.Name
		}
	}
	return "Object"
}
