package sem

import (
	"github.com/gmofishsauce/vsopc/internal/ast"
	"github.com/gmofishsauce/vsopc/internal/diag"
	"github.com/gmofishsauce/vsopc/internal/source"
)

// semError unwinds Pass A/B to Analyze's recover point, the same way a
// syntaxError unwinds the parser.
type semError struct {
	d diag.Diagnostic
}

// analyzer carries the state threaded through graph construction and type
// synthesis: the source buffer for diagnostic locations, the graph being
// built, and the class currently being checked (nil while checking a field
// initializer, which spec.md §4.3 evaluates in a stack with no members of
// the owning class).
type analyzer struct {
	buf          *source.Buffer
	graph        *ClassGraph
	currentClass *ClassTable
}

func (a *analyzer) fail(format string, args ...any) {
	panic(semError{diag.New(a.buf.Path, 1, 1, diag.Semantic, format, args...)})
}

func (a *analyzer) failAt(loc ast.Loc, format string, args ...any) {
	panic(semError{diag.New(a.buf.Path, loc.Line, loc.Col, diag.Semantic, format, args...)})
}

// Analyze runs Pass A (inheritance graph) and Pass B (member validation,
// then field-initializer and method-body type synthesis) over prog, filling
// every ast.Expr's resolved-type slot in place. It fails fast: the first
// semantic error aborts the phase.
func Analyze(prog *ast.Program, buf *source.Buffer) (graph *ClassGraph, err *diag.Diagnostic) {
	a := &analyzer{buf: buf}
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(semError)
			if !ok {
				panic(r)
			}
			d := se.d
			err = &d
			graph = nil
		}
	}()

	g := a.buildGraph(prog)
	a.graph = g

	for _, c := range prog.Classes {
		a.checkFieldInitializers(c)
	}
	for _, c := range prog.Classes {
		a.checkMethodBodies(c)
	}

	return g, nil
}

// checkFieldInitializers type-checks every field's initializer, if present,
// in an empty scope stack: field initializers see no class members at all,
// so referencing self, other fields, or calling a method fails naturally
// the moment self or an identifier is looked up.
func (a *analyzer) checkFieldInitializers(decl *ast.Class) {
	a.currentClass = nil

	for _, f := range decl.Fields {
		if f.Init == nil {
			continue
		}
		initType := a.infer(f.Init, nil)
		a.checkConforms(f.Init.Location(), f.Type, initType, "type of the initial expression must be %q", f.Type)
	}
}

// checkMethodBodies type-checks every method body in a stack seeded with
// the method's formals, then the owning class's flattened fields (spec.md
// §4.3: "a stack containing the method's formals and then the owning
// class"), and checks the body's type conforms to the declared return type.
func (a *analyzer) checkMethodBodies(decl *ast.Class) {
	ct := a.graph.Classes[decl.Name]
	a.currentClass = ct

	base := newScope(nil)
	for _, f := range ct.Fields {
		base = base.bind(f.Name, f.Type)
	}

	for _, m := range decl.Methods {
		s := base
		for _, f := range m.Formals {
			s = s.bind(f.Name, f.Type)
		}
		blockType := a.infer(m.Body, s)
		a.checkConforms(m.Body.Location(), m.RetType, blockType,
			"return type of method %s must conform to %q (got %q)", m.Name, m.RetType, blockType)
	}
}

// checkConforms reports an error unless actual conforms to want: equal if
// want is primitive, otherwise actual must be want or a proper subtype.
func (a *analyzer) checkConforms(loc ast.Loc, want, actual string, format string, args ...any) {
	if want == actual {
		return
	}
	if IsPrimitive(want) || IsPrimitive(actual) {
		a.failAt(loc, format, args...)
		return
	}
	if !a.graph.IsSubtype(actual, want) {
		a.failAt(loc, format, args...)
	}
}

// infer synthesizes e's static type under scope s, records it on e via
// SetType, and returns it. It implements the full table of spec.md §4.3.
func (a *analyzer) infer(e ast.Expr, s *scope) string {
	t := a.inferRaw(e, s)
	e.SetType(t)
	return t
}

func (a *analyzer) inferRaw(e ast.Expr, s *scope) string {
	switch n := e.(type) {
	case *ast.Block:
		var last string = "unit"
		for _, sub := range n.Exprs {
			last = a.infer(sub, s)
		}
		return last

	case *ast.If:
		condType := a.infer(n.Cond, s)
		if condType != "bool" {
			a.failAt(n.Cond.Location(), "condition of if must be bool, got %q", condType)
		}
		thenType := a.infer(n.Then, s)
		if n.Else == nil {
			return "unit"
		}
		elseType := a.infer(n.Else, s)
		return a.joinBranches(n.Else.Location(), thenType, elseType)

	case *ast.While:
		condType := a.infer(n.Cond, s)
		if condType != "bool" {
			a.failAt(n.Cond.Location(), "condition of while must be bool, got %q", condType)
		}
		a.infer(n.Body, s)
		return "unit"

	case *ast.Let:
		if !IsPrimitive(n.Type) && !a.graph.exists(n.Type) {
			a.failAt(n.Loc, "undeclared type %s", n.Type)
		}
		if n.Init != nil {
			initType := a.infer(n.Init, s)
			a.checkConforms(n.Init.Location(), n.Type, initType,
				"type of the initial expression must conform to %q (got %q)", n.Type, initType)
		}
		inner := s.bind(n.Name, n.Type)
		return a.infer(n.Scope, inner)

	case *ast.Assign:
		if n.Name == "self" {
			a.failAt(n.Loc, "self may not be assigned")
		}
		fieldType, ok := s.lookup(n.Name)
		if !ok {
			a.failAt(n.Loc, "no field named %s available in this scope", n.Name)
		}
		valueType := a.infer(n.Value, s)
		a.checkConforms(n.Value.Location(), fieldType, valueType,
			"assigned value of type %q does not conform to field type %q", valueType, fieldType)
		return fieldType

	case *ast.UnaryExpr:
		operandType := a.infer(n.E, s)
		switch n.Op {
		case ast.Not:
			if operandType != "bool" {
				a.failAt(n.E.Location(), "operand of not must be bool, got %q", operandType)
			}
			return "bool"
		case ast.Neg:
			if operandType != "int32" {
				a.failAt(n.E.Location(), "operand of unary - must be int32, got %q", operandType)
			}
			return "int32"
		case ast.IsNull:
			if IsPrimitive(operandType) {
				a.failAt(n.E.Location(), "isnull cannot be applied to primitive type %q", operandType)
			}
			return "bool"
		}
		a.failAt(n.Loc, "unknown unary operator")
		return ""

	case *ast.BinaryExpr:
		return a.inferBinOp(n, s)

	case *ast.Call:
		return a.inferCall(n, s)

	case *ast.New:
		if !a.graph.exists(n.TypeName) {
			a.failAt(n.Loc, "unknown type %s", n.TypeName)
		}
		return n.TypeName

	case *ast.SelfRef:
		if a.currentClass == nil {
			a.failAt(n.Loc, "self is not allowed in a field initializer")
		}
		return a.currentClass.Name

	case *ast.ObjectId:
		if n.Name == "self" {
			if a.currentClass == nil {
				a.failAt(n.Loc, "self is not allowed in a field initializer")
			}
			return a.currentClass.Name
		}
		t, ok := s.lookup(n.Name)
		if !ok {
			a.failAt(n.Loc, "no field named %s available in this context", n.Name)
		}
		return t

	case *ast.IntLit:
		return "int32"
	case *ast.StrLit:
		return "string"
	case *ast.BoolLit:
		return "bool"
	case *ast.UnitLit:
		return "unit"
	}
	a.failAt(e.Location(), "internal error: unhandled expression node")
	return ""
}

// joinBranches implements the if/then/else type rule: unit dominates
// (either branch unit makes the whole unit), primitives must match exactly,
// and class types join at their least upper bound.
func (a *analyzer) joinBranches(elseLoc ast.Loc, thenType, elseType string) string {
	if thenType == "unit" || elseType == "unit" {
		return "unit"
	}
	if IsPrimitive(thenType) || IsPrimitive(elseType) {
		if thenType != elseType {
			a.failAt(elseLoc, "else branch type %q does not match then branch type %q", elseType, thenType)
		}
		return thenType
	}
	if thenType == elseType {
		return thenType
	}
	return a.graph.LeastUpperBound(thenType, elseType)
}

func (a *analyzer) inferBinOp(n *ast.BinaryExpr, s *scope) string {
	leftType := a.infer(n.L, s)
	rightType := a.infer(n.R, s)

	switch n.Op {
	case ast.And, ast.Or:
		if leftType != "bool" {
			a.failAt(n.L.Location(), "left operand of %s must be bool, got %q", n.Op, leftType)
		}
		if rightType != "bool" {
			a.failAt(n.R.Location(), "right operand of %s must be bool, got %q", n.Op, rightType)
		}
		return "bool"

	case ast.Eq:
		if IsPrimitive(leftType) || IsPrimitive(rightType) {
			if !IsPrimitive(leftType) {
				a.failAt(n.L.Location(), "cannot compare primitive type %q with class type %q", rightType, leftType)
			}
			if !IsPrimitive(rightType) {
				a.failAt(n.R.Location(), "cannot compare class type %q with primitive type %q", leftType, rightType)
			}
			if leftType != rightType {
				a.failAt(n.R.Location(), "cannot compare a value of type %q and a value of type %q", leftType, rightType)
			}
		}
		return "bool"

	case ast.Lt, ast.Le, ast.Gt, ast.Ge:
		if leftType != "int32" {
			a.failAt(n.L.Location(), "left operand of %s must be int32, got %q", n.Op, leftType)
		}
		if rightType != "int32" {
			a.failAt(n.R.Location(), "right operand of %s must be int32, got %q", n.Op, rightType)
		}
		return "bool"

	case ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Pow:
		if leftType != "int32" {
			a.failAt(n.L.Location(), "left operand of %s must be int32, got %q", n.Op, leftType)
		}
		if rightType != "int32" {
			a.failAt(n.R.Location(), "right operand of %s must be int32, got %q", n.Op, rightType)
		}
		return "int32"
	}
	a.failAt(n.Loc, "unknown binary operator")
	return ""
}

func (a *analyzer) inferCall(n *ast.Call, s *scope) string {
	recvType := a.infer(n.Receiver, s)
	if IsPrimitive(recvType) {
		a.failAt(n.Receiver.Location(), "cannot call a method on primitive type %q", recvType)
	}
	recvClass, ok := a.graph.Classes[recvType]
	if !ok {
		a.failAt(n.Receiver.Location(), "unknown type %s", recvType)
	}
	method, ok := recvClass.Method(n.Method)
	if !ok {
		a.failAt(n.Loc, "no method named %s available on type %s", n.Method, recvType)
	}

	argTypes := make([]string, len(n.Args))
	for i, arg := range n.Args {
		argTypes[i] = a.infer(arg, s)
	}
	if len(argTypes) != len(method.Formals) {
		a.failAt(n.Loc, "method %s expects %d argument(s), got %d", n.Method, len(method.Formals), len(argTypes))
	}
	for i, formal := range method.Formals {
		a.checkConforms(n.Args[i].Location(), formal.Type, argTypes[i],
			"argument %d of %s does not conform to type %q (got %q)", i+1, n.Method, formal.Type, argTypes[i])
	}
	return method.RetType
}
