package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gmofishsauce/vsopc/internal/ast"
	"github.com/gmofishsauce/vsopc/internal/sem"
)

// varScope is a persistent chain of local allocas (formals and let-bound
// names), mirroring internal/sem.scope but carrying a pointer register and
// an IR type alongside each binding instead of a static type alone.
type varScope struct {
	name, ptr, typ string
	parent         *varScope
}

func (s *varScope) bind(name, ptr, typ string) *varScope {
	return &varScope{name: name, ptr: ptr, typ: typ, parent: s}
}

func (s *varScope) lookup(name string) (ptr, typ string, ok bool) {
	for f := s; f != nil; f = f.parent {
		if f.name == name {
			return f.ptr, f.typ, true
		}
	}
	return "", "", false
}

// lowerer carries the state threaded through one method/synthesized
// function's lowering: the class graph and computed layouts for type/offset
// lookups, the function and basic block currently being appended to, and
// fresh-name counters.
type lowerer struct {
	graph   *sem.ClassGraph
	layouts map[string]*ClassLayout
	mod     *Module

	fn    *Func
	block *BasicBlock
	tmp   int
	lbl   int

	vars     *varScope
	selfPtr  string // register holding the self pointer
	selfType string // the owning class's name

	emptyStr string // memoized @.str.N constant expr for the empty string default
}

// Lower builds a Module from prog, whose expressions must already carry
// resolved types from a successful sem.Analyze pass.
func Lower(prog *ast.Program, g *sem.ClassGraph, sourceFile string) *Module {
	layouts := BuildLayouts(g)
	mod := &Module{SourceFile: sourceFile}
	for _, name := range g.Order {
		l := layouts[name]
		mod.Records = append(mod.Records, l.Record)
		mod.VTables = append(mod.VTables, l.VTable)
		mod.Globals = append(mod.Globals, l.Globals)
	}

	lw := &lowerer{graph: g, layouts: layouts, mod: mod}
	for _, c := range prog.Classes {
		lw.lowerClassFunctions(c)
	}
	return mod
}

func (lw *lowerer) newTemp() string {
	t := fmt.Sprintf("%%t%d", lw.tmp)
	lw.tmp++
	return t
}

func (lw *lowerer) newLabel(prefix string) string {
	l := fmt.Sprintf("%s%d", prefix, lw.lbl)
	lw.lbl++
	return l
}

func (lw *lowerer) startBlock(label string) {
	b := &BasicBlock{Label: label}
	lw.fn.Blocks = append(lw.fn.Blocks, b)
	lw.block = b
}

func (lw *lowerer) emit(text string) string {
	dest := lw.newTemp()
	lw.block.Instrs = append(lw.block.Instrs, Instr{Dest: dest, Text: text})
	return dest
}

func (lw *lowerer) emitVoid(text string) {
	lw.block.Instrs = append(lw.block.Instrs, Instr{Text: text})
}

func (lw *lowerer) terminate(text string) {
	lw.block.Term = Terminator{Text: text}
}

func (lw *lowerer) startFunc(name, retType string, params []Param) {
	lw.fn = &Func{Name: name, Params: params, RetType: retType}
	lw.tmp = 0
	lw.lbl = 0
	lw.startBlock("entry")
}

func (lw *lowerer) finishFunc() {
	lw.mod.Funcs = append(lw.mod.Funcs, lw.fn)
	lw.fn = nil
}

// defaultValue returns the IR constant for a field or local with no
// initializer: primitive zero, the interned empty string, or a typed null
// pointer.
func (lw *lowerer) defaultValue(vsopType string) string {
	switch vsopType {
	case "int32":
		return "0"
	case "bool":
		return "0"
	case "unit":
		return "0" // never stored; unit has no representation
	case "string":
		return lw.emptyStringConst()
	}
	return "null"
}

func (lw *lowerer) alloca(irTyp string) string {
	return lw.emit(fmt.Sprintf("alloca %s", irTyp))
}

func (lw *lowerer) store(valueType, value, ptr string) {
	lw.emitVoid(fmt.Sprintf("store %s %s, %s* %s", valueType, value, valueType, ptr))
}

func (lw *lowerer) load(typ, ptr string) string {
	return lw.emit(fmt.Sprintf("load %s, %s* %s", typ, typ, ptr))
}

// bitcastTo upcasts a class-typed value to an ancestor type when the static
// types differ (spec.md §4.4's repeated "bitcast as needed").
func (lw *lowerer) bitcastTo(reg, fromType, toType string) string {
	if fromType == toType {
		return reg
	}
	fromIR, toIR := irType(fromType), irType(toType)
	if fromIR == toIR {
		return reg
	}
	return lw.emit(fmt.Sprintf("bitcast %s %s to %s", fromIR, reg, toIR))
}

// lowerClassFunctions synthesizes <C>_init/<C>_new and lowers every
// user-declared method of decl.
func (lw *lowerer) lowerClassFunctions(decl *ast.Class) {
	ct := lw.graph.Classes[decl.Name]
	layout := lw.layouts[decl.Name]
	recPtr := "%struct." + decl.Name + "*"

	lw.lowerInit(decl, ct, layout, recPtr)
	lw.lowerNew(decl, recPtr)

	for _, m := range decl.Methods {
		lw.lowerMethod(decl, m)
	}
}

// lowerInit synthesizes <C>_init(self: C*) : C* per spec.md §4.4: null
// check, parent init (bitcast to parent*), own vtable store, then each own
// field's initializer or default.
func (lw *lowerer) lowerInit(decl *ast.Class, ct *sem.ClassTable, layout *ClassLayout, recPtr string) {
	lw.startFunc(decl.Name+"_init", recPtr, []Param{{Name: "self", Type: recPtr}})

	isNull := lw.emit(fmt.Sprintf("icmp eq %s %%self, null", recPtr))
	nullLabel, bodyLabel := lw.newLabel("null"), lw.newLabel("init")
	lw.terminate(fmt.Sprintf("br i1 %s, label %%%s, label %%%s", isNull, nullLabel, bodyLabel))

	lw.startBlock(nullLabel)
	lw.terminate(fmt.Sprintf("ret %s %%self", recPtr))

	lw.startBlock(bodyLabel)
	if ct.Parent != nil {
		parentPtr := "%struct." + ct.Parent.Name + "*"
		asParent := lw.bitcastTo("%self", decl.Name, ct.Parent.Name)
		lw.emitVoid(fmt.Sprintf("call %s @%s_init(%s %s)", parentPtr, ct.Parent.Name, parentPtr, asParent))
	}

	vtablePtrSlot := lw.emit(fmt.Sprintf("getelementptr %s, %s %%self, i32 0, i32 0", strings.TrimSuffix(recPtr, "*"), recPtr))
	lw.emitVoid(fmt.Sprintf("store %%struct.%sVTable* @%s_vtable, %%struct.%sVTable** %s", decl.Name, decl.Name, decl.Name, vtablePtrSlot))

	for _, f := range decl.Fields {
		offset, _ := layout.FieldOffset(f.Name)
		fieldIR := irType(f.Type)
		fieldPtr := lw.emit(fmt.Sprintf("getelementptr %s, %s %%self, i32 0, i32 %d", strings.TrimSuffix(recPtr, "*"), recPtr, offset))
		if f.Init != nil {
			lw.vars = nil
			lw.selfPtr, lw.selfType = "", ""
			value := lw.lowerExpr(f.Init)
			value = lw.bitcastTo(value, f.Init.Type(), f.Type)
			lw.store(fieldIR, value, fieldPtr)
		} else {
			lw.store(fieldIR, lw.defaultValue(f.Type), fieldPtr)
		}
	}

	lw.terminate(fmt.Sprintf("ret %s %%self", recPtr))
	lw.finishFunc()
}

// lowerNew synthesizes <C>_new() : C* via the GEP-of-null sizeof pattern,
// malloc, bitcast, and a call to <C>_init.
func (lw *lowerer) lowerNew(decl *ast.Class, recPtr string) {
	lw.startFunc(decl.Name+"_new", recPtr, nil)
	recType := strings.TrimSuffix(recPtr, "*")

	sizePtr := lw.emit(fmt.Sprintf("getelementptr %s, %s null, i32 1", recType, recPtr))
	size := lw.emit(fmt.Sprintf("ptrtoint %s %s to i64", recPtr, sizePtr))
	raw := lw.emit(fmt.Sprintf("call i8* @malloc(i64 %s)", size))
	self := lw.emit(fmt.Sprintf("bitcast i8* %s to %s", raw, recPtr))
	inited := lw.emit(fmt.Sprintf("call %s @%s_init(%s %s)", recPtr, decl.Name, recPtr, self))
	lw.terminate(fmt.Sprintf("ret %s %s", recPtr, inited))
	lw.finishFunc()
}

// lowerMethod lowers one user method body. Main.main is emitted under the
// external symbol "main" and allocates its own receiver; every other method
// is named <C>_method_<m> with the receiver as its first parameter.
func (lw *lowerer) lowerMethod(decl *ast.Class, m *ast.Method) {
	recPtr := "%struct." + decl.Name + "*"
	retIR := irType(m.RetType)

	if decl.Name == "Main" && m.Name == "main" {
		lw.startFunc("main", "i32", nil)
		self := lw.emit(fmt.Sprintf("call %s @Main_new()", recPtr))
		lw.bindMethodFrame(decl.Name, self, m)
		result := lw.lowerBlockValue(m.Body)
		lw.terminate(fmt.Sprintf("ret i32 %s", result))
		lw.finishFunc()
		return
	}

	params := []Param{{Name: "self", Type: recPtr}}
	for _, f := range m.Formals {
		params = append(params, Param{Name: f.Name, Type: irType(f.Type)})
	}
	lw.startFunc(funcSymbol(decl.Name, m.Name), retIR, params)
	lw.bindMethodFrame(decl.Name, "%self", m)

	result := lw.lowerBlockValue(m.Body)
	if retIR == "void" {
		lw.terminate("ret void")
	} else {
		lw.terminate(fmt.Sprintf("ret %s %s", retIR, result))
	}
	lw.finishFunc()
}

// bindMethodFrame sets up self and allocates+stores each formal into its
// own slot, so Assign/ObjectId treat formals exactly like let-bound locals.
func (lw *lowerer) bindMethodFrame(className, selfReg string, m *ast.Method) {
	lw.vars = nil
	lw.selfPtr = selfReg
	lw.selfType = className
	for _, f := range m.Formals {
		typ := irType(f.Type)
		slot := lw.alloca(typ)
		lw.store(typ, "%"+f.Name, slot)
		lw.vars = lw.vars.bind(f.Name, slot, f.Type)
	}
}

// lowerBlockValue lowers a Block and returns its value register, or "" if
// the block's static type is unit.
func (lw *lowerer) lowerBlockValue(b *ast.Block) string {
	reg := lw.lowerExpr(b)
	return reg
}

// decodeStringLiteral strips the quotes from a lexer string-literal value
// and turns every textual \xHH escape the lexer left in it (\x22, \x5c and
// the non-printable bytes) back into the byte it stands for.
func decodeStringLiteral(raw string) []byte {
	inner := raw[1 : len(raw)-1]
	out := make([]byte, 0, len(inner))
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+3 < len(inner) && inner[i+1] == 'x' {
			if v, err := strconv.ParseUint(inner[i+2:i+4], 16, 8); err == nil {
				out = append(out, byte(v))
				i += 3
				continue
			}
		}
		out = append(out, inner[i])
	}
	return out
}

// addStringConst interns bytes as a new NUL-terminated global string
// constant and returns a constant getelementptr expression addressing its
// first byte, so callers get a genuine i8* value rather than the bare
// [N x i8]-typed global.
func (lw *lowerer) addStringConst(bytes []byte) string {
	name := fmt.Sprintf("@.str.%d", len(lw.mod.Strings))
	lw.mod.Strings = append(lw.mod.Strings, &StringConst{Name: name, Value: bytes})
	n := len(bytes) + 1
	return fmt.Sprintf("getelementptr ([%d x i8], [%d x i8]* %s, i32 0, i32 0)", n, n, name)
}

func (lw *lowerer) internString(raw string) string {
	return lw.addStringConst(decodeStringLiteral(raw))
}

// emptyStringConst returns the shared empty-string constant used as the
// default value for an uninitialized string field or let, interning it on
// first use.
func (lw *lowerer) emptyStringConst() string {
	if lw.emptyStr == "" {
		lw.emptyStr = lw.addStringConst(nil)
	}
	return lw.emptyStr
}

// lowerExpr lowers e and returns a loaded SSA value register, or "" for a
// unit-typed expression (no value is produced, per spec.md §4.4).
func (lw *lowerer) lowerExpr(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Block:
		var last string
		for _, sub := range n.Exprs {
			last = lw.lowerExpr(sub)
		}
		return last

	case *ast.If:
		return lw.lowerIf(n)

	case *ast.While:
		lw.lowerWhile(n)
		return ""

	case *ast.Let:
		return lw.lowerLet(n)

	case *ast.Assign:
		return lw.lowerAssign(n)

	case *ast.UnaryExpr:
		return lw.lowerUnary(n)

	case *ast.BinaryExpr:
		return lw.lowerBinary(n)

	case *ast.Call:
		return lw.lowerCall(n)

	case *ast.New:
		return lw.emit(fmt.Sprintf("call %s @%s_new()", irType(n.TypeName), n.TypeName))

	case *ast.SelfRef:
		return lw.selfPtr

	case *ast.ObjectId:
		return lw.lowerIdent(n.Name)

	case *ast.IntLit:
		return n.Value

	case *ast.BoolLit:
		if n.Value {
			return "1"
		}
		return "0"

	case *ast.StrLit:
		return lw.internString(n.Raw)

	case *ast.UnitLit:
		return ""
	}
	panic(fmt.Sprintf("ir: unhandled expression node %T", e))
}

func (lw *lowerer) lowerIdent(name string) string {
	if ptr, typ, ok := lw.vars.lookup(name); ok {
		return lw.load(typ, ptr)
	}
	layout := lw.layouts[lw.selfType]
	offset, _ := layout.FieldOffset(name)
	recType := "%struct." + lw.selfType
	fieldType := layout.Record.Fields[offset].Type
	fieldPtr := lw.emit(fmt.Sprintf("getelementptr %s, %s* %s, i32 0, i32 %d", recType, recType, lw.selfPtr, offset))
	return lw.load(fieldType, fieldPtr)
}

func (lw *lowerer) lowerIf(n *ast.If) string {
	cond := lw.lowerExpr(n.Cond)
	resultType := n.Type()

	var slot string
	if resultType != "unit" {
		slot = lw.alloca(irType(resultType))
	}

	thenLabel := lw.newLabel("then")
	mergeLabel := lw.newLabel("ifend")
	elseLabel := mergeLabel
	if n.Else != nil {
		elseLabel = lw.newLabel("else")
	}
	lw.terminate(fmt.Sprintf("br i1 %s, label %%%s, label %%%s", cond, thenLabel, elseLabel))

	lw.startBlock(thenLabel)
	thenVal := lw.lowerExpr(n.Then)
	if resultType != "unit" {
		thenVal = lw.bitcastTo(thenVal, n.Then.Type(), resultType)
		lw.store(irType(resultType), thenVal, slot)
	}
	lw.terminate(fmt.Sprintf("br label %%%s", mergeLabel))

	if n.Else != nil {
		lw.startBlock(elseLabel)
		elseVal := lw.lowerExpr(n.Else)
		if resultType != "unit" {
			elseVal = lw.bitcastTo(elseVal, n.Else.Type(), resultType)
			lw.store(irType(resultType), elseVal, slot)
		}
		lw.terminate(fmt.Sprintf("br label %%%s", mergeLabel))
	}

	lw.startBlock(mergeLabel)
	if resultType == "unit" {
		return ""
	}
	return lw.load(irType(resultType), slot)
}

func (lw *lowerer) lowerWhile(n *ast.While) {
	condLabel := lw.newLabel("while_cond")
	loopLabel := lw.newLabel("while_loop")
	endLabel := lw.newLabel("while_end")

	lw.terminate(fmt.Sprintf("br label %%%s", condLabel))
	lw.startBlock(condLabel)
	cond := lw.lowerExpr(n.Cond)
	lw.terminate(fmt.Sprintf("br i1 %s, label %%%s, label %%%s", cond, loopLabel, endLabel))

	lw.startBlock(loopLabel)
	lw.lowerExpr(n.Body)
	lw.terminate(fmt.Sprintf("br label %%%s", condLabel))

	lw.startBlock(endLabel)
}

func (lw *lowerer) lowerLet(n *ast.Let) string {
	typ := irType(n.Type)
	slot := lw.alloca(typ)
	if n.Init != nil {
		val := lw.lowerExpr(n.Init)
		val = lw.bitcastTo(val, n.Init.Type(), n.Type)
		lw.store(typ, val, slot)
	} else {
		lw.store(typ, lw.defaultValue(n.Type), slot)
	}
	lw.vars = lw.vars.bind(n.Name, slot, n.Type)
	return lw.lowerExpr(n.Scope)
}

func (lw *lowerer) lowerAssign(n *ast.Assign) string {
	val := lw.lowerExpr(n.Value)
	val = lw.bitcastTo(val, n.Value.Type(), n.Type())

	if ptr, typ, ok := lw.vars.lookup(n.Name); ok {
		lw.store(typ, val, ptr)
		return val
	}
	layout := lw.layouts[lw.selfType]
	offset, _ := layout.FieldOffset(n.Name)
	recType := "%struct." + lw.selfType
	fieldType := layout.Record.Fields[offset].Type
	fieldPtr := lw.emit(fmt.Sprintf("getelementptr %s, %s* %s, i32 0, i32 %d", recType, recType, lw.selfPtr, offset))
	lw.store(fieldType, val, fieldPtr)
	return val
}

func (lw *lowerer) lowerUnary(n *ast.UnaryExpr) string {
	operand := lw.lowerExpr(n.E)
	switch n.Op {
	case ast.Not:
		return lw.emit(fmt.Sprintf("xor i1 %s, 1", operand))
	case ast.Neg:
		return lw.emit(fmt.Sprintf("sub i32 0, %s", operand))
	case ast.IsNull:
		return lw.emit(fmt.Sprintf("icmp eq %s %s, null", irType(n.E.Type()), operand))
	}
	panic("ir: unknown unary operator")
}

// lowerBinary implements spec.md §4.4's binop contracts, including
// short-circuit and/or and the static-type-dispatched equality operator.
func (lw *lowerer) lowerBinary(n *ast.BinaryExpr) string {
	switch n.Op {
	case ast.And, ast.Or:
		return lw.lowerShortCircuit(n)
	case ast.Pow:
		left := lw.lowerExpr(n.L)
		right := lw.lowerExpr(n.R)
		leftF := lw.emit(fmt.Sprintf("sitofp i32 %s to double", left))
		rightF := lw.emit(fmt.Sprintf("sitofp i32 %s to double", right))
		powF := lw.emit(fmt.Sprintf("call double @pow(double %s, double %s)", leftF, rightF))
		return lw.emit(fmt.Sprintf("fptosi double %s to i32", powF))
	case ast.Eq:
		return lw.lowerEquals(n)
	}

	left := lw.lowerExpr(n.L)
	right := lw.lowerExpr(n.R)
	switch n.Op {
	case ast.Add:
		return lw.emit(fmt.Sprintf("add i32 %s, %s", left, right))
	case ast.Sub:
		return lw.emit(fmt.Sprintf("sub i32 %s, %s", left, right))
	case ast.Mul:
		return lw.emit(fmt.Sprintf("mul i32 %s, %s", left, right))
	case ast.Div:
		return lw.emit(fmt.Sprintf("sdiv i32 %s, %s", left, right))
	case ast.Lt:
		return lw.emit(fmt.Sprintf("icmp slt i32 %s, %s", left, right))
	case ast.Le:
		return lw.emit(fmt.Sprintf("icmp sle i32 %s, %s", left, right))
	case ast.Gt:
		return lw.emit(fmt.Sprintf("icmp sgt i32 %s, %s", left, right))
	case ast.Ge:
		return lw.emit(fmt.Sprintf("icmp sge i32 %s, %s", left, right))
	}
	panic("ir: unknown binary operator")
}

func (lw *lowerer) lowerShortCircuit(n *ast.BinaryExpr) string {
	slot := lw.alloca("i1")
	left := lw.lowerExpr(n.L)

	rightLabel := lw.newLabel("sc_rhs")
	shortLabel := lw.newLabel("sc_short")
	mergeLabel := lw.newLabel("sc_end")

	if n.Op == ast.And {
		lw.terminate(fmt.Sprintf("br i1 %s, label %%%s, label %%%s", left, rightLabel, shortLabel))
	} else {
		lw.terminate(fmt.Sprintf("br i1 %s, label %%%s, label %%%s", left, shortLabel, rightLabel))
	}

	lw.startBlock(shortLabel)
	shortValue := "0"
	if n.Op == ast.Or {
		shortValue = "1"
	}
	lw.store("i1", shortValue, slot)
	lw.terminate(fmt.Sprintf("br label %%%s", mergeLabel))

	lw.startBlock(rightLabel)
	right := lw.lowerExpr(n.R)
	lw.store("i1", right, slot)
	lw.terminate(fmt.Sprintf("br label %%%s", mergeLabel))

	lw.startBlock(mergeLabel)
	return lw.load("i1", slot)
}

// lowerEquals dispatches on the operands' static type: primitives compare
// by value, string uses strcmp, unit is always equal, class types compare
// pointer identity after bitcasting both sides to Object*.
func (lw *lowerer) lowerEquals(n *ast.BinaryExpr) string {
	left := lw.lowerExpr(n.L)
	right := lw.lowerExpr(n.R)
	opType := n.L.Type()

	switch opType {
	case "unit":
		return "1"
	case "string":
		cmp := lw.emit(fmt.Sprintf("call i32 @strcmp(i8* %s, i8* %s)", left, right))
		return lw.emit(fmt.Sprintf("icmp eq i32 %s, 0", cmp))
	case "int32", "bool":
		return lw.emit(fmt.Sprintf("icmp eq %s %s, %s", irType(opType), left, right))
	default:
		leftObj := lw.bitcastTo(left, opType, "Object")
		rightObj := lw.bitcastTo(right, n.R.Type(), "Object")
		return lw.emit(fmt.Sprintf("icmp eq %%struct.Object* %s, %s", leftObj, rightObj))
	}
}

// lowerCall looks up the method's slot in the receiver's static-type
// vtable, loads the function pointer, and calls through it.
func (lw *lowerer) lowerCall(n *ast.Call) string {
	recv := lw.lowerExpr(n.Receiver)
	recvType := n.Receiver.Type()
	layout := lw.layouts[recvType]
	slot, _ := layout.MethodSlotIndex(n.Method)
	method, _ := lw.graph.Classes[recvType].Method(n.Method)

	vtablePtrType := "%struct." + recvType + "VTable"
	recType := "%struct." + recvType
	vtableSlotPtr := lw.emit(fmt.Sprintf("getelementptr %s, %s* %s, i32 0, i32 0", recType, recType, recv))
	vtable := lw.load(vtablePtrType+"*", vtableSlotPtr)
	fnSlotPtr := lw.emit(fmt.Sprintf("getelementptr %s, %s* %s, i32 0, i32 %d", vtablePtrType, vtablePtrType, vtable, slot))
	fn := lw.load(funcTypeOf(recvType, method)+"*", fnSlotPtr)

	args := []string{fmt.Sprintf("%s %s", irType(recvType), recv)}
	for i, a := range n.Args {
		val := lw.lowerExpr(a)
		val = lw.bitcastTo(val, a.Type(), method.Formals[i].Type)
		args = append(args, fmt.Sprintf("%s %s", irType(method.Formals[i].Type), val))
	}

	retIR := irType(method.RetType)
	call := fmt.Sprintf("call %s %s(%s)", retIR, fn, strings.Join(args, ", "))
	if retIR == "void" {
		lw.emitVoid(call)
		return ""
	}
	return lw.emit(call)
}
