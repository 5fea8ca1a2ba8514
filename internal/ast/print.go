package ast

import "strings"

// Dump renders p in the canonical bracket notation used by -parse (typed
// false) and -check (typed true, each expression suffixed with ": <type>").
func Dump(p *Program, typed bool) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, c := range p.Classes {
		if i > 0 {
			b.WriteString(", ")
		}
		dumpClass(&b, c, typed)
	}
	b.WriteByte(']')
	return b.String()
}

func dumpClass(b *strings.Builder, c *Class, typed bool) {
	b.WriteString("Class(")
	b.WriteString(c.Name)
	b.WriteString(", ")
	b.WriteString(c.Parent)
	b.WriteString(", [")
	for i, f := range c.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		dumpField(b, f, typed)
	}
	b.WriteString("], [")
	for i, m := range c.Methods {
		if i > 0 {
			b.WriteString(", ")
		}
		dumpMethod(b, m, typed)
	}
	b.WriteString("])")
}

func dumpField(b *strings.Builder, f *Field, typed bool) {
	b.WriteString("Field(")
	b.WriteString(f.Name)
	b.WriteString(", ")
	b.WriteString(f.Type)
	if f.Init != nil {
		b.WriteString(", ")
		dumpExpr(b, f.Init, typed)
	}
	b.WriteByte(')')
}

func dumpMethod(b *strings.Builder, m *Method, typed bool) {
	b.WriteString("Method(")
	b.WriteString(m.Name)
	b.WriteString(", [")
	for i, f := range m.Formals {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(" : ")
		b.WriteString(f.Type)
	}
	b.WriteString("], ")
	b.WriteString(m.RetType)
	b.WriteString(", ")
	dumpBlock(b, m.Body, typed)
	b.WriteByte(')')
}

func dumpBlock(b *strings.Builder, blk *Block, typed bool) {
	if len(blk.Exprs) == 1 {
		dumpExpr(b, blk.Exprs[0], typed)
		return
	}
	b.WriteByte('[')
	for i, e := range blk.Exprs {
		if i > 0 {
			b.WriteString(", ")
		}
		dumpExpr(b, e, typed)
	}
	b.WriteByte(']')
}

// dumpExpr writes e's bracket-notation form, followed by ": <type>" when
// typed is true (the -check dump).
func dumpExpr(b *strings.Builder, e Expr, typed bool) {
	dumpExprBody(b, e, typed)
	if typed {
		b.WriteString(" : ")
		if e.Type() == "" {
			b.WriteString("?")
		} else {
			b.WriteString(e.Type())
		}
	}
}

func dumpExprBody(b *strings.Builder, e Expr, typed bool) {
	switch n := e.(type) {
	case *Block:
		dumpBlock(b, n, typed)
	case *If:
		b.WriteString("If(")
		dumpExpr(b, n.Cond, typed)
		b.WriteString(", ")
		dumpExpr(b, n.Then, typed)
		if n.Else != nil {
			b.WriteString(", ")
			dumpExpr(b, n.Else, typed)
		}
		b.WriteByte(')')
	case *While:
		b.WriteString("While(")
		dumpExpr(b, n.Cond, typed)
		b.WriteString(", ")
		dumpExpr(b, n.Body, typed)
		b.WriteByte(')')
	case *Let:
		b.WriteString("Let(")
		b.WriteString(n.Name)
		b.WriteString(", ")
		b.WriteString(n.Type)
		if n.Init != nil {
			b.WriteString(", ")
			dumpExpr(b, n.Init, typed)
		}
		b.WriteString(", ")
		dumpExpr(b, n.Scope, typed)
		b.WriteByte(')')
	case *Assign:
		b.WriteString("Assign(")
		b.WriteString(n.Name)
		b.WriteString(", ")
		dumpExpr(b, n.Value, typed)
		b.WriteByte(')')
	case *UnaryExpr:
		b.WriteString("UnOp(")
		b.WriteString(n.Op.String())
		b.WriteString(", ")
		dumpExpr(b, n.E, typed)
		b.WriteByte(')')
	case *BinaryExpr:
		b.WriteString("BinOp(")
		b.WriteString(n.Op.String())
		b.WriteString(", ")
		dumpExpr(b, n.L, typed)
		b.WriteString(", ")
		dumpExpr(b, n.R, typed)
		b.WriteByte(')')
	case *Call:
		b.WriteString("Call(")
		dumpExpr(b, n.Receiver, typed)
		b.WriteString(", ")
		b.WriteString(n.Method)
		b.WriteString(", [")
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			dumpExpr(b, a, typed)
		}
		b.WriteString("])")
	case *New:
		b.WriteString("New(")
		b.WriteString(n.TypeName)
		b.WriteByte(')')
	case *SelfRef:
		b.WriteString("self")
	case *ObjectId:
		b.WriteString(n.Name)
	case *IntLit:
		b.WriteString(n.Value)
	case *StrLit:
		b.WriteString(n.Raw)
	case *BoolLit:
		if n.Value {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case *UnitLit:
		b.WriteString("()")
	default:
		b.WriteString("?")
	}
}
