package ast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDumpSimpleClass(t *testing.T) {
	prog := &Program{
		Classes: []*Class{
			{
				Name:   "Main",
				Parent: "Object",
				Methods: []*Method{
					{
						Name:    "main",
						RetType: "int32",
						Body: &Block{
							Exprs: []Expr{&IntLit{Value: "0"}},
						},
					},
				},
			},
		},
	}
	got := Dump(prog, false)
	assert.Equal(t, "[Class(Main, Object, [], [Method(main, [], int32, 0)])]", got)
}

func TestDumpTypedSuffixesExpressions(t *testing.T) {
	lit := &IntLit{Value: "1"}
	lit.SetType("int32")
	prog := &Program{
		Classes: []*Class{
			{
				Name:   "Main",
				Parent: "Object",
				Methods: []*Method{
					{Name: "main", RetType: "int32", Body: &Block{Exprs: []Expr{lit}}},
				},
			},
		},
	}
	got := Dump(prog, true)
	assert.Equal(t, "[Class(Main, Object, [], [Method(main, [], int32, 1 : int32)])]", got)
}

func TestDumpBlockWithMultipleExprs(t *testing.T) {
	var b strings.Builder
	blk := &Block{Exprs: []Expr{&IntLit{Value: "1"}, &IntLit{Value: "2"}}}
	dumpBlock(&b, blk, false)
	assert.Equal(t, "[1, 2]", b.String())
}
