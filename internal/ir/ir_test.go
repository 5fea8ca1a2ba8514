package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/vsopc/internal/parser"
	"github.com/gmofishsauce/vsopc/internal/sem"
	"github.com/gmofishsauce/vsopc/internal/source"
)

func lowerSource(t *testing.T, src string) (*Module, string) {
	t.Helper()
	buf := source.FromBytes(t.Name(), []byte(src))
	p := parser.New(buf, false)
	prog, lexErrs, perr := p.Parse()
	require.Nil(t, perr)
	require.Empty(t, lexErrs)
	g, err := sem.Analyze(prog, buf)
	require.Nil(t, err)
	mod := Lower(prog, g, t.Name())
	return mod, Emit(mod)
}

func TestLowerTrivialMain(t *testing.T) {
	mod, text := lowerSource(t, `class Main { main(): int32 { 0 } }`)
	var mainFn *Func
	for _, f := range mod.Funcs {
		if f.Name == "main" {
			mainFn = f
		}
	}
	require.NotNil(t, mainFn, "expected an emitted function named main")
	assert.Equal(t, "i32", mainFn.RetType)
	assert.Contains(t, text, "define i32 @main()")
}

func TestLowerSynthesizesInitAndNew(t *testing.T) {
	mod, _ := lowerSource(t, `
		class Counter {
			n : int32 <- 0 ;
		}
		class Main {
			main(): int32 { 0 }
		}
	`)
	names := map[string]bool{}
	for _, f := range mod.Funcs {
		names[f.Name] = true
	}
	assert.True(t, names["Counter_init"])
	assert.True(t, names["Counter_new"])
}

func TestLowerFieldAccessAndAssign(t *testing.T) {
	_, text := lowerSource(t, `
		class Counter {
			n : int32 <- 0 ;
			bump() : int32 { n <- n + 1 }
		}
		class Main {
			main(): int32 {
				let c : Counter <- new Counter in c.bump()
			}
		}
	`)
	assert.Contains(t, text, "Counter_method_bump")
	assert.Contains(t, text, "getelementptr")
}

func TestLowerIfProducesMergeBlock(t *testing.T) {
	_, text := lowerSource(t, `
		class Main {
			main(): int32 { if true then 1 else 2 }
		}
	`)
	assert.Contains(t, text, "ifend")
	assert.Contains(t, text, "alloca i32")
}

func TestLowerWhileProducesLoopBlocks(t *testing.T) {
	_, text := lowerSource(t, `
		class Main {
			main(): int32 {
				let i : int32 <- 0 in {
					while i < 10 do i <- i + 1;
					i
				}
			}
		}
	`)
	assert.Contains(t, text, "while_cond")
	assert.Contains(t, text, "while_loop")
	assert.Contains(t, text, "while_end")
}

func TestLowerStringLiteralInternsGlobal(t *testing.T) {
	mod, text := lowerSource(t, `
		class Main {
			main(): int32 {
				let s : string <- "hello" in 0
			}
		}
	`)
	require.Len(t, mod.Strings, 1)
	assert.Equal(t, []byte("hello"), mod.Strings[0].Value)
	assert.Contains(t, text, "hello")
}

func TestLowerUninitializedStringFieldDefaultsToInternedEmptyConst(t *testing.T) {
	mod, text := lowerSource(t, `
		class Main {
			x : string ;
			main(): int32 { 0 }
		}
	`)
	require.Len(t, mod.Strings, 1)
	assert.Empty(t, mod.Strings[0].Value)
	assert.NotContains(t, text, "@.str.empty")
	assert.Contains(t, text, "getelementptr ([1 x i8], [1 x i8]* @.str.0, i32 0, i32 0)")
}

func TestLowerOverrideSharesVTableSlot(t *testing.T) {
	mod, _ := lowerSource(t, `
		class Shape {
			area() : int32 { 0 }
		}
		class Square extends Shape {
			side : int32 <- 1 ;
			area() : int32 { side * side }
		}
		class Main {
			main(): int32 { let s : Shape <- new Square in s.area() }
		}
	`)
	var shapeVT, squareVT *VTableType
	for _, v := range mod.VTables {
		switch v.Class {
		case "Shape":
			shapeVT = v
		case "Square":
			squareVT = v
		}
	}
	require.NotNil(t, shapeVT)
	require.NotNil(t, squareVT)
	assert.Equal(t, len(shapeVT.Methods), len(squareVT.Methods))

	var squareGlobal *GlobalVTable
	for _, g := range mod.Globals {
		if g.Class == "Square" {
			squareGlobal = g
		}
	}
	require.NotNil(t, squareGlobal)
	assert.True(t, hasVTableEntry(squareGlobal, "Square_method_area"))
}

func TestLowerInheritedMethodKeepsParentFuncName(t *testing.T) {
	mod, text := lowerSource(t, `
		class Shape {
			area() : int32 { 0 }
		}
		class Square extends Shape {
			side : int32 <- 1 ;
		}
		class Main {
			main(): int32 { let s : Square <- new Square in s.area() }
		}
	`)
	var squareGlobal *GlobalVTable
	for _, g := range mod.Globals {
		if g.Class == "Square" {
			squareGlobal = g
		}
	}
	require.NotNil(t, squareGlobal)
	assert.True(t, hasVTableEntry(squareGlobal, "Shape_method_area"))

	// Shape_method_area's receiver is %struct.Shape*, but Square's vtable
	// slot is typed for %struct.Square* — the initializer needs a bitcast.
	assert.Contains(t, text, "bitcast (i32 (%struct.Shape*)* @Shape_method_area to i32 (%struct.Square*)*)")
}

// hasVTableEntry reports whether g has a slot initialized with fn.
func hasVTableEntry(g *GlobalVTable, fn string) bool {
	for _, e := range g.Entries {
		if e.FuncName == fn {
			return true
		}
	}
	return false
}

func TestEmitDeclaresRuntimePrelude(t *testing.T) {
	_, text := lowerSource(t, `class Main { main(): int32 { 0 } }`)
	assert.Contains(t, text, "declare i8* @malloc(i64)")
	assert.Contains(t, text, "declare double @pow(double, double)")
	assert.Contains(t, text, "declare i32 @strcmp(i8*, i8*)")
}
