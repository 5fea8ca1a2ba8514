package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gmofishsauce/vsopc/internal/ast"
	"github.com/gmofishsauce/vsopc/internal/config"
	"github.com/gmofishsauce/vsopc/internal/ir"
	"github.com/gmofishsauce/vsopc/internal/lexer"
	"github.com/gmofishsauce/vsopc/internal/parser"
	"github.com/gmofishsauce/vsopc/internal/sem"
	"github.com/gmofishsauce/vsopc/internal/source"
	"github.com/gmofishsauce/vsopc/internal/token"
	"github.com/gmofishsauce/vsopc/internal/toolchain"
)

var (
	extFlag    = flag.Bool("ext", false, "enable the language extension (or, >, >=)")
	lexFlag    = flag.Bool("lex", false, "stop after lexing; print one token per line")
	parseFlag  = flag.Bool("parse", false, "stop after parsing; print the AST")
	checkFlag  = flag.Bool("check", false, "stop after semantic analysis; print the typed AST")
	llvmFlag   = flag.Bool("llvm", false, "stop after IR lowering; print the textual module")
	outFlag    = flag.String("o", "", "output executable path (default: source basename)")
	configFlag = flag.String("config", "vsopc.toml", "path to an optional TOML configuration file")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		usage()
	}
	if err := run(args[0]); err != nil {
		pr(err.Error())
		os.Exit(1)
	}
}

// run drives the four phases in order, stopping early when a stop-flag is
// set, and otherwise handing the emitted IR to internal/toolchain.
func run(sourcePath string) error {
	stopFlags := 0
	for _, f := range []bool{*lexFlag, *parseFlag, *checkFlag, *llvmFlag} {
		if f {
			stopFlags++
		}
	}
	if stopFlags > 1 {
		return fmt.Errorf("-lex, -parse, -check, and -llvm are mutually exclusive")
	}

	if err := checkExtension(sourcePath); err != nil {
		return err
	}

	buf, err := source.Load(sourcePath)
	if err != nil {
		return fmt.Errorf("open source file %s: %w", sourcePath, err)
	}
	if offset, ok := buf.ValidateASCII(); !ok {
		line, col := buf.Position(offset)
		return fmt.Errorf("%s:%d:%d: syntax error: non-ASCII byte in source", sourcePath, line, col)
	}

	if *lexFlag {
		return runLex(buf)
	}

	p := parser.New(buf, *extFlag)
	prog, lexErrs, perr := p.Parse()
	for _, d := range lexErrs {
		pr(d.String())
	}
	if perr != nil {
		return fmt.Errorf("%s", perr.String())
	}
	if len(lexErrs) > 0 {
		return fmt.Errorf("%s: lexical errors, not proceeding", sourcePath)
	}

	if *parseFlag {
		fmt.Print(ast.Dump(prog, false))
		return nil
	}

	graph, serr := sem.Analyze(prog, buf)
	if serr != nil {
		return fmt.Errorf("%s", serr.String())
	}

	if *checkFlag {
		fmt.Print(ast.Dump(prog, true))
		return nil
	}

	mod := ir.Lower(prog, graph, sourcePath)
	text := ir.Emit(mod)

	if *llvmFlag {
		fmt.Print(text)
		return nil
	}

	return build(sourcePath, text)
}

// build writes the emitted module to a scratch work directory and hands it
// to the external toolchain, the way itf.go chains runAssembler/runLinker.
func build(sourcePath, irText string) error {
	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}

	tc, err := toolchain.New(cfg, sourcePath)
	if err != nil {
		return err
	}
	defer tc.Close()

	irPath := filepath.Join(tc.WorkDir, strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))+".ll")
	if err := os.WriteFile(irPath, []byte(irText), 0644); err != nil {
		return fmt.Errorf("writing intermediate module: %w", err)
	}

	outPath := *outFlag
	if outPath == "" {
		outPath = strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	}
	return tc.Build(irPath, outPath)
}

func runLex(buf *source.Buffer) error {
	lx := lexer.New(buf, *extFlag)
	for {
		t := lx.Next()
		if t.Kind == token.EOF {
			break
		}
		fmt.Println(t.Dump())
	}
	for _, d := range lx.Errors() {
		pr(d.String())
	}
	if lx.HasErrors() {
		return fmt.Errorf("%s: lexical errors", buf.Path)
	}
	return nil
}

// checkExtension enforces spec.md §6: the source extension must be .vsop,
// or .vsopext when -ext is given.
func checkExtension(sourcePath string) error {
	want := ".vsop"
	if *extFlag {
		want = ".vsopext"
	}
	if filepath.Ext(sourcePath) != want {
		return fmt.Errorf("%s: source file must have extension %s", sourcePath, want)
	}
	return nil
}

func pr(s string) {
	fmt.Fprintln(os.Stderr, "vsopc: "+s)
}

func usage() {
	pr("Usage: vsopc [options] source-file\nOptions:")
	flag.PrintDefaults()
	os.Exit(1)
}
