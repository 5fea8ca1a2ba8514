// Package toolchain shells out to an external assembler/linker to turn a
// -llvm text dump into an executable, the way a round-trip test harness
// shells out to separately built assembler/disassembler binaries with
// exec.Command and CombinedOutput. It never assembles or links anything
// itself.
package toolchain

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/gmofishsauce/vsopc/internal/config"
)

// Toolchain runs the configured assembler and linker in a scratch work
// directory unique to this invocation.
type Toolchain struct {
	cfg     *config.Config
	WorkDir string
}

// New creates a fresh scratch work directory under cfg.Build.WorkDir, named
// after sourcePath's basename plus a uuid suffix so concurrent or repeated
// invocations over the same source never collide (itf.go's makeTmpDir keyed
// on basename alone cannot make that guarantee).
func New(cfg *config.Config, sourcePath string) (*Toolchain, error) {
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	dir := filepath.Join(cfg.Build.WorkDir, fmt.Sprintf("_vsopc_%s_%s", name, uuid.New().String()))

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}
	return &Toolchain{cfg: cfg, WorkDir: dir}, nil
}

// Close removes the scratch work directory unless the configuration asks to
// keep it (useful when debugging a failed assemble/link step).
func (tc *Toolchain) Close() error {
	if tc.cfg.Build.KeepTmp {
		return nil
	}
	return os.RemoveAll(tc.WorkDir)
}

// Assemble runs the configured assembler over the textual IR at irPath,
// producing an object file at objPath.
func (tc *Toolchain) Assemble(irPath, objPath string) error {
	cmd := exec.Command(tc.cfg.Toolchain.Assembler, "-filetype=obj", "-o", objPath, irPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("assemble %s: %w\n%s", irPath, err, output)
	}
	return nil
}

// Link runs the configured linker over one or more object files, producing
// the executable at outPath.
func (tc *Toolchain) Link(objPaths []string, outPath string) error {
	args := append(append([]string{}, objPaths...), "-o", outPath)
	cmd := exec.Command(tc.cfg.Toolchain.Linker, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("link %v: %w\n%s", objPaths, err, output)
	}
	return nil
}

// Build assembles irPath and links the result into outPath in one step,
// the common case the driver uses when no stop-flag is given.
func (tc *Toolchain) Build(irPath, outPath string) error {
	objPath := filepath.Join(tc.WorkDir, "out.o")
	if err := tc.Assemble(irPath, objPath); err != nil {
		return err
	}
	return tc.Link([]string{objPath}, outPath)
}
