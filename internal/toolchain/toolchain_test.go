package toolchain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/vsopc/internal/config"
)

// fakeConfig swaps in a tiny shell script for both the assembler and the
// linker so Assemble/Link/Build can be exercised without a real llc/clang
// on the machine running the tests: the script copies its input file (the
// last argument that is neither -o, -o's value, nor -filetype=obj) to the
// -o destination.
func fakeConfig(t *testing.T, workDir string) *config.Config {
	t.Helper()
	script := filepath.Join(t.TempDir(), "fake-tool.sh")
	const body = `#!/bin/sh
dst=""
src=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then
    dst="$a"
  elif [ "$a" != "-o" ] && [ "$a" != "-filetype=obj" ]; then
    src="$a"
  fi
  prev="$a"
done
cp "$src" "$dst"
`
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))
	cfg := config.Default()
	cfg.Toolchain.Assembler = script
	cfg.Toolchain.Linker = script
	cfg.Build.WorkDir = workDir
	return cfg
}

func TestNewCreatesUniqueWorkDir(t *testing.T) {
	cfg := fakeConfig(t, t.TempDir())
	tc1, err := New(cfg, "/tmp/prog.vsop")
	require.NoError(t, err)
	tc2, err := New(cfg, "/tmp/prog.vsop")
	require.NoError(t, err)

	assert.NotEqual(t, tc1.WorkDir, tc2.WorkDir)
	assert.DirExists(t, tc1.WorkDir)
	assert.DirExists(t, tc2.WorkDir)
}

func TestCloseRemovesWorkDirUnlessKeepTmp(t *testing.T) {
	cfg := fakeConfig(t, t.TempDir())
	tc, err := New(cfg, "/tmp/prog.vsop")
	require.NoError(t, err)
	require.NoError(t, tc.Close())
	assert.NoDirExists(t, tc.WorkDir)

	cfg.Build.KeepTmp = true
	tc2, err := New(cfg, "/tmp/prog.vsop")
	require.NoError(t, err)
	require.NoError(t, tc2.Close())
	assert.DirExists(t, tc2.WorkDir)
}

func TestBuildAssemblesThenLinks(t *testing.T) {
	workDir := t.TempDir()
	cfg := fakeConfig(t, workDir)
	tc, err := New(cfg, "/tmp/prog.vsop")
	require.NoError(t, err)
	defer tc.Close()

	irPath := filepath.Join(workDir, "prog.ll")
	require.NoError(t, os.WriteFile(irPath, []byte("; fake ir\n"), 0644))

	outPath := filepath.Join(workDir, "prog.out")
	require.NoError(t, tc.Build(irPath, outPath))
	assert.FileExists(t, outPath)
}
