package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "llc", cfg.Toolchain.Assembler)
	assert.Equal(t, "clang", cfg.Toolchain.Linker)
	assert.Equal(t, ".vsop", cfg.Source.Extension)
	assert.Equal(t, ".", cfg.Build.WorkDir)
	assert.False(t, cfg.Build.KeepTmp)
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vsopc.toml")
	const body = `
[toolchain]
assembler = "/usr/local/bin/llc-18"
linker = "/usr/bin/clang-18"

[build]
work_dir = "/tmp/vsopc-build"
keep_tmp = true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/llc-18", cfg.Toolchain.Assembler)
	assert.Equal(t, "/usr/bin/clang-18", cfg.Toolchain.Linker)
	assert.Equal(t, "/tmp/vsopc-build", cfg.Build.WorkDir)
	assert.True(t, cfg.Build.KeepTmp)
	assert.Equal(t, ".vsop", cfg.Source.Extension, "unset fields keep their default")
}
