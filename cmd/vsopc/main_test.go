package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every stop-flag/extension flag to its zero value so
// each scenario below starts from a clean slate; tests mutate the package's
// flag.Bool/flag.String targets directly rather than re-invoking
// flag.Parse.
func resetFlags(t *testing.T) {
	t.Helper()
	*extFlag, *lexFlag, *parseFlag, *checkFlag, *llvmFlag = false, false, false, false, false
	*outFlag, *configFlag = "", "vsopc.toml"
	t.Cleanup(func() {
		*extFlag, *lexFlag, *parseFlag, *checkFlag, *llvmFlag = false, false, false, false, false
		*outFlag, *configFlag = "", "vsopc.toml"
	})
}

func TestHelloChecksAndLowersToMain(t *testing.T) {
	resetFlags(t)
	*checkFlag = true
	require.NoError(t, run("testdata/hello.vsop"))

	resetFlags(t)
	*llvmFlag = true
	require.NoError(t, run("testdata/hello.vsop"))
}

func TestInheritanceLUBChecks(t *testing.T) {
	resetFlags(t)
	*checkFlag = true
	assert.NoError(t, run("testdata/inheritance_lub.vsop"))
}

func TestShortCircuitChecksAndLowers(t *testing.T) {
	resetFlags(t)
	*checkFlag = true
	require.NoError(t, run("testdata/short_circuit.vsop"))

	resetFlags(t)
	*llvmFlag = true
	require.NoError(t, run("testdata/short_circuit.vsop"))
}

func TestOverrideMismatchIsSemanticError(t *testing.T) {
	resetFlags(t)
	*checkFlag = true
	err := run("testdata/override_mismatch.vsop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "semantic error")
}

func TestCycleIsSemanticError(t *testing.T) {
	resetFlags(t)
	*checkFlag = true
	err := run("testdata/cycle.vsop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestUnterminatedStringIsLexicalError(t *testing.T) {
	resetFlags(t)
	*lexFlag = true
	err := run("testdata/unterminated_string.vsop")
	require.Error(t, err)
}

func TestMutuallyExclusiveStopFlagsRejected(t *testing.T) {
	resetFlags(t)
	*parseFlag = true
	*checkFlag = true
	err := run("testdata/hello.vsop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestWrongExtensionRejected(t *testing.T) {
	resetFlags(t)
	*checkFlag = true
	err := run("testdata/hello.vsop.txt")
	require.Error(t, err)
}
