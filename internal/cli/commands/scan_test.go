package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unguardedTally = `package fixture

type tally struct {
	n int
}

func (t *tally) add() {
	t.n++
}

func (t *tally) reset() {
	t.n = 0
}
`

const guardedTally = `package fixture

import "sync"

type tally struct {
	mu sync.Mutex
	n  int
}

func (t *tally) add() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
}
`

func writeFixture(t *testing.T, name, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return dir
}

// Without a root command the scan command runs on default config, so
// the gate trips at High.
func TestScanCommandFailsGateOnCriticalFinding(t *testing.T) {
	dir := writeFixture(t, "tally.go", unguardedTally)

	cmd := NewScanCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gate failed")

	output := buf.String()
	assert.Contains(t, output, "UnprotectedSharedWrite")
	assert.Contains(t, output, "Critical")
	assert.Contains(t, output, "tally.n")
	assert.Contains(t, output, "1 files scanned")
}

func TestScanCommandPassesCleanCode(t *testing.T) {
	dir := writeFixture(t, "tally.go", guardedTally)

	cmd := NewScanCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No hazards found.")
}

func TestScanCommandReportsSkippedFiles(t *testing.T) {
	dir := writeFixture(t, "tally.go", guardedTally)
	broken := filepath.Join(dir, "broken.go")
	require.NoError(t, os.WriteFile(broken, []byte("package fixture\nfunc ("), 0o644))

	cmd := NewScanCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.NoError(t, err, "parse failures must not fail the scan")
	assert.Contains(t, buf.String(), "skipped")
	assert.Contains(t, buf.String(), "broken.go")
}

func TestScanCommandRejectsMissingScanError(t *testing.T) {
	// A path that does not exist becomes a scan error, not a crash.
	cmd := NewScanCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "no-such-dir")})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "skipped")
}

func TestRulesCommandListsCatalog(t *testing.T) {
	cmd := NewRulesCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "UnprotectedSharedWrite")
	assert.Contains(t, output, "CheckThenAct")
	assert.Contains(t, output, "LazyInitWithoutLock")
	assert.NotContains(t, output, "Bad:")
}

func TestRulesCommandFullShowsExamples(t *testing.T) {
	cmd := NewRulesCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--full"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Bad:")
	assert.Contains(t, output, "Good:")
	assert.Contains(t, output, "once.Do")
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3", "abcdef0", "2026-01-02")
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "racehound v1.2.3")
	assert.Contains(t, output, "abcdef0")
	assert.Contains(t, output, "go:")
}
