package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkThenActFixture produces exactly one High finding, so the
// default gate trips and a critical gate does not.
const checkThenActFixture = `package fixture

type account struct {
	balance int
}

func (a *account) withdraw(amount int) bool {
	if a.balance >= amount {
		a.balance -= amount
		return true
	}
	return false
}
`

func fixtureDir(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "account.go")
	require.NoError(t, os.WriteFile(path, []byte(checkThenActFixture), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "racehound "+Version)
}

func TestScanTripsDefaultGate(t *testing.T) {
	dir := fixtureDir(t)

	out, err := execute(t, "scan", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gate failed")
	assert.Contains(t, out, "CheckThenAct")
	assert.Contains(t, out, "High")
}

func TestScanFailOnFlagRaisesGate(t *testing.T) {
	dir := fixtureDir(t)

	out, err := execute(t, "scan", "--fail-on", "critical", dir)
	require.NoError(t, err, "a High finding must not trip a critical gate")
	assert.Contains(t, out, "CheckThenAct")
}

func TestScanReadsConfigFile(t *testing.T) {
	dir := fixtureDir(t)

	// fixtureDir left us in a fresh working directory.
	cwd, err := os.Getwd()
	require.NoError(t, err)
	cfg := filepath.Join(cwd, "racehound.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("fail_on: critical\n"), 0o644))

	_, err = execute(t, "scan", dir)
	require.NoError(t, err)
}

func TestRootRejectsMissingConfigFile(t *testing.T) {
	dir := fixtureDir(t)

	_, err := execute(t, "scan", "--config", "does-not-exist.yaml", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist.yaml")
}

func TestRootRejectsInvalidFailOn(t *testing.T) {
	dir := fixtureDir(t)

	_, err := execute(t, "scan", "--fail-on", "fatal", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail_on")
}
