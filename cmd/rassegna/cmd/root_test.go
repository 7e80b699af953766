package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the CLI with the given args and captures output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootShowsHelp(t *testing.T) {
	out, err := runCommand(t)
	require.NoError(t, err)

	assert.Contains(t, out, "rassegna")
	for _, sub := range []string{"search", "index", "serve", "status", "stats", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootUnknownCommand(t *testing.T) {
	_, err := runCommand(t, "nonexistent")
	assert.Error(t, err)
}

func TestRootVersionFlag(t *testing.T) {
	out, err := runCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "rassegna version")
}

func TestStatusRejectsUnknownStatus(t *testing.T) {
	_, err := runCommand(t, "status", "some-id", "archived")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}
