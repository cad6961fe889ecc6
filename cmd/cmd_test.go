package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const triangleDoc = `entities:
  - id: 1
    kind: point
    params: [0, 0]
  - id: 2
    kind: point
    params: [3.2, 0.1]
  - id: 3
    kind: point
    params: [2.9, 3.8]
constraints:
  - id: 1
    kind: distance
    refs:
      - entity: 1
      - entity: 2
    value: 3
  - id: 2
    kind: distance
    refs:
      - entity: 2
      - entity: 3
    value: 4
  - id: 3
    kind: distance
    refs:
      - entity: 1
      - entity: 3
    value: 5
`

const squareDoc = `entities:
  - id: 1
    kind: line
    params: [0, 0, 1, 0]
  - id: 2
    kind: line
    params: [1, 0, 1, 1]
  - id: 3
    kind: line
    params: [1, 1, 0, 1]
  - id: 4
    kind: line
    params: [0, 1, 0, 0]
constraints: []
`

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sketch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSolveCommand(t *testing.T) {
	path := writeDoc(t, triangleDoc)

	out, err := runCommand(t, "solve", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Status: fully-constrained")
	assert.Contains(t, out, "Degrees of freedom: 0")
}

func TestSolveCommandWrite(t *testing.T) {
	path := writeDoc(t, triangleDoc)

	out, err := runCommand(t, "solve", "--write", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote solved geometry")

	// The written document must load and still solve.
	out, err = runCommand(t, "solve", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Status: fully-constrained")
}

func TestSolveCommandMissingFile(t *testing.T) {
	_, err := runCommand(t, "solve", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestProfilesCommand(t *testing.T) {
	path := writeDoc(t, squareDoc)

	out, err := runCommand(t, "profiles", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Profile 1")
	assert.Contains(t, out, "area 1")
}

func TestProfilesCommandEmpty(t *testing.T) {
	path := writeDoc(t, `entities:
  - id: 1
    kind: point
    params: [0, 0]
constraints: []
`)

	out, err := runCommand(t, "profiles", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No closed regions found")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sketchcad")
	assert.Contains(t, out, "go:")
}
