package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: simple
description: "one increment"
resource: counter
props:
  start: 1
  step: 1
steps:
  - call: Increment
  - flush: true
assertions:
  - type: final_state
    expect:
      count: 2
`

const failingScenario = `name: wrong
description: "expects a count the counter never reaches"
resource: counter
props:
  start: 1
  step: 1
steps:
  - call: Increment
  - flush: true
assertions:
  - type: final_state
    expect:
      count: 99
`

// writeScenario writes content to dir/name and returns the path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
