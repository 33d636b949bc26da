package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestJournal creates a journal in a temp directory that is closed
// when the test ends.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		j.Close()
	})
	return j
}
