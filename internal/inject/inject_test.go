package inject

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recoveryLine = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] .+$`)

func TestRecoveryAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recovery_notes.txt")
	r := NewRecovery(path)

	require.NoError(t, r.Append("first transcript"))
	require.NoError(t, r.Append("second transcript"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, recoveryLine, lines[0])
	assert.Regexp(t, recoveryLine, lines[1])
	assert.Contains(t, lines[0], "first transcript")
	assert.Contains(t, lines[1], "second transcript")
}

func TestRecoveryCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested.txt")
	r := NewRecovery(path)

	require.NoError(t, r.Append("text"))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
