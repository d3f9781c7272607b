package permissions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup", "perms.yaml")
	m := Map{10: User, 2: User | Admin, 3: Owner}

	require.NoError(t, WriteSnapshotFile(path, m))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "USER|ADMIN")

	got, err := ReadSnapshotFile(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestSnapshotFile_RejectsDuplicatesAndUnknownFlags(t *testing.T) {
	dir := t.TempDir()

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte(`permissions:
  - user_id: 1
    permission: USER
  - user_id: 1
    permission: ADMIN
`), 0o644))
	_, err := ReadSnapshotFile(dup)
	assert.ErrorContains(t, err, "listed twice")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`permissions:
  - user_id: 1
    permission: GOD
`), 0o644))
	_, err = ReadSnapshotFile(bad)
	assert.Error(t, err)
}
