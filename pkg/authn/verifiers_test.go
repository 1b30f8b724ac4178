package authn

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("subsystem", "test")
}

func TestVerifierDBAddAndVerify(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.txt")

	db, err := NewVerifierDB(testLogger(), dbPath)
	require.NoError(t, err)

	require.NoError(t, db.AddUser("alice", "s3cret"))

	assert.True(t, db.Verify("alice", "s3cret"))
	assert.False(t, db.Verify("alice", "wrong"))
	assert.False(t, db.Verify("bob", "s3cret"))
}

func TestVerifierDBPersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.txt")

	db, err := NewVerifierDB(testLogger(), dbPath)
	require.NoError(t, err)
	require.NoError(t, db.AddUser("alice", "s3cret"))

	// A fresh instance reading the same file must verify the same
	// credentials.
	reopened, err := NewVerifierDB(testLogger(), dbPath)
	require.NoError(t, err)
	assert.True(t, reopened.Verify("alice", "s3cret"))

	raw, err := os.ReadFile(dbPath)
	require.NoError(t, err)

	line := strings.TrimSpace(string(raw))
	parts := strings.Split(line, ":")
	require.Len(t, parts, 3)
	assert.Equal(t, "alice", parts[0])
	assert.NotContains(t, line, "s3cret")
}

func TestVerifierDBRemoveUser(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.txt")

	db, err := NewVerifierDB(testLogger(), dbPath)
	require.NoError(t, err)
	require.NoError(t, db.AddUser("alice", "s3cret"))
	require.NoError(t, db.RemoveUser("alice"))

	assert.False(t, db.Verify("alice", "s3cret"))
	assert.Error(t, db.RemoveUser("alice"))
}

func TestVerifierDBRejectsDuplicateAndBadNames(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.txt")

	db, err := NewVerifierDB(testLogger(), dbPath)
	require.NoError(t, err)

	require.NoError(t, db.AddUser("alice", "s3cret"))
	assert.Error(t, db.AddUser("alice", "other"))
	assert.Error(t, db.AddUser("a:b", "pw"))
}

func TestVerifierDBSkipsCommentsAndBlankLines(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "users.txt")
	content := "# bootstrap users\n\nalice:73616c74:deadbeef\nmalformed-line\n"
	require.NoError(t, os.WriteFile(dbPath, []byte(content), 0o600))

	db, err := NewVerifierDB(testLogger(), dbPath)
	require.NoError(t, err)

	users := db.ListUsers()
	assert.Equal(t, []string{"alice"}, users)
}
