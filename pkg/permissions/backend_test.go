package permissions

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perms", "permissions.json")
	backend, err := NewJSONBackend(path)
	require.NoError(t, err)

	s, err := NewStoreWithBackend(backend)
	require.NoError(t, err)
	require.NoError(t, s.AddAdmin("telegram:1"))
	require.NoError(t, s.Grant("discord:2", "prod", LevelExecute))
	require.NoError(t, s.Grant("discord:2", MachineWildcard, LevelRead))
	require.NoError(t, s.Close())

	// Reload from the same file.
	backend2, err := NewJSONBackend(path)
	require.NoError(t, err)
	s2, err := NewStoreWithBackend(backend2)
	require.NoError(t, err)
	defer s2.Close()

	assert.True(t, s2.IsAdmin("telegram:1"))
	assert.Equal(t, LevelExecute, s2.EffectiveLevel("discord:2", "prod"))
	assert.Equal(t, LevelRead, s2.EffectiveLevel("discord:2", "staging"))
}

func TestJSONBackendMissingFileIsEmpty(t *testing.T) {
	backend, err := NewJSONBackend(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	snap, err := backend.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Admins)
	assert.Empty(t, snap.Grants)
}

func TestSQLiteBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.db")
	backend, err := NewSQLiteBackend(path)
	require.NoError(t, err)

	s, err := NewStoreWithBackend(backend)
	require.NoError(t, err)
	require.NoError(t, s.AddAdmin("slack:U9"))
	require.NoError(t, s.Grant("telegram:7", "build-box", LevelFiles))
	require.NoError(t, s.Revoke("telegram:7", "build-box"))
	require.NoError(t, s.Grant("telegram:7", "prod", LevelAdmin))
	require.NoError(t, s.Close())

	backend2, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	s2, err := NewStoreWithBackend(backend2)
	require.NoError(t, err)
	defer s2.Close()

	assert.True(t, s2.IsAdmin("slack:U9"))
	assert.Equal(t, LevelNone, s2.EffectiveLevel("telegram:7", "build-box"))
	assert.Equal(t, LevelAdmin, s2.EffectiveLevel("telegram:7", "prod"))
}

func TestBackendSkipsCorruptEntriesOnLoad(t *testing.T) {
	backend := &staticBackend{snap: Snapshot{
		Grants: []Grant{
			{Identity: "telegram:1", Machine: "prod", Level: LevelExecute},
			{Identity: "telegram:2", Machine: "", Level: LevelExecute},
			{Identity: "telegram:3", Machine: "prod", Level: Level(77)},
		},
	}}

	s, err := NewStoreWithBackend(backend)
	require.NoError(t, err)
	assert.Len(t, s.Grants(), 1)
	assert.Equal(t, LevelExecute, s.EffectiveLevel("telegram:1", "prod"))
}

type staticBackend struct {
	snap Snapshot
}

func (b *staticBackend) Load() (Snapshot, error) { return b.snap, nil }
func (b *staticBackend) Save(snap Snapshot) error {
	b.snap = snap
	return nil
}
func (b *staticBackend) Close() error { return nil }
