package permissions

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDeny(t *testing.T) {
	s := NewStore()

	ok, err := s.Check("telegram:123", "prod", LevelExecute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, LevelNone, s.EffectiveLevel("telegram:123", "prod"))
}

func TestAdminBypassesGrants(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddAdmin("telegram:123"))

	for _, machine := range []string{"prod", "staging", "never-heard-of-it"} {
		ok, err := s.Check("telegram:123", machine, LevelAdmin)
		require.NoError(t, err)
		assert.True(t, ok, "admin should pass on %s", machine)
	}
	assert.Equal(t, LevelAdmin, s.EffectiveLevel("telegram:123", "prod"))

	// A conflicting lower grant does not weaken admin.
	require.NoError(t, s.Grant("telegram:123", "prod", LevelRead))
	assert.Equal(t, LevelAdmin, s.EffectiveLevel("telegram:123", "prod"))
}

func TestGrantScopeIsolation(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Grant("discord:42", "prod", LevelExecute))

	ok, err := s.Check("discord:42", "prod", LevelExecute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Check("discord:42", "prod", LevelAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Check("discord:42", "staging", LevelExecute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSpecificGrantOverridesWildcard(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Grant("slack:U1", MachineWildcard, LevelExecute))
	require.NoError(t, s.Grant("slack:U1", "prod", LevelAdmin))

	assert.Equal(t, LevelAdmin, s.EffectiveLevel("slack:U1", "prod"))
	assert.Equal(t, LevelExecute, s.EffectiveLevel("slack:U1", "staging"))
}

func TestRevokeSpecificFallsBackToWildcard(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Grant("slack:U1", MachineWildcard, LevelExecute))
	require.NoError(t, s.Grant("slack:U1", "prod", LevelAdmin))

	require.NoError(t, s.Revoke("slack:U1", "prod"))
	assert.Equal(t, LevelExecute, s.EffectiveLevel("slack:U1", "prod"))

	require.NoError(t, s.Revoke("slack:U1", MachineWildcard))
	assert.Equal(t, LevelNone, s.EffectiveLevel("slack:U1", "prod"))
}

func TestRevokeIsNoOpWhenAbsent(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Revoke("telegram:999", "prod"))
}

func TestGrantNoneEqualsRevoke(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Grant("telegram:1", "prod", LevelFiles))
	require.NoError(t, s.Grant("telegram:1", "prod", LevelNone))

	assert.Equal(t, LevelNone, s.EffectiveLevel("telegram:1", "prod"))
	assert.Empty(t, s.Grants())
}

func TestRemoveAdminLeavesResidualGrants(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddAdmin("telegram:1"))
	require.NoError(t, s.Grant("telegram:1", "prod", LevelExecute))

	require.NoError(t, s.RemoveAdmin("telegram:1"))

	ok, err := s.Check("telegram:1", "prod", LevelExecute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Check("telegram:1", "staging", LevelExecute)
	require.NoError(t, err)
	assert.False(t, ok, "admin bypass must be fully revoked, not merged")
}

func TestAdminAndGrantLifecyclesAreIndependent(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddAdmin("telegram:1"))
	require.NoError(t, s.Grant("telegram:1", "prod", LevelExecute))

	require.NoError(t, s.Revoke("telegram:1", "prod"))
	assert.True(t, s.IsAdmin("telegram:1"))
}

func TestAddAdminIdempotent(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddAdmin("telegram:1"))
	require.NoError(t, s.AddAdmin("telegram:1"))
	assert.Equal(t, []string{"telegram:1"}, s.Admins())
}

func TestInvalidArguments(t *testing.T) {
	s := NewStore()

	assert.ErrorIs(t, s.Grant("telegram:1", "", LevelExecute), ErrInvalidScope)
	assert.ErrorIs(t, s.Grant("telegram:1", "prod", Level(55)), ErrInvalidLevel)
	assert.ErrorIs(t, s.Revoke("telegram:1", ""), ErrInvalidScope)

	_, err := s.Check("telegram:1", "prod", Level(55))
	assert.ErrorIs(t, err, ErrInvalidLevel)

	_, err = s.Check("telegram:1", "", LevelExecute)
	assert.ErrorIs(t, err, ErrInvalidScope)

	_, err = s.Check("telegram:1", MachineWildcard, LevelExecute)
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestReadLevelInsufficientForExecute(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Grant("telegram:1", "prod", LevelRead))

	ok, err := s.Check("telegram:1", "prod", LevelExecute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Check("telegram:1", "prod", LevelRead)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentGrantsToDistinctIdentities(t *testing.T) {
	s := NewStore()

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("telegram:%d", i)
			if err := s.Grant(id, "prod", LevelExecute); err != nil {
				t.Errorf("grant %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Grants(), n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("telegram:%d", i)
		assert.Equal(t, LevelExecute, s.EffectiveLevel(id, "prod"), "lost grant for %s", id)
	}
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Grant("telegram:1", MachineWildcard, LevelExecute))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.Grant(fmt.Sprintf("discord:%d", i), "prod", LevelFiles)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.Check("telegram:1", "prod", LevelExecute)
			_ = s.EffectiveLevel("telegram:1", "staging")
		}()
	}
	wg.Wait()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"none", LevelNone, false},
		{"read", LevelRead, false},
		{"EXECUTE", LevelExecute, false},
		{" files ", LevelFiles, false},
		{"admin", LevelAdmin, false},
		{"root", LevelNone, true},
		{"", LevelNone, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidLevel, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestLevelOrdering(t *testing.T) {
	levels := Levels()
	for i := 1; i < len(levels); i++ {
		assert.Less(t, int(levels[i-1]), int(levels[i]))
	}
}
