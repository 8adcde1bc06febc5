// Package permissions implements the authorization table that gates every
// command the bot forwards to the CMDOP API. Grants are keyed by a
// cross-channel identity string ("telegram:12345") and scoped to a machine
// name or the "*" wildcard; a separate admin set bypasses grants entirely.
// Absent entries resolve to no access.
package permissions

import (
	"errors"
	"sort"
	"sync"
)

// MachineWildcard grants across all machines. A grant for a specific
// machine always wins over a wildcard grant for the same identity.
const MachineWildcard = "*"

var (
	// ErrInvalidLevel is returned when a level outside the enumeration is
	// used in a mutation or check.
	ErrInvalidLevel = errors.New("invalid permission level")

	// ErrInvalidScope is returned for an empty or malformed machine scope.
	ErrInvalidScope = errors.New("invalid machine scope")
)

// Grant is one authorization entry: an identity's level on a machine scope.
type Grant struct {
	Identity string `json:"identity"`
	Machine  string `json:"machine"`
	Level    Level  `json:"level"`
}

type grantKey struct {
	identity string
	machine  string
}

// Snapshot is the serializable state of a Store, used by persistence
// backends.
type Snapshot struct {
	Admins []string `json:"admins"`
	Grants []Grant  `json:"grants"`
}

// Backend persists store state across restarts. Implementations must be
// safe for use from a single Store; the Store serializes calls.
type Backend interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
	Close() error
}

// Store answers authorization queries and holds grant mutations. All
// methods are safe for concurrent use; reads and writes are linearizable
// under a single RWMutex.
type Store struct {
	mu      sync.RWMutex
	admins  map[string]struct{}
	grants  map[grantKey]Level
	backend Backend
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		admins: make(map[string]struct{}),
		grants: make(map[grantKey]Level),
	}
}

// NewStoreWithBackend creates a store that loads its initial state from
// backend and saves after every mutation.
func NewStoreWithBackend(backend Backend) (*Store, error) {
	s := NewStore()
	s.backend = backend

	snap, err := backend.Load()
	if err != nil {
		return nil, err
	}
	for _, admin := range snap.Admins {
		s.admins[admin] = struct{}{}
	}
	for _, g := range snap.Grants {
		if !g.Level.Valid() || g.Machine == "" {
			continue
		}
		s.grants[grantKey{g.Identity, g.Machine}] = g.Level
	}
	return s, nil
}

// AddAdmin grants unconditional access on all machines. Idempotent.
func (s *Store) AddAdmin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[id] = struct{}{}
	return s.save()
}

// RemoveAdmin revokes admin status. No-op if absent; residual grants for
// the identity are untouched.
func (s *Store) RemoveAdmin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.admins, id)
	return s.save()
}

// IsAdmin reports admin set membership.
func (s *Store) IsAdmin(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[id]
	return ok
}

// Grant inserts or overwrites the entry for (id, machine). Granting
// LevelNone is equivalent to Revoke.
func (s *Store) Grant(id, machine string, level Level) error {
	if err := validateScope(machine); err != nil {
		return err
	}
	if !level.Valid() {
		return ErrInvalidLevel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if level == LevelNone {
		delete(s.grants, grantKey{id, machine})
	} else {
		s.grants[grantKey{id, machine}] = level
	}
	return s.save()
}

// Revoke removes the entry for (id, machine). No-op if absent.
func (s *Store) Revoke(id, machine string) error {
	if err := validateScope(machine); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, grantKey{id, machine})
	return s.save()
}

// Check reports whether id may perform an action requiring the given
// level on machine. Denial is the false return, never an error; errors
// signal invalid arguments only.
func (s *Store) Check(id, machine string, required Level) (bool, error) {
	if !required.Valid() {
		return false, ErrInvalidLevel
	}
	if machine == "" || machine == MachineWildcard {
		return false, ErrInvalidScope
	}
	return s.EffectiveLevel(id, machine) >= required, nil
}

// EffectiveLevel resolves id's level on machine: admin bypass first, then
// the specific-machine grant, then the wildcard grant, else LevelNone.
func (s *Store) EffectiveLevel(id, machine string) Level {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.admins[id]; ok {
		return LevelAdmin
	}
	if level, ok := s.grants[grantKey{id, machine}]; ok {
		return level
	}
	if level, ok := s.grants[grantKey{id, MachineWildcard}]; ok {
		return level
	}
	return LevelNone
}

// Admins returns the admin set, sorted.
func (s *Store) Admins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.admins))
	for id := range s.admins {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Grants returns all entries sorted by identity then machine.
func (s *Store) Grants() []Grant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Grant, 0, len(s.grants))
	for key, level := range s.grants {
		out = append(out, Grant{Identity: key.identity, Machine: key.machine, Level: level})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Identity != out[j].Identity {
			return out[i].Identity < out[j].Identity
		}
		return out[i].Machine < out[j].Machine
	})
	return out
}

// Close releases the persistence backend, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}

// save writes the current state through the backend. Caller holds s.mu.
func (s *Store) save() error {
	if s.backend == nil {
		return nil
	}

	snap := Snapshot{Admins: make([]string, 0, len(s.admins)), Grants: make([]Grant, 0, len(s.grants))}
	for id := range s.admins {
		snap.Admins = append(snap.Admins, id)
	}
	for key, level := range s.grants {
		snap.Grants = append(snap.Grants, Grant{Identity: key.identity, Machine: key.machine, Level: level})
	}
	sort.Strings(snap.Admins)
	sort.Slice(snap.Grants, func(i, j int) bool {
		if snap.Grants[i].Identity != snap.Grants[j].Identity {
			return snap.Grants[i].Identity < snap.Grants[j].Identity
		}
		return snap.Grants[i].Machine < snap.Grants[j].Machine
	})
	return s.backend.Save(snap)
}

func validateScope(machine string) error {
	if machine == "" {
		return ErrInvalidScope
	}
	return nil
}
