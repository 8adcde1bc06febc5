package permissions

import (
	"fmt"
	"strings"
)

// Level is an ordered access level. The gaps leave room for operator-defined
// intermediate tiers without renumbering.
type Level int

const (
	LevelNone    Level = 0
	LevelRead    Level = 10  // status and access introspection only
	LevelExecute Level = 20  // shell commands and agent tasks
	LevelFiles   Level = 30  // file listing and reading
	LevelAdmin   Level = 100 // everything, including permission management
)

var levelNames = map[Level]string{
	LevelNone:    "none",
	LevelRead:    "read",
	LevelExecute: "execute",
	LevelFiles:   "files",
	LevelAdmin:   "admin",
}

// Valid reports whether the level is one of the defined enumeration values.
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	for level, name := range levelNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return level, nil
		}
	}
	return LevelNone, fmt.Errorf("%w: unknown level %q", ErrInvalidLevel, s)
}

// Levels returns all defined levels in ascending order.
func Levels() []Level {
	return []Level{LevelNone, LevelRead, LevelExecute, LevelFiles, LevelAdmin}
}
