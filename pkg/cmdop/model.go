package cmdop

// Model tier aliases understood by the CMDOP server. The server resolves
// an alias to a concrete model; the bot never needs to know which.
const (
	ModelCheap    = "@cheap+agents"
	ModelBalanced = "@balanced+agents"
	ModelSmart    = "@smart+agents"
	ModelFast     = "@fast+agents"
)

var modelAliases = map[string]string{
	"cheap":    ModelCheap,
	"balanced": ModelBalanced,
	"smart":    ModelSmart,
	"fast":     ModelFast,
}

// ResolveModelAlias maps a human-friendly tier name ("balanced") to the
// opaque server-side alias. Unknown names pass through unchanged so
// operators can pin a concrete model string directly.
func ResolveModelAlias(name string) string {
	if alias, ok := modelAliases[name]; ok {
		return alias
	}
	return name
}

// ModelTiers lists the human-friendly tier names.
func ModelTiers() []string {
	return []string{"cheap", "balanced", "smart", "fast"}
}
