package commands

type Registry struct {
	defs []Definition
}

func NewRegistry(defs []Definition) *Registry {
	return &Registry{defs: defs}
}

// ForChannel returns the definitions available on channel. Definitions
// with no channel list are available everywhere.
func (r *Registry) ForChannel(channel string) []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		if len(d.Channels) == 0 {
			out = append(out, d)
			continue
		}
		for _, ch := range d.Channels {
			if ch == channel {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func (r *Registry) find(channel, name string) (Definition, bool) {
	for _, d := range r.ForChannel(channel) {
		if matchesCommand(d, name) {
			return d, true
		}
	}
	return Definition{}, false
}

func matchesCommand(def Definition, name string) bool {
	if def.Name == name {
		return true
	}
	for _, alias := range def.Aliases {
		if alias == name {
			return true
		}
	}
	return false
}
