package agent

import (
	"slices"
	"strings"

	"zenai/internal/tool"
)

// AlwaysOn tools are permitted regardless of any caller selection.
var AlwaysOn = []string{tool.SpeakTool, tool.StopTool, tool.MemoryTool}

// IsAlwaysOn reports whether name is one of the always permitted tools.
func IsAlwaysOn(name string) bool {
	return slices.Contains(AlwaysOn, name)
}

// AllowList restricts which tools an episode may execute. A nil *AllowList
// permits everything.
type AllowList struct {
	names map[string]bool
}

// NewAllowList unions selected with AlwaysOn. An empty selection means no
// restriction and returns nil.
func NewAllowList(selected []string) *AllowList {
	var names map[string]bool
	for _, n := range selected {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if names == nil {
			names = make(map[string]bool, len(selected)+len(AlwaysOn))
		}
		names[n] = true
	}
	if names == nil {
		return nil
	}
	for _, n := range AlwaysOn {
		names[n] = true
	}
	return &AllowList{names: names}
}

// Active reports whether the list restricts anything.
func (a *AllowList) Active() bool {
	return a != nil
}

// Allows reports whether name may run.
func (a *AllowList) Allows(name string) bool {
	if a == nil {
		return true
	}
	return a.names[name]
}

// Names returns the permitted names sorted, or nil when unrestricted.
func (a *AllowList) Names() []string {
	if a == nil {
		return nil
	}
	out := make([]string, 0, len(a.names))
	for n := range a.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Key identifies the list for caching.
func (a *AllowList) Key() string {
	if a == nil {
		return "*"
	}
	return strings.Join(a.Names(), ",")
}
