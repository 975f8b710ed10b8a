package engine

import (
	"strings"

	"github.com/droidtune-io/droidtune/internal/ir"
)

// Policy decides whether a key may be mutated at all.
type Policy interface {
	// Allows returns false with the matched pattern when key is
	// protected.
	Allows(key ir.Key) (bool, string)
}

// ProtectList is a Policy backed by a list of patterns. A pattern
// matches the full "scope:name" form or the bare name; a trailing "*"
// makes it a prefix match (e.g. "com.samsung.*").
type ProtectList struct {
	patterns []string
}

func NewProtectList(patterns []string) *ProtectList {
	return &ProtectList{patterns: patterns}
}

func (p *ProtectList) Allows(key ir.Key) (bool, string) {
	full := key.String()
	for _, pattern := range p.patterns {
		if matchPattern(pattern, full) || matchPattern(pattern, key.Name) {
			return false, pattern
		}
	}
	return true, ""
}

func matchPattern(pattern, s string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(s, prefix)
	}
	return pattern == s
}

// AllowAll is the Policy used when no protect list is configured.
type AllowAll struct{}

func (AllowAll) Allows(ir.Key) (bool, string) { return true, "" }
