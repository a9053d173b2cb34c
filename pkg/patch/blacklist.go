package patch

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Guard rejects paths matching a denylist. A pattern is a doublestar glob
// over pointer strings ("/publisher", "/secrets/**", "/books/*/isbn") and
// also denies everything below the path it matches.
type Guard struct {
	patterns []string
}

// NewGuard validates the patterns and returns a guard.
func NewGuard(patterns ...string) (*Guard, error) {
	g := &Guard{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid blacklist pattern %q", p)
		}
		g.patterns = append(g.patterns, p)
	}
	return g, nil
}

// Patterns returns the configured patterns.
func (g *Guard) Patterns() []string {
	if g == nil {
		return nil
	}
	return g.patterns
}

// Check returns ErrBlacklistedPath when ptr or one of its ancestors matches.
func (g *Guard) Check(docType string, ptr Pointer) error {
	if g == nil || len(g.patterns) == 0 {
		return nil
	}
	candidates := append(ptr.Ancestors(), ptr)
	for _, pattern := range g.patterns {
		for _, c := range candidates {
			if ok, _ := doublestar.Match(pattern, c.String()); ok {
				return fmt.Errorf("%w: %s on %s (denied by %q)", ErrBlacklistedPath, ptr, docType, pattern)
			}
		}
	}
	return nil
}
