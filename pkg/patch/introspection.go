package patch

import (
	"github.com/aretw0/introspection"
)

// EngineState exposes engine counters for observability.
type EngineState struct {
	Applied   int      `json:"applied"`
	Failed    int      `json:"failed"`
	Committed int      `json:"committed"`
	Skipped   int      `json:"skipped"`
	Rules     int      `json:"rules"`
	Blacklist []string `json:"blacklist,omitempty"`
	StoreType string   `json:"store_type"`
}

// State implements introspection.Introspectable.
func (e *Engine) State() any {
	e.mu.Lock()
	defer e.mu.Unlock()

	storeType := "unknown"
	if e.store != nil {
		storeType = "store"
		if comp, ok := e.store.(introspection.Component); ok {
			storeType = comp.ComponentType()
		}
	}

	return EngineState{
		Applied:   e.stats.applied,
		Failed:    e.stats.failed,
		Committed: e.stats.committed,
		Skipped:   e.stats.skipped,
		Rules:     len(e.rules),
		Blacklist: append([]string(nil), e.blacklist...),
		StoreType: storeType,
	}
}

// ComponentType implements introspection.Component.
func (e *Engine) ComponentType() string {
	return "patch-engine"
}

var (
	_ introspection.Introspectable = (*Engine)(nil)
	_ introspection.Component      = (*Engine)(nil)
)
