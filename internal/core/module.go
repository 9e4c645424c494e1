// Package core provides the module system foundation for remora.
package core

// ModuleID uniquely identifies a module, namespaced by dots
// (e.g. "channel.telegram", "provider.gemini").
type ModuleID string

// Namespace returns the part of the ID before the first dot, or the whole
// ID when it has no namespace.
func (id ModuleID) Namespace() string {
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return string(id[:i])
		}
	}
	return string(id)
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal interface every module must implement.
// Lifecycle behaviour is added through the optional interfaces in
// lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
