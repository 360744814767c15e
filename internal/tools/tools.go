// Package tools contains the built-in tool definitions.
package tools

import "toolgate/internal/registry"

// Builtins returns every built-in tool in registration order.
func Builtins() []registry.Definition {
	return []registry.Definition{
		Add(),
	}
}

// RegisterBuiltins adds the built-in tools to reg.
func RegisterBuiltins(reg *registry.Registry) error {
	for _, def := range Builtins() {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}
