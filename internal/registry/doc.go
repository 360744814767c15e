// Package registry holds the tool definitions served by toolgate.
//
// A Definition pairs a unique name with a parameter Schema and a Handler.
// Raw JSON arguments are checked with Schema.Validate, which yields typed
// Params or a *ParamError naming the first offending parameter:
//
//	reg := registry.New()
//	reg.MustRegister(tools.Builtins()...)
//	reg.Seal()
//
//	def, err := reg.Resolve("add")
//	params, err := def.Schema.Validate(args)
//	result, err := def.Handler(ctx, params)
//
// Registration happens during startup only. Seal switches the registry to
// read-only use, after which Resolve and List are safe for concurrent calls.
package registry
