package command

// RegisterAll wires every command spec this module implements into reg, in
// the order §4.7/§4.8/§4.9/§4.10 present them. Callers that only need a
// subset (tests, a stripped-down embedder) can call the individual
// Register* functions directly instead.
func RegisterAll(reg *Registry) {
	RegisterSimpleCommands(reg)
	RegisterStructuralCommands(reg)
	RegisterRippleCommands(reg)
	RegisterExtraCommands(reg)
}
