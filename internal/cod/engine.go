package cod

import "fmt"

// Engine classifies one move at a time. Implementations are pure: no clock,
// no randomness, no hidden state. The caller threads the CooldownState
// through consecutive calls for one game side; the returned state equals the
// input state unless this call selected a subtype.
type Engine interface {
	Variant() Variant
	Classify(m Metrics, state CooldownState) (Result, CooldownState)
}

// New builds the engine for the configured variant. Variant choice happens
// here, at construction, and nowhere else.
func New(v Variant, t Thresholds) (Engine, error) {
	switch v {
	case VariantLegacy:
		return NewLegacyEngine(t), nil
	case VariantRefined:
		return NewRefinedEngine(t), nil
	}
	return nil, fmt.Errorf("unknown engine variant %q", v)
}
