package cod

import (
	"encoding/json"
	"fmt"
)

// Subtype identifies one control-over-dynamics motif. The declaration order
// of the legacy block and of the refined block is the selection priority
// order inside the respective engine (lower = higher priority). The String
// values are wire-stable: they appear in emitted tags, gate-log keys, and
// stored rows, and must never be renamed.
type Subtype uint8

const (
	SubtypeNone Subtype = iota

	// Legacy nine-subtype engine, in priority order.
	SubtypeSimplify
	SubtypePlanKill
	SubtypeFreezeBind
	SubtypeBlockadePassed
	SubtypeFileSeal
	SubtypeKingSafetyShell
	SubtypeSpaceClamp
	SubtypeRegroupConsolidate
	SubtypeSlowdown

	// Refined four-subtype engine, in priority order.
	SubtypeProphylaxis
	SubtypePieceControl
	SubtypePawnControl
	SubtypeSimplification

	subtypeCount
)

var subtypeNames = [subtypeCount]string{
	SubtypeNone:               "",
	SubtypeSimplify:           "simplify",
	SubtypePlanKill:           "plan_kill",
	SubtypeFreezeBind:         "freeze_bind",
	SubtypeBlockadePassed:     "blockade_passed",
	SubtypeFileSeal:           "file_seal",
	SubtypeKingSafetyShell:    "king_safety_shell",
	SubtypeSpaceClamp:         "space_clamp",
	SubtypeRegroupConsolidate: "regroup_consolidate",
	SubtypeSlowdown:           "slowdown",
	SubtypeProphylaxis:        "prophylaxis",
	SubtypePieceControl:       "piece_control",
	SubtypePawnControl:        "pawn_control",
	SubtypeSimplification:     "simplification",
}

func (s Subtype) String() string {
	if s >= subtypeCount {
		return ""
	}
	return subtypeNames[s]
}

// ParseSubtype maps a wire name back to its Subtype. The empty string parses
// to SubtypeNone.
func ParseSubtype(name string) (Subtype, bool) {
	for s, n := range subtypeNames {
		if n == name {
			return Subtype(s), true
		}
	}
	return SubtypeNone, false
}

func (s Subtype) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Subtype) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, ok := ParseSubtype(name)
	if !ok {
		return fmt.Errorf("unknown subtype %q", name)
	}
	*s = parsed
	return nil
}

// TagControlOverDynamics is the generic tag emitted alongside every subtype
// tag. Downstream consumers match on these strings verbatim.
const TagControlOverDynamics = "control_over_dynamics"

// Tag returns the subtype-specific wire tag, e.g.
// "control_over_dynamics:simplify".
func (s Subtype) Tag() string {
	return TagControlOverDynamics + ":" + s.String()
}

// Variant selects which detection strategy an Engine implements. The choice
// is always explicit — a constructor argument — never sniffed from the
// process environment.
type Variant string

const (
	VariantLegacy  Variant = "legacy"
	VariantRefined Variant = "refined"
)

// ParseVariant validates a configured variant name.
func ParseVariant(name string) (Variant, error) {
	switch Variant(name) {
	case VariantLegacy, VariantRefined:
		return Variant(name), nil
	}
	return "", fmt.Errorf("unknown engine variant %q", name)
}

// Phase is the coarse game-stage bucket used to scale thresholds.
type Phase string

const (
	PhaseOpening    Phase = "opening"
	PhaseMiddlegame Phase = "middlegame"
	PhaseEndgame    Phase = "endgame"
)

// PhaseFromRatio buckets a remaining-material ratio: low ratios mean most
// material has left the board.
func PhaseFromRatio(ratio float64) Phase {
	switch {
	case ratio <= 0.33:
		return PhaseEndgame
	case ratio <= 0.66:
		return PhaseMiddlegame
	default:
		return PhaseOpening
	}
}

// MoveKind is the upstream classification of the played move's character.
type MoveKind string

const (
	KindPositional MoveKind = "positional"
	KindDynamic    MoveKind = "dynamic"
)
