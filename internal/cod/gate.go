package cod

import "fmt"

// familyGate applies the shared admission checks before any subtype detector
// runs: tactical weight under the ceiling, no mate threat on the board, and
// no large hanging blunder threat. It returns the failure reasons in check
// order; a quiet pass returns a nil slice.
func familyGate(m *Metrics, ceiling, blunderThresh float64, mateGate bool) (bool, []string) {
	var failed []string
	if m.TacticalWeight > ceiling {
		failed = append(failed, fmt.Sprintf("tactical_weight=%.2f > %g", m.TacticalWeight, ceiling))
	}
	if mateGate && m.MateThreat {
		failed = append(failed, "mate_threat=true")
	}
	if m.BlunderThreatDrop >= blunderThresh {
		failed = append(failed, fmt.Sprintf("blunder_threat=%.2f >= %g", m.BlunderThreatDrop, blunderThresh))
	}
	return len(failed) == 0, failed
}
