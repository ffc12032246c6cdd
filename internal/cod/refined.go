package cod

import (
	"fmt"
	"math"
)

// RefinedEngine is the four-subtype classifier with additive partial-credit
// confidence instead of hand-tuned scores. It shares the Result shape with
// the legacy engine but vetoes the whole family while cooling down rather
// than filtering a single repeated subtype.
type RefinedEngine struct {
	t RefinedThresholds
}

func NewRefinedEngine(t Thresholds) *RefinedEngine {
	return &RefinedEngine{t: t.Refined}
}

func (e *RefinedEngine) Variant() Variant { return VariantRefined }

type refinedDetector struct {
	name Subtype
	fn   func(m *Metrics, t *RefinedThresholds, phase Phase) (*Candidate, GateRecord)
}

var refinedDetectors = [...]refinedDetector{
	{SubtypeProphylaxis, refinedProphylaxis},
	{SubtypePieceControl, refinedPieceControl},
	{SubtypePawnControl, refinedPawnControl},
	{SubtypeSimplification, refinedSimplification},
}

func (e *RefinedEngine) Classify(m Metrics, state CooldownState) (Result, CooldownState) {
	phase := m.phase()
	res := Result{
		Variant:           VariantRefined,
		Phase:             phase,
		GateLog:           map[string]GateRecord{},
		GatesPassed:       map[string]bool{},
		CooldownRemaining: state.Remaining(m.Ply, e.t.CooldownPlies),
	}

	ok, failed := familyGate(&m, e.t.TacticalWeightCeiling, e.t.BlunderThreat, e.t.MateThreatGate)
	if !ok {
		res.GatesPassed["tactical_gate"] = false
		res.FailedGates = failed
		return res, state
	}
	res.GatesPassed["tactical_gate"] = true

	// Whole-family cooldown: inside the window nothing runs, regardless of
	// which subtype was last emitted.
	if state.inWindow(m.Ply, e.t.CooldownPlies) {
		res.GatesPassed["cooldown_gate"] = false
		res.FailedGates = []string{"cooldown"}
		return res, state
	}
	res.GatesPassed["cooldown_gate"] = true

	for _, d := range refinedDetectors {
		cand, rec := d.fn(&m, &e.t, phase)
		res.GateLog[rec.Subtype.String()] = rec
		if cand != nil {
			res.Candidates = append(res.Candidates, *cand)
		}
	}

	if len(res.Candidates) == 0 {
		return res, state
	}

	winner := res.Candidates[0]
	for _, c := range res.Candidates[1:] {
		res.suppress(c.Name)
	}
	res.Selected = &winner
	res.Tags = tagsFor(winner.Name)
	return res, state.advanced(winner.Name, m.Ply)
}

// refinedProphylaxis requires an actual preventive reading before any of the
// broader calm signals count, then stacks credit for each signal present.
// Confidence is clamped to 1.
func refinedProphylaxis(m *Metrics, t *RefinedThresholds, phase Phase) (*Candidate, GateRecord) {
	allowance := t.TensionAllowance(phase)
	volCheck := m.VolatilityDropCP >= t.VolatilityDropCP
	mobCheck := m.OppMobilityDrop >= t.OppMobilityDrop
	tensionCheck := m.TensionDelta <= allowance
	preventiveCheck := m.PreventiveScore >= t.PreventiveTrigger

	rec := GateRecord{
		Subtype: SubtypeProphylaxis,
		Passed:  preventiveCheck && (volCheck || mobCheck || tensionCheck),
		Checks: map[string]bool{
			"volatility_check": volCheck,
			"mobility_check":   mobCheck,
			"tension_check":    tensionCheck,
			"preventive_check": preventiveCheck,
		},
		Observed: map[string]float64{
			"volatility_drop_cp": m.VolatilityDropCP,
			"opp_mobility_drop":  m.OppMobilityDrop,
			"tension_delta":      m.TensionDelta,
			"tension_allowance":  allowance,
			"preventive_score":   m.PreventiveScore,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	conf := 0.3 // preventive signal, always present here
	if volCheck {
		conf += 0.4
	}
	if mobCheck {
		conf += 0.35
	}
	if tensionCheck {
		conf += 0.25
	}
	conf = math.Min(conf, 1.0)

	return &Candidate{
		Name:  SubtypeProphylaxis,
		Score: conf,
		Why:   fmt.Sprintf("shut down counterplay before it started (preventive=%.2f, vol -%.0fcp)", m.PreventiveScore, m.VolatilityDropCP),
		Evidence: map[string]float64{
			"preventive_score":   m.PreventiveScore,
			"volatility_drop_cp": m.VolatilityDropCP,
			"opp_mobility_drop":  m.OppMobilityDrop,
			"tension_delta":      m.TensionDelta,
			"threat_delta":       m.ThreatDelta,
		},
		Gate: rec,
	}, rec
}

// refinedPieceControl is a mobility squeeze by pieces: the opponent lost
// real mobility, volatility came down with it, and the mover's own mobility
// did not collapse in the process.
func refinedPieceControl(m *Metrics, t *RefinedThresholds, _ Phase) (*Candidate, GateRecord) {
	mobOK := m.OppMobilityDrop >= t.OppMobilityDrop
	volOK := m.VolatilityDropCP >= t.VolatilityDropCP*0.8
	selfOK := m.SelfMobilityChange >= -0.1

	rec := GateRecord{
		Subtype: SubtypePieceControl,
		Passed:  mobOK && volOK && selfOK,
		Checks: map[string]bool{
			"mobility_check":      mobOK,
			"volatility_check":    volOK,
			"self_mobility_check": selfOK,
		},
		Observed: map[string]float64{
			"opp_mobility_drop":    m.OppMobilityDrop,
			"volatility_drop_cp":   m.VolatilityDropCP,
			"self_mobility_change": m.SelfMobilityChange,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	conf := math.Min(1.0, 0.6+(m.OppMobilityDrop/0.3)*0.3)
	return &Candidate{
		Name:  SubtypePieceControl,
		Score: conf,
		Why:   fmt.Sprintf("restricted opponent pieces (mobility -%.2f)", m.OppMobilityDrop),
		Evidence: map[string]float64{
			"opp_mobility_drop":    m.OppMobilityDrop,
			"volatility_drop_cp":   m.VolatilityDropCP,
			"self_mobility_change": m.SelfMobilityChange,
		},
		Gate: rec,
	}, rec
}

// refinedPawnControl is the pawn-chain version of the squeeze: a softer
// mobility bar, but tension must stay inside the phase allowance.
func refinedPawnControl(m *Metrics, t *RefinedThresholds, phase Phase) (*Candidate, GateRecord) {
	allowance := t.TensionAllowance(phase)
	mobOK := m.OppMobilityDrop >= t.OppMobilityDrop*0.6
	tensionOK := m.TensionDelta <= allowance
	volOK := m.VolatilityDropCP >= t.VolatilityDropCP*0.5

	rec := GateRecord{
		Subtype: SubtypePawnControl,
		Passed:  mobOK && tensionOK && volOK,
		Checks: map[string]bool{
			"mobility_check":   mobOK,
			"tension_check":    tensionOK,
			"volatility_check": volOK,
		},
		Observed: map[string]float64{
			"opp_mobility_drop":  m.OppMobilityDrop,
			"tension_delta":      m.TensionDelta,
			"tension_allowance":  allowance,
			"volatility_drop_cp": m.VolatilityDropCP,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	conf := 0.5
	if allowance > 0 {
		conf = math.Min(1.0, 0.5+(math.Abs(m.TensionDelta)/allowance)*0.3)
	}
	return &Candidate{
		Name:  SubtypePawnControl,
		Score: conf,
		Why:   fmt.Sprintf("pawn structure took the squares away (tension %+.2f)", m.TensionDelta),
		Evidence: map[string]float64{
			"opp_mobility_drop":  m.OppMobilityDrop,
			"tension_delta":      m.TensionDelta,
			"volatility_drop_cp": m.VolatilityDropCP,
		},
		Gate: rec,
	}, rec
}

// refinedSimplification fires on a king-safety gain achieved without paying
// evaluation for it.
func refinedSimplification(m *Metrics, t *RefinedThresholds, _ Phase) (*Candidate, GateRecord) {
	ksOK := m.KingSafetyGain >= t.KingSafety
	evalOK := m.EvalDropCP <= t.EvalDrop

	rec := GateRecord{
		Subtype: SubtypeSimplification,
		Passed:  ksOK && evalOK,
		Checks: map[string]bool{
			"king_safety_check": ksOK,
			"eval_check":        evalOK,
		},
		Observed: map[string]float64{
			"king_safety_gain": m.KingSafetyGain,
			"eval_drop":        m.EvalDropCP,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	conf := math.Min(1.0, 0.5+(m.KingSafetyGain/0.3)*0.4)
	return &Candidate{
		Name:  SubtypeSimplification,
		Score: conf,
		Why:   fmt.Sprintf("traded down into safety (ks +%.2f)", m.KingSafetyGain),
		Evidence: map[string]float64{
			"king_safety_gain": m.KingSafetyGain,
			"eval_drop":        m.EvalDropCP,
		},
		Gate: rec,
	}, rec
}
