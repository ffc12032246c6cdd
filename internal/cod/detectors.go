package cod

import (
	"fmt"
	"math"
)

// legacyDetector binds a subtype to its threshold predicate. The table order
// below is the priority order used when several detectors fire on the same
// move; it must stay aligned with the Subtype declaration order.
type legacyDetector struct {
	name Subtype
	fn   func(m *Metrics, t *LegacyThresholds, phase Phase) (*Candidate, GateRecord)
}

var legacyDetectors = [...]legacyDetector{
	{SubtypeSimplify, detectSimplify},
	{SubtypePlanKill, detectPlanKill},
	{SubtypeFreezeBind, detectFreezeBind},
	{SubtypeBlockadePassed, detectBlockadePassed},
	{SubtypeFileSeal, detectFileSeal},
	{SubtypeKingSafetyShell, detectKingSafetyShell},
	{SubtypeSpaceClamp, detectSpaceClamp},
	{SubtypeRegroupConsolidate, detectRegroupConsolidate},
	{SubtypeSlowdown, detectSlowdown},
}

// detectSimplify looks for a deliberate exchange transaction that drains
// volatility without losing material. The tension bar is the flat decrease
// minimum, not the phase-scaled one: an exchange is allowed to keep tension
// level as long as it does not raise it.
func detectSimplify(m *Metrics, t *LegacyThresholds, phase Phase) (*Candidate, GateRecord) {
	volBonus, _ := t.strictBonuses(m, phase)
	volThr := t.VolatilityDropCP + volBonus
	mobThr := t.OppMobilityDrop

	// A capture into a defended square with no follow-up shot implies one
	// recapture still to come; count it toward the exchange transaction.
	expectedRecapture := 0
	if m.IsCapture && m.SquareDefendedByOpp >= 1 && !m.HasTacticalFollowup {
		expectedRecapture = 1
	}
	pairs := m.CapturesThisPly + expectedRecapture
	if pairs > 2 {
		pairs = 2
	}

	transactionOK := pairs >= 1 || m.ExchangeCount >= 1 || m.totalActiveDrop() >= 1
	if m.StrictMode {
		minExchange := t.SimplifyMinExchange
		if minExchange < 2 {
			minExchange = 2
		}
		if pairs < minExchange && m.ExchangeCount < 1 {
			transactionOK = false
		}
	}

	envOK := m.VolatilityDropCP >= volThr &&
		m.TensionDelta <= t.TensionDecMin &&
		m.OppMobilityDrop >= mobThr*0.8

	// An expected recapture temporarily shows as won material; widen the
	// neutrality window to the captured piece's value.
	window := 30.0
	if expectedRecapture == 1 {
		window = math.Max(30, math.Round(m.CapturedValueCP*1.1))
	}
	materialOK := math.Abs(m.materialDeltaCP()) <= window

	rec := GateRecord{
		Subtype: SubtypeSimplify,
		Passed:  transactionOK && envOK && materialOK,
		Checks: map[string]bool{
			"transaction_ok": transactionOK,
			"env_ok":         envOK,
			"material_ok":    materialOK,
		},
		Observed: map[string]float64{
			"volatility_drop_cp": m.VolatilityDropCP,
			"opp_mobility_drop":  m.OppMobilityDrop,
			"tension_delta":      m.TensionDelta,
			"exchange_pairs":     float64(pairs),
			"material_delta_cp":  m.materialDeltaCP(),
			"material_window_cp": window,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	score := m.VolatilityDropCP + math.Max(0, m.OppMobilityDrop)*10 + float64(pairs)*40 - math.Abs(m.TensionDelta)*2
	return &Candidate{
		Name:  SubtypeSimplify,
		Score: score,
		Why:   fmt.Sprintf("simplify via exchange (pairs=%d), vol=%.1fcp, tension=%+.1f", pairs, m.VolatilityDropCP, m.TensionDelta),
		Evidence: map[string]float64{
			"volatility_drop_cp": m.VolatilityDropCP,
			"opp_mobility_drop":  m.OppMobilityDrop,
			"tension_delta":      m.TensionDelta,
			"exchange_pairs":     float64(pairs),
			"material_delta_cp":  m.materialDeltaCP(),
		},
		Gate: rec,
	}, rec
}

// detectPlanKill fires when the move removed the opponent's active plan,
// either because the upstream pass flagged an outright plan drop or because
// a preventive squeeze is backed by at least one dynamism signal.
func detectPlanKill(m *Metrics, t *LegacyThresholds, _ Phase) (*Candidate, GateRecord) {
	preventivePath := m.AllowPositional &&
		m.PreventiveScore >= t.PreventiveTrigger &&
		(m.ThreatDelta >= t.ThreatDropMin ||
			m.OppMobilityDrop >= t.OppMobilityDrop ||
			m.VolatilityDropCP >= t.VolatilityDropCP*0.75)

	rec := GateRecord{
		Subtype: SubtypePlanKill,
		Passed:  m.PlanDrop || preventivePath,
		Checks: map[string]bool{
			"plan_drop":       m.PlanDrop,
			"preventive_path": preventivePath,
		},
		Observed: map[string]float64{
			"preventive_score":   m.PreventiveScore,
			"threat_delta":       m.ThreatDelta,
			"opp_mobility_drop":  m.OppMobilityDrop,
			"volatility_drop_cp": m.VolatilityDropCP,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	source := "preventive squeeze"
	if m.PlanDrop {
		source = "plan drop"
	}
	score := m.PreventiveScore*120 + math.Max(m.OppMobilityDrop, 0)*20
	if m.PlanDrop {
		score += 10
	}
	return &Candidate{
		Name:  SubtypePlanKill,
		Score: score,
		Why:   fmt.Sprintf("killed the opponent's plan (%s), preventive=%.2f", source, m.PreventiveScore),
		Evidence: map[string]float64{
			"preventive_score":  m.PreventiveScore,
			"threat_delta":      m.ThreatDelta,
			"opp_mobility_drop": m.OppMobilityDrop,
		},
		Gate: rec,
	}, rec
}

// detectFreezeBind looks for a structural clamp: the mover's structure
// improved while the opponent's evaluated mobility sank, with tension held
// clearly below the phase bar.
func detectFreezeBind(m *Metrics, t *LegacyThresholds, phase Phase) (*Candidate, GateRecord) {
	tensionThr := t.TensionThreshold(phase) - 0.2
	structureOK := m.StructureGain >= 0.18
	mobilityOK := m.OppMobilityChangeEval <= -0.18
	tensionOK := m.TensionDelta <= tensionThr

	rec := GateRecord{
		Subtype: SubtypeFreezeBind,
		Passed:  m.AllowPositional && structureOK && mobilityOK && tensionOK,
		Checks: map[string]bool{
			"allow_positional": m.AllowPositional,
			"structure_ok":     structureOK,
			"opp_mobility_ok":  mobilityOK,
			"tension_ok":       tensionOK,
		},
		Observed: map[string]float64{
			"structure_gain":           m.StructureGain,
			"opp_mobility_change_eval": m.OppMobilityChangeEval,
			"tension_delta":            m.TensionDelta,
			"tension_threshold":        tensionThr,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	return &Candidate{
		Name:  SubtypeFreezeBind,
		Score: m.StructureGain*80 + math.Abs(m.OppMobilityChangeEval)*60,
		Why:   fmt.Sprintf("froze the position (structure +%.2f, opp mobility %.2f)", m.StructureGain, m.OppMobilityChangeEval),
		Evidence: map[string]float64{
			"structure_gain":           m.StructureGain,
			"opp_mobility_change_eval": m.OppMobilityChangeEval,
			"tension_delta":            m.TensionDelta,
		},
		Gate: rec,
	}, rec
}

// detectBlockadePassed requires an established blockade that measurably cut
// the passed pawn's pushability.
func detectBlockadePassed(m *Metrics, t *LegacyThresholds, _ Phase) (*Candidate, GateRecord) {
	pushMin := math.Max(1.0, t.PassedPushMin)
	pushOK := m.OppPassedPushDrop >= pushMin

	rec := GateRecord{
		Subtype: SubtypeBlockadePassed,
		Passed:  m.OppPassedExists && m.BlockadeEstablished && pushOK,
		Checks: map[string]bool{
			"opp_passed_exists":    m.OppPassedExists,
			"blockade_established": m.BlockadeEstablished,
			"push_drop_ok":         pushOK,
		},
		Observed: map[string]float64{
			"opp_passed_push_drop": m.OppPassedPushDrop,
			"push_min":             pushMin,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	file := m.BlockadeFile
	if file == "" {
		file = "?"
	}
	return &Candidate{
		Name:  SubtypeBlockadePassed,
		Score: m.OppPassedPushDrop * 50,
		Why:   fmt.Sprintf("blockaded the passed pawn on the %s-file (push -%.1f)", file, m.OppPassedPushDrop),
		Evidence: map[string]float64{
			"opp_passed_push_drop": m.OppPassedPushDrop,
		},
		Gate: rec,
	}, rec
}

// detectFileSeal fires when open-line pressure against the mover dropped, or
// pawn-break candidates disappeared, alongside a real volatility drop.
func detectFileSeal(m *Metrics, t *LegacyThresholds, _ Phase) (*Candidate, GateRecord) {
	lineOK := m.OppLinePressureDrop >= t.LineMin || m.BreakCandidatesDelta <= -1.0
	volOK := m.VolatilityDropCP >= t.VolatilityDropCP*0.5

	rec := GateRecord{
		Subtype: SubtypeFileSeal,
		Passed:  lineOK && volOK,
		Checks: map[string]bool{
			"line_ok":       lineOK,
			"volatility_ok": volOK,
		},
		Observed: map[string]float64{
			"opp_line_pressure_drop": m.OppLinePressureDrop,
			"break_candidates_delta": m.BreakCandidatesDelta,
			"volatility_drop_cp":     m.VolatilityDropCP,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	return &Candidate{
		Name:  SubtypeFileSeal,
		Score: m.OppLinePressureDrop*40 + math.Abs(math.Min(m.BreakCandidatesDelta, 0))*30,
		Why:   fmt.Sprintf("sealed lines and breaks (pressure -%.1f, breaks %+.1f)", m.OppLinePressureDrop, m.BreakCandidatesDelta),
		Evidence: map[string]float64{
			"opp_line_pressure_drop": m.OppLinePressureDrop,
			"break_candidates_delta": m.BreakCandidatesDelta,
			"volatility_drop_cp":     m.VolatilityDropCP,
		},
		Gate: rec,
	}, rec
}

// detectKingSafetyShell is deliberately not gated on allow-positional:
// rebuilding the shell matters even in sharp positions. The king-safety bar
// is configured in centipawns and compared on the normalised scale.
func detectKingSafetyShell(m *Metrics, t *LegacyThresholds, _ Phase) (*Candidate, GateRecord) {
	ksThr := t.KingSafetyMinCP / 100
	ksOK := m.KingSafetyGain >= ksThr
	calmOK := m.OppTacticsChangeEval <= -0.1 ||
		m.OppMobilityDrop >= t.OppMobilityDrop ||
		(m.OppTacticsChangeEval <= 0 && m.SelfMobilityChange >= -0.1)

	rec := GateRecord{
		Subtype: SubtypeKingSafetyShell,
		Passed:  ksOK && calmOK,
		Checks: map[string]bool{
			"king_safety_ok": ksOK,
			"calm_ok":        calmOK,
		},
		Observed: map[string]float64{
			"king_safety_gain":        m.KingSafetyGain,
			"king_safety_thresh":      ksThr,
			"opp_tactics_change_eval": m.OppTacticsChangeEval,
			"self_mobility_change":    m.SelfMobilityChange,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	return &Candidate{
		Name:  SubtypeKingSafetyShell,
		Score: m.KingSafetyGain*100 + math.Abs(math.Min(m.OppTacticsChangeEval, 0))*40,
		Why:   fmt.Sprintf("reinforced the king shell (+%.2f), opp tactics %.2f", m.KingSafetyGain, m.OppTacticsChangeEval),
		Evidence: map[string]float64{
			"king_safety_gain":        m.KingSafetyGain,
			"opp_tactics_change_eval": m.OppTacticsChangeEval,
		},
		Gate: rec,
	}, rec
}

// detectSpaceClamp needs a space gain on the normalised scale plus a real
// mobility squeeze, with tension flat or falling.
func detectSpaceClamp(m *Metrics, t *LegacyThresholds, _ Phase) (*Candidate, GateRecord) {
	spaceThr := t.SpaceMinTenths / 10
	spaceOK := m.SpaceGain >= spaceThr
	mobilityOK := m.OppMobilityDrop >= t.OppMobilityDrop*0.6
	tensionOK := m.TensionDelta <= 0

	rec := GateRecord{
		Subtype: SubtypeSpaceClamp,
		Passed:  m.AllowPositional && spaceOK && mobilityOK && tensionOK,
		Checks: map[string]bool{
			"allow_positional": m.AllowPositional,
			"space_ok":         spaceOK,
			"mobility_ok":      mobilityOK,
			"tension_ok":       tensionOK,
		},
		Observed: map[string]float64{
			"space_gain":        m.SpaceGain,
			"space_thresh":      spaceThr,
			"opp_mobility_drop": m.OppMobilityDrop,
			"tension_delta":     m.TensionDelta,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	return &Candidate{
		Name:  SubtypeSpaceClamp,
		Score: m.SpaceGain*90 + m.OppMobilityDrop*10,
		Why:   fmt.Sprintf("clamped down on space (+%.2f, opp mobility -%.1f)", m.SpaceGain, m.OppMobilityDrop),
		Evidence: map[string]float64{
			"space_gain":        m.SpaceGain,
			"opp_mobility_drop": m.OppMobilityDrop,
			"tension_delta":     m.TensionDelta,
		},
		Gate: rec,
	}, rec
}

// detectRegroupConsolidate catches quiet repositioning: volatility drained
// while the mover's own mobility stayed flat and something defensive grew.
func detectRegroupConsolidate(m *Metrics, t *LegacyThresholds, _ Phase) (*Candidate, GateRecord) {
	volOK := m.VolatilityDropCP >= t.VolatilityDropCP*0.6
	selfFlat := m.SelfMobilityChange <= 0.05
	gainOK := m.KingSafetyGain >= 0.05 || m.StructureGain >= 0.1

	rec := GateRecord{
		Subtype: SubtypeRegroupConsolidate,
		Passed:  m.AllowPositional && volOK && selfFlat && gainOK,
		Checks: map[string]bool{
			"allow_positional": m.AllowPositional,
			"volatility_ok":    volOK,
			"self_flat":        selfFlat,
			"gain_ok":          gainOK,
		},
		Observed: map[string]float64{
			"volatility_drop_cp":   m.VolatilityDropCP,
			"self_mobility_change": m.SelfMobilityChange,
			"king_safety_gain":     m.KingSafetyGain,
			"structure_gain":       m.StructureGain,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	return &Candidate{
		Name:  SubtypeRegroupConsolidate,
		Score: m.VolatilityDropCP + m.KingSafetyGain*80 + m.StructureGain*60,
		Why:   fmt.Sprintf("regrouped and consolidated (vol -%.0fcp, ks +%.2f)", m.VolatilityDropCP, m.KingSafetyGain),
		Evidence: map[string]float64{
			"volatility_drop_cp":   m.VolatilityDropCP,
			"king_safety_gain":     m.KingSafetyGain,
			"structure_gain":       m.StructureGain,
			"self_mobility_change": m.SelfMobilityChange,
		},
		Gate: rec,
	}, rec
}

// detectSlowdown is the choose-quiet-over-sharp detector: a positional move
// was played while a sound dynamic alternative existed, and the position
// actually cooled. Outside allow-positional mode it contributes nothing,
// not even a gate record.
func detectSlowdown(m *Metrics, t *LegacyThresholds, phase Phase) (*Candidate, GateRecord) {
	if !m.AllowPositional {
		return nil, GateRecord{}
	}

	volBonus, mobBonus := t.strictBonuses(m, phase)
	volThr := t.VolatilityDropCP + volBonus
	mobThr := t.OppMobilityDrop + mobBonus
	tensionThr := t.TensionThreshold(phase)

	choiceOK := m.HasDynamicAlternative && m.PlayedKind == KindPositional
	evalOK := m.EvalDropCP <= t.EvalDropCP
	volOK := m.VolatilityDropCP >= volThr
	tensionOK := m.TensionDelta <= tensionThr
	mobilityOK := m.OppMobilityDrop >= mobThr

	rec := GateRecord{
		Subtype: SubtypeSlowdown,
		Passed:  choiceOK && evalOK && volOK && tensionOK && mobilityOK,
		Checks: map[string]bool{
			"choice_ok":   choiceOK,
			"eval_ok":     evalOK,
			"vol_ok":      volOK,
			"tension_ok":  tensionOK,
			"mobility_ok": mobilityOK,
		},
		Observed: map[string]float64{
			"eval_drop_cp":       m.EvalDropCP,
			"volatility_drop_cp": m.VolatilityDropCP,
			"vol_thresh":         volThr,
			"tension_delta":      m.TensionDelta,
			"tension_threshold":  tensionThr,
			"opp_mobility_drop":  m.OppMobilityDrop,
			"mobility_thresh":    mobThr,
		},
	}
	if !rec.Passed {
		return nil, rec
	}

	return &Candidate{
		Name:  SubtypeSlowdown,
		Score: m.VolatilityDropCP + m.OppMobilityDrop*5,
		Why:   fmt.Sprintf("slowed the game down (vol -%.0fcp, opp mobility -%.1f)", m.VolatilityDropCP, m.OppMobilityDrop),
		Evidence: map[string]float64{
			"volatility_drop_cp": m.VolatilityDropCP,
			"opp_mobility_drop":  m.OppMobilityDrop,
			"eval_drop_cp":       m.EvalDropCP,
		},
		Gate: rec,
	}, rec
}
