package cod

// LegacyEngine is the nine-subtype classifier. Every step is deterministic:
// same metrics plus same cooldown state always yields the same result and
// successor state, which is what makes batch replays byte-stable.
type LegacyEngine struct {
	t LegacyThresholds
}

func NewLegacyEngine(t Thresholds) *LegacyEngine {
	return &LegacyEngine{t: t.Legacy}
}

func (e *LegacyEngine) Variant() Variant { return VariantLegacy }

// Classify runs the family gate, all nine detectors, cooldown filtering,
// priority selection, and the confirmation gate, in that order. The cooldown
// state only advances when a winner survives confirmation.
func (e *LegacyEngine) Classify(m Metrics, state CooldownState) (Result, CooldownState) {
	phase := m.phase()
	res := Result{
		Variant:           VariantLegacy,
		Phase:             phase,
		GateLog:           map[string]GateRecord{},
		GatesPassed:       map[string]bool{},
		CooldownRemaining: state.Remaining(m.Ply, e.t.CooldownPlies),
	}

	ok, failed := familyGate(&m, e.t.TacticalWeightCeiling, e.t.BlunderThreatCP, e.t.MateThreatGate)
	if !ok {
		res.GatesPassed["tactical_gate"] = false
		res.FailedGates = failed
		return res, state
	}
	res.GatesPassed["tactical_gate"] = true

	for _, d := range legacyDetectors {
		cand, rec := d.fn(&m, &e.t, phase)
		if rec.Subtype != SubtypeNone {
			res.GateLog[rec.Subtype.String()] = rec
		}
		if cand != nil {
			res.Candidates = append(res.Candidates, *cand)
		}
	}

	// Cooldown removes only repeats of the last emitted subtype; a
	// different subtype may still win inside the window.
	pool := res.Candidates
	var removed []Subtype
	if state.inWindow(m.Ply, e.t.CooldownPlies) {
		pool = nil
		for _, c := range res.Candidates {
			if c.Name == state.LastSubtype {
				removed = append(removed, c.Name)
				continue
			}
			pool = append(pool, c)
		}
	}

	if len(pool) == 0 {
		for _, name := range removed {
			res.suppress(name)
		}
		return res, state
	}

	// Detectors ran in priority order and scores only break ties between
	// distinct runs of the same subtype, which cannot happen within one
	// move, so the pool is already sorted.
	winner := pool[0]
	for _, c := range pool[1:] {
		res.suppress(c.Name)
	}
	for _, name := range removed {
		res.suppress(name)
	}

	if confirmed, rec := confirmControlSignal(&m, winner.Name); !confirmed {
		res.GateLog["control_signal"] = rec
		res.suppress(winner.Name)
		return res, state
	}

	res.Selected = &winner
	res.Tags = tagsFor(winner.Name)
	return res, state.advanced(winner.Name, m.Ply)
}

// confirmControlSignal is the post-selection veto: the move must not have
// cost real evaluation, and either the opponent's follow-up mobility trend
// or the tension picture must back the control claim. It is only consulted
// when a winner exists, and its record is only logged on a veto.
func confirmControlSignal(m *Metrics, winner Subtype) (bool, GateRecord) {
	trend := 0.0
	for _, v := range m.FollowupOppMobility {
		trend += v
	}
	if n := len(m.FollowupOppMobility); n > 0 {
		trend /= float64(n)
	}

	futureSignal := (len(m.FollowupOppMobility) > 0 && trend <= 0.0) ||
		m.OppMobilityDrop >= 0.1 ||
		m.TensionDelta <= 0.0
	evalOK := m.EvalDelta >= -0.2
	tensionActive := m.TensionSupport

	rec := GateRecord{
		Subtype: winner,
		Passed:  evalOK && (futureSignal || tensionActive),
		Checks: map[string]bool{
			"eval_ok":                evalOK,
			"future_mobility_signal": futureSignal,
			"tension_active":         tensionActive,
		},
		Observed: map[string]float64{
			"delta_eval":        m.EvalDelta,
			"opp_trend":         trend,
			"opp_mobility_drop": m.OppMobilityDrop,
			"tension_delta":     m.TensionDelta,
		},
	}
	return rec.Passed, rec
}
