package cod

// Metrics is the full per-move measurement snapshot an Engine classifies.
// Every field is optional on the wire: absent numbers decode to zero, absent
// booleans to false, and the engines treat those zeros as "signal not
// present". Positive values mean the signal moved in the mover's favour
// (opponent volatility dropped, opponent mobility dropped, own king safety
// grew), so a zero never accidentally satisfies a >= threshold check.
type Metrics struct {
	// Position of the move inside the game.
	Ply        int     `json:"ply"`
	Phase      Phase   `json:"phase,omitempty"`
	PhaseRatio float64 `json:"phase_ratio,omitempty"`

	// Family-gate inputs.
	TacticalWeight    float64 `json:"tactical_weight"`
	MateThreat        bool    `json:"mate_threat,omitempty"`
	BlunderThreatDrop float64 `json:"blunder_threat_drop,omitempty"`

	// Mode flags supplied by the upstream analysis pass.
	AllowPositional bool `json:"allow_positional,omitempty"`
	StrictMode      bool `json:"strict_mode,omitempty"`

	// Evaluation movement for the played move.
	EvalDropCP float64 `json:"eval_drop_cp,omitempty"`
	EvalDelta  float64 `json:"eval_delta,omitempty"`

	// Dynamism and mobility deltas.
	VolatilityDropCP      float64 `json:"volatility_drop_cp,omitempty"`
	OppMobilityDrop       float64 `json:"opp_mobility_drop,omitempty"`
	OppMobilityChangeEval float64 `json:"opp_mobility_change_eval,omitempty"`
	SelfMobilityChange    float64 `json:"self_mobility_change,omitempty"`
	OppTacticsChangeEval  float64 `json:"opp_tactics_change_eval,omitempty"`

	// Pawn-tension movement. TensionSupport reports whether the tension
	// network still backs the mover's structure after the move.
	TensionDelta   float64 `json:"tension_delta,omitempty"`
	TensionSupport bool    `json:"tension_support,omitempty"`

	// Positional gains.
	KingSafetyGain float64 `json:"king_safety_gain,omitempty"`
	StructureGain  float64 `json:"structure_gain,omitempty"`
	SpaceGain      float64 `json:"space_gain,omitempty"`

	// Prophylaxis signals.
	PreventiveScore float64 `json:"preventive_score,omitempty"`
	ThreatDelta     float64 `json:"threat_delta,omitempty"`
	PlanDrop        bool    `json:"plan_drop,omitempty"`

	// Line-pressure and break-count movement.
	OppLinePressureDrop  float64 `json:"opp_line_pressure_drop,omitempty"`
	BreakCandidatesDelta float64 `json:"break_candidates_delta,omitempty"`

	// Passed-pawn blockade signals.
	OppPassedExists     bool    `json:"opp_passed_exists,omitempty"`
	BlockadeEstablished bool    `json:"blockade_established,omitempty"`
	OppPassedPushDrop   float64 `json:"opp_passed_push_drop,omitempty"`
	BlockadeFile        string  `json:"blockade_file,omitempty"`

	// Exchange accounting for the simplify detector.
	IsCapture           bool    `json:"is_capture,omitempty"`
	CapturesThisPly     int     `json:"captures_this_ply,omitempty"`
	SquareDefendedByOpp int     `json:"square_defended_by_opp,omitempty"`
	HasTacticalFollowup bool    `json:"has_immediate_tactical_followup,omitempty"`
	ExchangeCount       int     `json:"exchange_count,omitempty"`
	OwnActiveDrop       int     `json:"own_active_drop,omitempty"`
	OppActiveDrop       int     `json:"opp_active_drop,omitempty"`
	TotalActiveDrop     int     `json:"total_active_drop,omitempty"`
	MaterialDeltaCP     float64 `json:"material_delta_self_cp,omitempty"`
	MaterialDeltaPawns  float64 `json:"material_delta_self,omitempty"`
	CapturedValueCP     float64 `json:"captured_value_cp,omitempty"`

	// Alternative-move context for the slowdown detector.
	HasDynamicAlternative bool     `json:"has_dynamic_in_band,omitempty"`
	PlayedKind            MoveKind `json:"played_kind,omitempty"`

	// Opponent mobility over the plies after this move, oldest first. Used
	// only by the confirmation gate.
	FollowupOppMobility []float64 `json:"followup_opp_mobility,omitempty"`
}

// phase resolves the effective phase bucket: an explicit label wins, then a
// material ratio, then middlegame.
func (m *Metrics) phase() Phase {
	switch m.Phase {
	case PhaseOpening, PhaseMiddlegame, PhaseEndgame:
		return m.Phase
	}
	if m.PhaseRatio > 0 {
		return PhaseFromRatio(m.PhaseRatio)
	}
	return PhaseMiddlegame
}

// totalActiveDrop prefers the precomputed total and otherwise sums the
// per-side drops, counting only pieces that actually left active duty.
func (m *Metrics) totalActiveDrop() int {
	if m.TotalActiveDrop != 0 {
		return m.TotalActiveDrop
	}
	total := 0
	if m.OwnActiveDrop > 0 {
		total += m.OwnActiveDrop
	}
	if m.OppActiveDrop > 0 {
		total += m.OppActiveDrop
	}
	return total
}

// materialDeltaCP prefers the centipawn figure and falls back to the
// pawn-unit figure scaled up.
func (m *Metrics) materialDeltaCP() float64 {
	if m.MaterialDeltaCP != 0 {
		return m.MaterialDeltaCP
	}
	return m.MaterialDeltaPawns * 100
}
