package cod

// GateRecord is the audit trail of one threshold evaluation: which boolean
// checks were applied and what the relevant observed values were. Records
// are emitted for failures as well as passes so a rejected move explains
// itself.
type GateRecord struct {
	Subtype  Subtype            `json:"subtype,omitempty"`
	Passed   bool               `json:"passed"`
	Checks   map[string]bool    `json:"checks,omitempty"`
	Observed map[string]float64 `json:"observed,omitempty"`
}

// Candidate is one subtype whose own gate passed, before family-level
// filtering. Score means a heuristic strength for the legacy engine and a
// confidence in [0,1] for the refined engine.
type Candidate struct {
	Name     Subtype            `json:"name"`
	Score    float64            `json:"score"`
	Why      string             `json:"why"`
	Evidence map[string]float64 `json:"evidence,omitempty"`
	Gate     GateRecord         `json:"gate"`
}

// Result is the full classification outcome for one move. At most one
// candidate is Selected; everything else that fired or was filtered is kept
// for diagnostics. Tags is empty exactly when Selected is nil.
type Result struct {
	Variant Variant `json:"variant"`
	Phase   Phase   `json:"phase"`

	Selected *Candidate `json:"selected,omitempty"`
	Tags     []string   `json:"tags,omitempty"`

	// Candidates lists every subtype that passed its own gate, in priority
	// order, before cooldown and priority filtering. Suppressed lists the
	// names that fired but did not win: priority losers first, then
	// cooldown removals, then a confirmation-vetoed winner.
	Candidates []Candidate `json:"candidates,omitempty"`
	Suppressed []Subtype   `json:"suppressed,omitempty"`

	// GateLog keys are subtype names plus the synthetic "control_signal"
	// entry written when the confirmation gate vetoes a winner.
	GateLog map[string]GateRecord `json:"gate_log,omitempty"`

	GatesPassed       map[string]bool `json:"gates_passed"`
	FailedGates       []string        `json:"failed_gates,omitempty"`
	CooldownRemaining int             `json:"cooldown_remaining"`
}

// Detected reports whether the move earned a subtype.
func (r *Result) Detected() bool {
	return r.Selected != nil
}

func (r *Result) suppress(name Subtype) {
	for _, s := range r.Suppressed {
		if s == name {
			return
		}
	}
	r.Suppressed = append(r.Suppressed, name)
}

func tagsFor(name Subtype) []string {
	return []string{TagControlOverDynamics, name.Tag()}
}
