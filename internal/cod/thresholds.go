package cod

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds bundles the tunables for both engine variants. The YAML file
// uses one section per variant; any key left out keeps its default, so a
// deployment only writes the handful of knobs it actually tunes.
type Thresholds struct {
	Legacy  LegacyThresholds  `yaml:"control_over_dynamics"`
	Refined RefinedThresholds `yaml:"prophylaxis"`
}

// LegacyThresholds parameterises the nine-subtype engine. Centipawn fields
// carry the _cp suffix convention from the metrics snapshot; mobility here is
// measured in plain move-count units.
type LegacyThresholds struct {
	TacticalWeightCeiling float64 `yaml:"tactical_weight_ceiling"`
	MateThreatGate        bool    `yaml:"mate_threat_gate"`
	BlunderThreatCP       float64 `yaml:"blunder_threat_thresh"`

	EvalDropCP       float64 `yaml:"eval_drop"`
	VolatilityDropCP float64 `yaml:"volatility_drop_cp"`
	OppMobilityDrop  float64 `yaml:"opp_mobility_drop"`

	TensionDecMin       float64      `yaml:"tension_dec_min"`
	TensionDelta        float64      `yaml:"tension_delta"`
	TensionDeltaEndgame float64      `yaml:"tension_delta_endgame"`
	PhaseWeights        PhaseWeights `yaml:"phase_weights"`

	KingSafetyMinCP     float64 `yaml:"king_safety_thresh"`
	SpaceMinTenths      float64 `yaml:"space_min"`
	PassedPushMin       float64 `yaml:"passed_push_min"`
	LineMin             float64 `yaml:"line_min"`
	SimplifyMinExchange int     `yaml:"simplify_min_exchange"`

	PreventiveTrigger float64 `yaml:"preventive_trigger"`
	ThreatDropMin     float64 `yaml:"threat_drop_min"`

	CooldownPlies int `yaml:"cooldown_plies"`

	// Strict-mode bonuses raised onto the volatility and mobility bars for
	// middlegame moves when the snapshot flags strict mode.
	StrictVolatilityBonus float64 `yaml:"strict_volatility_bonus"`
	StrictMobilityBonus   float64 `yaml:"strict_mobility_bonus"`
}

// PhaseWeights scales the base tension threshold per game phase.
type PhaseWeights struct {
	Opening    float64 `yaml:"opening"`
	Middlegame float64 `yaml:"middlegame"`
	Endgame    float64 `yaml:"endgame"`
}

func (w PhaseWeights) weight(p Phase) float64 {
	switch p {
	case PhaseOpening:
		return w.Opening
	case PhaseEndgame:
		return w.Endgame
	}
	return w.Middlegame
}

// TensionThreshold returns the phase-scaled tension bar. Endgames are
// clamped to at least the dedicated endgame threshold so quiet endgame
// shuffling does not read as tension release.
func (t *LegacyThresholds) TensionThreshold(p Phase) float64 {
	base := t.TensionDelta * t.PhaseWeights.weight(p)
	if p == PhaseEndgame && base > t.TensionDeltaEndgame {
		base = t.TensionDeltaEndgame
	}
	return base
}

// strictBonuses returns the volatility and mobility bar raises for this
// snapshot. Only strict-mode middlegame moves pay the raised bars.
func (t *LegacyThresholds) strictBonuses(m *Metrics, phase Phase) (volBonus, mobBonus float64) {
	if !m.StrictMode || phase != PhaseMiddlegame {
		return 0, 0
	}
	return t.StrictVolatilityBonus, t.StrictMobilityBonus
}

// RefinedThresholds parameterises the four-subtype partial-credit engine.
// Mobility and king-safety values here are normalised fractions, not move
// counts, which is why the bars differ by an order of magnitude from the
// legacy section.
type RefinedThresholds struct {
	TacticalWeightCeiling float64 `yaml:"tactical_weight_ceiling"`
	MateThreatGate        bool    `yaml:"mate_threat_gate"`
	BlunderThreat         float64 `yaml:"blunder_threat_thresh"`

	VolatilityDropCP float64 `yaml:"volatility_drop_cp"`
	OppMobilityDrop  float64 `yaml:"opp_mobility_drop"`
	EvalDrop         float64 `yaml:"eval_drop"`
	KingSafety       float64 `yaml:"king_safety_thresh"`

	// Tension allowances are positive slack: a move qualifies as long as
	// tension did not grow past the allowance.
	TensionDeltaMid float64 `yaml:"tension_delta_mid"`
	TensionDeltaEnd float64 `yaml:"tension_delta_end"`

	PreventiveTrigger float64 `yaml:"preventive_trigger"`
	CooldownPlies     int     `yaml:"cooldown_plies"`
}

// TensionAllowance returns the tolerated tension growth for the phase.
func (t *RefinedThresholds) TensionAllowance(p Phase) float64 {
	if p == PhaseEndgame {
		return t.TensionDeltaEnd
	}
	return t.TensionDeltaMid
}

// DefaultThresholds returns the tuning both engines ship with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Legacy: LegacyThresholds{
			TacticalWeightCeiling: 0.55,
			MateThreatGate:        true,
			BlunderThreatCP:       120,
			EvalDropCP:            25,
			VolatilityDropCP:      36,
			OppMobilityDrop:       3,
			TensionDecMin:         0,
			TensionDelta:          -1.0,
			TensionDeltaEndgame:   -2.0,
			PhaseWeights:          PhaseWeights{Opening: 1.0, Middlegame: 1.0, Endgame: 1.2},
			KingSafetyMinCP:       15,
			SpaceMinTenths:        1,
			PassedPushMin:         0,
			LineMin:               2,
			SimplifyMinExchange:   2,
			PreventiveTrigger:     0.08,
			ThreatDropMin:         0.3,
			CooldownPlies:         3,
			StrictVolatilityBonus: 33.0,
			StrictMobilityBonus:   2.0,
		},
		Refined: RefinedThresholds{
			TacticalWeightCeiling: 0.65,
			MateThreatGate:        true,
			BlunderThreat:         0.8,
			VolatilityDropCP:      80,
			OppMobilityDrop:       0.15,
			EvalDrop:              0.5,
			KingSafety:            0.15,
			TensionDeltaMid:       0.3,
			TensionDeltaEnd:       0.15,
			PreventiveTrigger:     0.25,
			CooldownPlies:         4,
		},
	}
}

// LoadThresholds reads a YAML tuning file over the defaults. An empty path
// or a missing file yields the defaults unchanged.
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return t, nil
		}
		return t, fmt.Errorf("read thresholds %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse thresholds %s: %w", path, err)
	}
	if err := t.validate(); err != nil {
		return t, fmt.Errorf("thresholds %s: %w", path, err)
	}
	return t, nil
}

func (t *Thresholds) validate() error {
	if t.Legacy.CooldownPlies < 0 {
		return errors.New("control_over_dynamics.cooldown_plies must not be negative")
	}
	if t.Refined.CooldownPlies < 0 {
		return errors.New("prophylaxis.cooldown_plies must not be negative")
	}
	if t.Legacy.TacticalWeightCeiling <= 0 || t.Refined.TacticalWeightCeiling <= 0 {
		return errors.New("tactical_weight_ceiling must be positive")
	}
	return nil
}
