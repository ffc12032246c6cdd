package report

// ThemeMapper maps control-over-dynamics subtypes to the study themes a
// training plan can be built from.
type ThemeMapper struct {
	mapping map[string][]string
}

// NewThemeMapper creates a mapper with the built-in subtype-to-theme table.
func NewThemeMapper() *ThemeMapper {
	return &ThemeMapper{
		mapping: map[string][]string{
			"simplify":            {"exchange_evaluation", "endgame_technique"},
			"plan_kill":           {"prophylactic_thinking"},
			"freeze_bind":         {"pawn_structure", "restriction"},
			"blockade_passed":     {"blockade", "piece_placement"},
			"file_seal":           {"open_file_play"},
			"king_safety_shell":   {"king_safety"},
			"space_clamp":         {"space_advantage", "restriction"},
			"regroup_consolidate": {"piece_coordination"},
			"slowdown":            {"tempo_control"},
			"prophylaxis":         {"prophylactic_thinking"},
			"piece_control":       {"restriction", "piece_placement"},
			"pawn_control":        {"pawn_structure"},
			"simplification":      {"exchange_evaluation", "king_safety"},
		},
	}
}

// ThemesFor returns the study themes for a subtype name.
func (m *ThemeMapper) ThemesFor(subtype string) []string {
	themes, exists := m.mapping[subtype]
	if !exists {
		return []string{}
	}
	result := make([]string, len(themes))
	copy(result, themes)
	return result
}
