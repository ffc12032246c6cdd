package cod

// CooldownState carries the last confirmed emission for one game side. It is
// a plain value: engines take it by value and return the successor state, so
// callers own persistence and replays stay deterministic. The zero value
// means no emission has happened yet.
type CooldownState struct {
	LastSubtype Subtype `json:"last_subtype,omitempty"`
	LastPly     int     `json:"last_ply,omitempty"`
}

func (s CooldownState) active() bool {
	return s.LastSubtype != SubtypeNone
}

// inWindow reports whether currentPly still falls inside the suppression
// window after the last emission.
func (s CooldownState) inWindow(currentPly, windowPlies int) bool {
	return s.active() && currentPly-s.LastPly <= windowPlies
}

// Remaining returns how many plies of suppression are left at currentPly,
// zero once the window has lapsed. The last in-window ply reports zero while
// still suppressing; that boundary quirk is load-bearing for replay parity.
func (s CooldownState) Remaining(currentPly, windowPlies int) int {
	if !s.inWindow(currentPly, windowPlies) {
		return 0
	}
	left := windowPlies - (currentPly - s.LastPly)
	if left < 0 {
		return 0
	}
	return left
}

// advanced returns the state after a confirmed emission at ply.
func (s CooldownState) advanced(kind Subtype, ply int) CooldownState {
	return CooldownState{LastSubtype: kind, LastPly: ply}
}
