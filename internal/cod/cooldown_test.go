package cod

import "testing"

func TestCooldownState_Remaining(t *testing.T) {
	fresh := CooldownState{}
	if got := fresh.Remaining(10, 3); got != 0 {
		t.Errorf("fresh state should have no cooldown, got %d", got)
	}

	state := CooldownState{LastSubtype: SubtypeSimplify, LastPly: 10}
	cases := []struct {
		ply    int
		window int
		want   int
	}{
		{11, 3, 2},
		{12, 3, 1},
		{13, 3, 0}, // still suppressing, but nothing left after this ply
		{14, 3, 0},
		{11, 4, 3},
		{20, 4, 0},
	}
	for _, tc := range cases {
		if got := state.Remaining(tc.ply, tc.window); got != tc.want {
			t.Errorf("Remaining(%d, %d) = %d, want %d", tc.ply, tc.window, got, tc.want)
		}
	}
}

func TestCooldownState_Advanced(t *testing.T) {
	state := CooldownState{}
	next := state.advanced(SubtypePawnControl, 42)

	if next.LastSubtype != SubtypePawnControl || next.LastPly != 42 {
		t.Errorf("unexpected advanced state %+v", next)
	}
	if state != (CooldownState{}) {
		t.Errorf("advancing must not mutate the receiver")
	}
	if !next.inWindow(44, 4) {
		t.Errorf("ply 44 should be inside a 4-ply window from 42")
	}
	if next.inWindow(47, 4) {
		t.Errorf("ply 47 should be outside a 4-ply window from 42")
	}
}
