package batch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadGameFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game-77.jsonl")

	content := `{"game_id":"g1","side":"white","san":"a4","metrics":{"ply":10,"tactical_weight":0.3}}
{"game_id":"g1","side":"black","san":"a5","metrics":{"ply":11,"tactical_weight":0.2}}

this line is not json
{"game_id":"g1","side":"white","metrics":{"ply":0}}
{"game_id":"g1","side":"north","metrics":{"ply":12}}
{"side":"white","san":"b4","metrics":{"ply":14}}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	records, skipped, err := ReadGameFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skipped != 3 {
		t.Errorf("expected 3 skipped lines, got %d", skipped)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].GameID != "g1" || records[0].Metrics.Ply != 10 {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].Side != "black" {
		t.Errorf("expected black second, got %q", records[1].Side)
	}
	// The record without a game_id inherits one from the file name.
	if records[2].GameID != "game-77" {
		t.Errorf("expected fallback game id game-77, got %q", records[2].GameID)
	}
}

func TestReadGameFile_Missing(t *testing.T) {
	_, _, err := ReadGameFile(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestGameIDFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/exports/game-42.jsonl", "game-42"},
		{"relative/lichess_abc123.jsonl", "lichess_abc123"},
		{"bare.jsonl", "bare"},
		{"/exports/noext", "noext"},
	}
	for _, tt := range tests {
		if got := gameIDFromPath(tt.path); got != tt.want {
			t.Errorf("gameIDFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
