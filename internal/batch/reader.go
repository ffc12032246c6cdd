package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ply-labs/karpov/internal/cod"
)

// MoveRecord is one line of an exported game analysis file: the move's
// identity plus its full metrics snapshot.
type MoveRecord struct {
	GameID  string      `json:"game_id"`
	Side    string      `json:"side"`
	San     string      `json:"san,omitempty"`
	Metrics cod.Metrics `json:"metrics"`
}

// ReadGameFile parses a JSONL export. Lines that fail to parse or carry no
// usable ply are counted and skipped rather than aborting the file. Records
// without a game_id inherit one derived from the file name.
func ReadGameFile(path string) ([]MoveRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fallbackID := gameIDFromPath(path)

	var records []MoveRecord
	skipped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec MoveRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped++
			continue
		}
		if rec.Metrics.Ply <= 0 {
			skipped++
			continue
		}
		if rec.Side != "white" && rec.Side != "black" {
			skipped++
			continue
		}
		if rec.GameID == "" {
			rec.GameID = fallbackID
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scan %s: %w", path, err)
	}

	return records, skipped, nil
}

// gameIDFromPath derives a stable game id from the file name, without the
// .jsonl suffix.
func gameIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
