// internal/grid/types.go
//
// Core type definitions for the shared grid.
// Defines:
//   - Cell: one write-once slot (empty or holding a short string).
//   - PlacementRecord: one committed write, as appended to history.
//   - Snapshot: cells + history handed to newly joined observers.

package grid

import "encoding/json"

// DefaultSize is the number of cells on a board unless configured otherwise.
const DefaultSize = 100

// Cell is a single grid slot. The zero value is empty.
// Empty cells encode to JSON null; filled cells encode to their string.
type Cell struct {
	Value string
}

// Filled reports whether the cell holds a value.
func (c Cell) Filled() bool { return c.Value != "" }

func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.Filled() {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

func (c *Cell) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		c.Value = ""
		return nil
	}
	return json.Unmarshal(b, &c.Value)
}

// PlacementRecord is one successful placement.
// Timestamp is wall-clock milliseconds assigned by the server at commit.
type PlacementRecord struct {
	Timestamp     int64  `json:"timestamp"`
	ParticipantID string `json:"participantId"`
	CellIndex     int    `json:"cellIndex"`
	Char          string `json:"char"`
}

// Snapshot is a point-in-time copy of the board.
type Snapshot struct {
	Cells   []Cell            `json:"cells"`
	History []PlacementRecord `json:"history"`
}
