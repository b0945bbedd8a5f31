// internal/grid/store.go
//
// In-memory grid state: the fixed-length cell array and the append-only
// placement history.
//
// Characteristics:
//   - Cells are write-once: empty → value at most once, never changed after.
//   - History is append-only and kept in commit order.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Reads return copies, so callers never observe a later mutation.
//   - State is lost when the process restarts.

package grid

import (
	"errors"
	"sync"
)

var (
	// ErrOutOfRange is returned when an index falls outside [0, Len()).
	ErrOutOfRange = errors.New("cell index out of range")
	// ErrAlreadyFilled is returned when a cell already holds a value.
	ErrAlreadyFilled = errors.New("cell already filled")
	// ErrEmptyValue is returned when filling a cell with an empty string.
	ErrEmptyValue = errors.New("empty cell value")
)

// Store owns the cells and history of one board.
type Store struct {
	mu      sync.RWMutex      // guards cells and history
	cells   []Cell            // fixed length, set at construction
	history []PlacementRecord // append-only
}

// NewStore constructs an empty board with size cells.
// A non-positive size falls back to DefaultSize.
func NewStore(size int) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	return &Store{cells: make([]Cell, size), history: []PlacementRecord{}}
}

// Len returns the fixed number of cells.
func (s *Store) Len() int { return len(s.cells) }

// Get returns a consistent copy of cells and history.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Cells: s.copyCells(), History: s.copyHistory()}
}

// Cells returns a copy of the cell array.
func (s *Store) Cells() []Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyCells()
}

// History returns a copy of the placement history in commit order.
func (s *Store) History() []PlacementRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyHistory()
}

// IsFilled reports whether the cell at index holds a value.
// Out-of-range indexes report false.
func (s *Store) IsFilled(index int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.cells) {
		return false
	}
	return s.cells[index].Filled()
}

// TryFill sets the cell at index only if it is currently empty.
// It does not touch history; the caller appends the matching record.
func (s *Store) TryFill(index int, value string) error {
	if value == "" {
		return ErrEmptyValue
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.cells) {
		return ErrOutOfRange
	}
	if s.cells[index].Filled() {
		return ErrAlreadyFilled
	}
	s.cells[index] = Cell{Value: value}
	return nil
}

// AppendHistory appends rec and returns its zero-based position.
func (s *Store) AppendHistory(rec PlacementRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rec)
	return len(s.history) - 1
}

// Commit fills rec.CellIndex with rec.Char and appends rec to history as one
// step, so readers never see the cell without its record. It returns the
// record's position in history.
func (s *Store) Commit(rec PlacementRecord) (int, error) {
	if rec.Char == "" {
		return -1, ErrEmptyValue
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CellIndex < 0 || rec.CellIndex >= len(s.cells) {
		return -1, ErrOutOfRange
	}
	if s.cells[rec.CellIndex].Filled() {
		return -1, ErrAlreadyFilled
	}
	s.cells[rec.CellIndex] = Cell{Value: rec.Char}
	s.history = append(s.history, rec)
	return len(s.history) - 1, nil
}

func (s *Store) copyCells() []Cell {
	out := make([]Cell, len(s.cells))
	copy(out, s.cells)
	return out
}

func (s *Store) copyHistory() []PlacementRecord {
	out := make([]PlacementRecord, len(s.history))
	copy(out, s.history)
	return out
}
