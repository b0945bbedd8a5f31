package grid

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

func TestNewStoreDefaultsSize(t *testing.T) {
	if got := NewStore(0).Len(); got != DefaultSize {
		t.Fatalf("expected default size %d, got %d", DefaultSize, got)
	}
	if got := NewStore(7).Len(); got != 7 {
		t.Fatalf("expected size 7, got %d", got)
	}
}

func TestTryFillIsWriteOnce(t *testing.T) {
	s := NewStore(10)
	if err := s.TryFill(3, "x"); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if err := s.TryFill(3, "y"); !errors.Is(err, ErrAlreadyFilled) {
		t.Fatalf("expected ErrAlreadyFilled, got %v", err)
	}
	if got := s.Cells()[3].Value; got != "x" {
		t.Fatalf("cell changed after second fill: %q", got)
	}
}

func TestTryFillRejectsBadInput(t *testing.T) {
	s := NewStore(10)
	cases := []struct {
		name  string
		index int
		value string
		want  error
	}{
		{"negative", -1, "x", ErrOutOfRange},
		{"past end", 10, "x", ErrOutOfRange},
		{"empty value", 2, "", ErrEmptyValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.TryFill(tc.index, tc.value); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	for i, c := range s.Cells() {
		if c.Filled() {
			t.Fatalf("cell %d filled after rejected writes", i)
		}
	}
}

func TestGetReturnsCopies(t *testing.T) {
	s := NewStore(4)
	_ = s.TryFill(0, "a")
	s.AppendHistory(PlacementRecord{Timestamp: 1, ParticipantID: "p1", CellIndex: 0, Char: "a"})

	snap := s.Get()
	snap.Cells[1] = Cell{Value: "zz"}
	snap.History[0].Char = "zz"

	again := s.Get()
	if again.Cells[1].Filled() {
		t.Fatalf("snapshot mutation leaked into store cells")
	}
	if again.History[0].Char != "a" {
		t.Fatalf("snapshot mutation leaked into store history")
	}
}

func TestAppendHistoryKeepsOrder(t *testing.T) {
	s := NewStore(4)
	for i := 0; i < 4; i++ {
		if pos := s.AppendHistory(PlacementRecord{CellIndex: i}); pos != i {
			t.Fatalf("expected position %d, got %d", i, pos)
		}
	}
	for i, rec := range s.History() {
		if rec.CellIndex != i {
			t.Fatalf("history out of order at %d: %+v", i, rec)
		}
	}
}

func TestConcurrentFillSameCell(t *testing.T) {
	s := NewStore(1)
	const n = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.TryFill(0, "x"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestCellJSON(t *testing.T) {
	b, err := json.Marshal([]Cell{{}, {Value: "x"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `[null,"x"]` {
		t.Fatalf("unexpected encoding: %s", b)
	}
	var back []Cell
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[0].Filled() || back[1].Value != "x" {
		t.Fatalf("unexpected decode: %+v", back)
	}
}

func TestCommitFillsAndAppends(t *testing.T) {
	s := NewStore(3)
	rec := PlacementRecord{Timestamp: 5, ParticipantID: "p1", CellIndex: 2, Char: "q"}
	seq, err := s.Commit(rec)
	if err != nil || seq != 0 {
		t.Fatalf("commit: seq=%d err=%v", seq, err)
	}
	if _, err := s.Commit(PlacementRecord{CellIndex: 2, Char: "r"}); !errors.Is(err, ErrAlreadyFilled) {
		t.Fatalf("expected ErrAlreadyFilled, got %v", err)
	}
	snap := s.Get()
	if snap.Cells[2].Value != "q" || len(snap.History) != 1 || snap.History[0] != rec {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
