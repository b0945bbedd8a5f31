// internal/game/engine.go
//
// Authoritative coordinator for the shared grid.
// Responsibilities:
//   - Validate placement requests (index, char) before touching shared state.
//   - Enforce write-once cells, then the per-participant cooldown.
//   - Apply fill + history append + cooldown as one serialized step.
//   - Notify observers in commit order, then journal the placement.
//
// Notes:
//   - All Place calls and observer syncs run under one mutex, so every
//     mutation completes before the next begins.
//   - Failures are terminal for the request; nothing is retried here.

package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gridboard/apps/go-server/internal/grid"
	"github.com/robalobadob/gridboard/apps/go-server/internal/metrics"
	"github.com/robalobadob/gridboard/apps/go-server/internal/players"
)

// DefaultLockDuration is the cooldown after a successful placement.
const DefaultLockDuration = 60 * time.Second

// Broadcaster receives committed state changes. Calls happen while the
// coordinator holds its lock and must not block.
type Broadcaster interface {
	BroadcastUpdate(rec grid.PlacementRecord, cells []grid.Cell)
	BroadcastPresence(count int)
}

// Journal records committed placements. seq is the record's position in
// history.
type Journal interface {
	Append(ctx context.Context, seq int, rec grid.PlacementRecord) error
}

// Options configures a Service. Zero values select defaults; nil
// Broadcaster and Journal disable those sinks.
type Options struct {
	LockDuration time.Duration
	Broadcaster  Broadcaster
	Journal      Journal
}

// Service is the single writer of grid and pacing state.
type Service struct {
	mu      sync.Mutex
	grid    *grid.Store
	players *players.Registry
	lock    time.Duration
	out     Broadcaster
	journal Journal
}

// NewService wires a coordinator over the given state owners.
func NewService(g *grid.Store, r *players.Registry, opts Options) *Service {
	lock := opts.LockDuration
	if lock <= 0 {
		lock = DefaultLockDuration
	}
	return &Service{grid: g, players: r, lock: lock, out: opts.Broadcaster, journal: opts.Journal}
}

// LockDuration returns the configured cooldown.
func (s *Service) LockDuration() time.Duration { return s.lock }

// Place attempts to write char into cellIndex on behalf of participantID.
//
// Check order:
//  1. cellIndex in [0, N)          → ErrInvalidIndex
//  2. char non-empty               → ErrInvalidChar
//  3. cell currently empty         → ErrCellOccupied
//  4. participant not cooling down → ErrLocked
//
// On success the cell is filled, the record appended to history, the
// cooldown started at now, and observers notified before Place returns.
func (s *Service) Place(ctx context.Context, participantID string, cellIndex int, char string, now time.Time) Decision {
	d, seq := s.commit(participantID, cellIndex, char, now)
	metrics.RecordPlacement(d.Kind().String())

	if !d.OK {
		log.Debug().Err(d.Err).Str("participant", participantID).Int("cell", cellIndex).Msg("placement rejected")
		return d
	}
	log.Info().Str("participant", participantID).Int("cell", cellIndex).Int("seq", seq).Msg("placement committed")

	// The placement is committed; journal failures never change the decision.
	if s.journal != nil {
		if err := s.journal.Append(ctx, seq, *d.Update); err != nil {
			metrics.JournalError()
			log.Warn().Err(err).Int("seq", seq).Msg("journal append")
		}
	}
	return d
}

func (s *Service) commit(participantID string, cellIndex int, char string, now time.Time) (Decision, int) {
	if cellIndex < 0 || cellIndex >= s.grid.Len() {
		return Failed(ErrInvalidIndex), -1
	}
	if char == "" {
		return Failed(ErrInvalidChar), -1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grid.IsFilled(cellIndex) {
		return Failed(ErrCellOccupied), -1
	}
	if st := s.players.Get(participantID); st.LockedAt(now) {
		d := Failed(ErrLocked)
		d.LockedUntil = st.LockedUntil
		return d, -1
	}

	rec := grid.PlacementRecord{
		Timestamp:     now.UnixMilli(),
		ParticipantID: participantID,
		CellIndex:     cellIndex,
		Char:          char,
	}
	seq, err := s.grid.Commit(rec)
	if err != nil {
		if errors.Is(err, grid.ErrAlreadyFilled) {
			return Failed(ErrCellOccupied), -1
		}
		return Failed(fmt.Errorf("fill cell %d: %w", cellIndex, err)), -1
	}
	st := s.players.RecordSubmit(participantID, now, s.lock)

	if s.out != nil {
		s.out.BroadcastUpdate(rec, s.grid.Cells())
		s.out.BroadcastPresence(s.players.OnlineCount())
	}
	return Succeeded(rec, st.LockedUntil), seq
}

// Sync runs fn with a snapshot taken between mutations. No placement
// commits or broadcasts while fn runs, so anything fn enqueues for an
// observer is ordered before the next update.
func (s *Service) Sync(fn func(snap grid.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.grid.Get())
}

// AnnouncePresence broadcasts the current online count. The count is read
// and queued under the same lock as placement broadcasts, so the last
// presence message an observer gets reflects the latest count.
func (s *Service) AnnouncePresence() {
	if s.out == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.BroadcastPresence(s.players.OnlineCount())
}

// Snapshot returns the current cells and history.
func (s *Service) Snapshot() grid.Snapshot { return s.grid.Get() }

// History returns the placement history in commit order.
func (s *Service) History() []grid.PlacementRecord { return s.grid.History() }
