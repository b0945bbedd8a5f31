// internal/game/types.go
//
// Decision and error taxonomy for placement attempts.
// Defines:
//   - Kind: failure class (validation, conflict, rate limit, internal).
//   - Decision: the result of one placement attempt, as sent to the requester.
//   - Sentinel errors whose messages are the wire error strings.

package game

import (
	"errors"

	"github.com/robalobadob/gridboard/apps/go-server/internal/grid"
)

// Kind classifies a placement failure.
//   - KindValidation: malformed request (bad index or char); a client bug.
//   - KindConflict:   the cell was already filled; the client should refresh.
//   - KindRateLimit:  the participant is cooling down; retry after LockedUntil.
//   - KindInternal:   unexpected failure while processing.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindConflict
	KindRateLimit
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "internal"
	}
}

// Error messages are part of the wire contract.
var (
	ErrInvalidIndex = errors.New("invalid cell index")
	ErrInvalidChar  = errors.New("invalid char")
	ErrCellOccupied = errors.New("cell already occupied")
	ErrLocked       = errors.New("player locked (try later)")
)

// KindOf maps err onto the failure taxonomy. A nil error is KindNone.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidIndex), errors.Is(err, ErrInvalidChar):
		return KindValidation
	case errors.Is(err, ErrCellOccupied):
		return KindConflict
	case errors.Is(err, ErrLocked):
		return KindRateLimit
	default:
		return KindInternal
	}
}

// Decision is the outcome of a single placement attempt.
// LockedUntil (unix ms) is set on success and on rate-limit failures; it is
// the authoritative lock expiry and clients should not derive it themselves.
type Decision struct {
	OK          bool                  `json:"ok"`
	Update      *grid.PlacementRecord `json:"update,omitempty"`
	Error       string                `json:"error,omitempty"`
	LockedUntil int64                 `json:"lockedUntil,omitempty"`

	Err error `json:"-"`
}

// Kind returns the failure class of d.
func (d Decision) Kind() Kind { return KindOf(d.Err) }

// Succeeded builds a success decision for rec.
func Succeeded(rec grid.PlacementRecord, lockedUntil int64) Decision {
	return Decision{OK: true, Update: &rec, LockedUntil: lockedUntil}
}

// Failed builds a failure decision; the wire error is err's message verbatim.
func Failed(err error) Decision {
	return Decision{OK: false, Error: err.Error(), Err: err}
}
