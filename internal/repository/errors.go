// Package repository defines the error values returned by the reservation
// ledger.  Every failure carries a Kind so that handlers can translate it
// into a status code without inspecting messages: InvalidArgument maps to
// 400, NotFound to 404 and Conflict to 409.  The Reason distinguishes, for
// example, a missing concert from a missing reservation.
package repository

import "errors"

// Kind classifies a ledger failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Reason names the specific condition within a Kind.
type Reason string

const (
	ReasonUserIDRequired      Reason = "user_id_required"
	ReasonConcertNotFound     Reason = "concert_not_found"
	ReasonReservationNotFound Reason = "reservation_not_found"
	ReasonAlreadyReserved     Reason = "already_reserved"
	ReasonSoldOut             Reason = "sold_out"
)

// Error is the tagged error returned by every failing ledger operation.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
}

func (e *Error) Error() string { return e.Message }

// Sentinel values.  Compare with errors.Is.
var (
	ErrUserIDRequired      = &Error{Kind: KindInvalidArgument, Reason: ReasonUserIDRequired, Message: "userId is required"}
	ErrConcertNotFound     = &Error{Kind: KindNotFound, Reason: ReasonConcertNotFound, Message: "Concert not found"}
	ErrReservationNotFound = &Error{Kind: KindNotFound, Reason: ReasonReservationNotFound, Message: "Reservation not found for this user"}
	ErrAlreadyReserved     = &Error{Kind: KindConflict, Reason: ReasonAlreadyReserved, Message: "You already reserved this concert"}
	ErrSoldOut             = &Error{Kind: KindConflict, Reason: ReasonSoldOut, Message: "No seats available for this concert"}
)

// KindOf reports the Kind of err, or KindUnknown when err is not a ledger
// error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}
