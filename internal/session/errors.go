package session

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSessionContext means the room or self id is unknown. The
	// caller should redirect to login; no connection is attempted.
	ErrMissingSessionContext = errors.New("missing room or user id")

	// ErrEmptyMessage rejects whitespace-only outbound messages locally.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrHistoryExhausted rejects load-more once the server reported the
	// oldest page, without a round trip.
	ErrHistoryExhausted = errors.New("no more history")

	// ErrPageRequestPending rejects a load-more while one is in flight.
	ErrPageRequestPending = errors.New("page request already in flight")

	// ErrNotActive rejects commands issued outside the Active phase.
	ErrNotActive = errors.New("session is not active")
)

// TransportFault wraps a connection-level failure. It is recoverable: the
// session freezes in the Faulted phase and the user must re-enter the
// room; the client never reconnects on its own.
type TransportFault struct {
	Op  string
	Err error
}

func (f *TransportFault) Error() string {
	return fmt.Sprintf("transport fault during %s: %v", f.Op, f.Err)
}

func (f *TransportFault) Unwrap() error {
	return f.Err
}
