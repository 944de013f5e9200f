package ledger

import "errors"

var (
	// ErrUnauthenticated indicates no user ID was supplied.
	ErrUnauthenticated = errors.New("user id is required")

	// ErrTargetNotFound indicates the post or comment being reacted to
	// doesn't exist.
	ErrTargetNotFound = errors.New("reaction target not found")

	// ErrInvalidKind indicates the reaction kind is not "like" or "dislike".
	ErrInvalidKind = errors.New("invalid reaction kind: must be 'like' or 'dislike'")
)
