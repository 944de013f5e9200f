package api

import "errors"

var (
	// ErrPostNotFound indicates the requested post doesn't exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrCommentNotFound indicates the requested comment doesn't exist
	// under the given post.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrHoldingNotFound indicates the requested portfolio holding
	// doesn't exist.
	ErrHoldingNotFound = errors.New("holding not found")
)

var (
	errInvalidLimit = errors.New("invalid limit")
	errMissingIDs   = errors.New("missing coin ids")
)
