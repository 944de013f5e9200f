// Package ledger maintains the one-reaction-per-user rule for posts
// and comments and keeps the denormalized like/dislike counters on the
// targets in step with the reaction rows.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// A Store persists reactions and the counters they drive. Each
// mutating call must apply the row change and the counter change as a
// single atomic step; counters must never drop below zero.
type Store interface {
	// GetReaction returns the user's reaction on the target, or nil
	// when the user has none.
	GetReaction(ctx context.Context, userID string, target Target) (*Reaction, error)

	// CreateReaction inserts the reaction and increments the matching
	// counter on the target. Returns ErrTargetNotFound if the target
	// doesn't exist.
	CreateReaction(ctx context.Context, r Reaction) (Reaction, error)

	// SwitchReaction changes the kind of an existing reaction in
	// place, moving one count from the old counter to the new one.
	SwitchReaction(ctx context.Context, r Reaction, kind Kind) error

	// DeleteReaction removes the reaction and decrements its counter.
	DeleteReaction(ctx context.Context, r Reaction) error

	// CountReactions recounts the reaction rows on a target.
	CountReactions(ctx context.Context, target Target) (likes, dislikes int, err error)

	// SetReactionCounts overwrites the target's counters.
	SetReactionCounts(ctx context.Context, target Target, likes, dislikes int) error
}

// A Ledger coordinates reactions. Calls for the same (user, target)
// pair are serialized so the read-modify-write in React cannot race
// with itself.
type Ledger struct {
	Logger *slog.Logger
	Store  Store

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (l *Ledger) lock(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*entryLock)
	}
	e, ok := l.locks[key]
	if !ok {
		e = &entryLock{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// React records, switches or removes the user's reaction on a target.
//   - No reaction yet: a new one of the given kind is created.
//   - Same kind as the existing one: the reaction is removed (toggle off).
//   - Different kind: the existing reaction switches kind.
//
// The returned kind is the user's reaction state after the call,
// KindNone when the reaction was toggled off.
func (l *Ledger) React(ctx context.Context, userID string, target Target, kind Kind) (Kind, error) {
	if userID == "" {
		return KindNone, ErrUnauthenticated
	}
	if !kind.Valid() {
		return KindNone, ErrInvalidKind
	}

	unlock := l.lock(target.key(userID))
	defer unlock()

	existing, err := l.Store.GetReaction(ctx, userID, target)
	if err != nil {
		return KindNone, fmt.Errorf("get reaction: %w", err)
	}

	switch {
	case existing == nil:
		if _, err := l.Store.CreateReaction(ctx, Reaction{
			Target: target,
			UserID: userID,
			Kind:   kind,
		}); err != nil {
			return KindNone, err
		}
		return kind, nil

	case existing.Kind == kind:
		if err := l.Store.DeleteReaction(ctx, *existing); err != nil {
			return KindNone, fmt.Errorf("delete reaction: %w", err)
		}
		return KindNone, nil

	default:
		if err := l.Store.SwitchReaction(ctx, *existing, kind); err != nil {
			return KindNone, fmt.Errorf("switch reaction: %w", err)
		}
		return kind, nil
	}
}

// UserReaction returns the user's current reaction on the target,
// KindNone when there is none. It always consults the store.
func (l *Ledger) UserReaction(ctx context.Context, userID string, target Target) (Kind, error) {
	if userID == "" {
		return KindNone, ErrUnauthenticated
	}
	r, err := l.Store.GetReaction(ctx, userID, target)
	if err != nil {
		return KindNone, fmt.Errorf("get reaction: %w", err)
	}
	if r == nil {
		return KindNone, nil
	}
	return r.Kind, nil
}

// Reconcile recounts the reaction rows on a target and rewrites its
// counters. The rows are the source of truth; the counters are a
// cache that can drift if a process dies between steps.
func (l *Ledger) Reconcile(ctx context.Context, target Target) (likes, dislikes int, err error) {
	likes, dislikes, err = l.Store.CountReactions(ctx, target)
	if err != nil {
		return 0, 0, fmt.Errorf("count reactions: %w", err)
	}
	if err := l.Store.SetReactionCounts(ctx, target, likes, dislikes); err != nil {
		return 0, 0, fmt.Errorf("set counts: %w", err)
	}
	if l.Logger != nil {
		l.Logger.Info("Reconciled reaction counts",
			"target_type", target.Type,
			"post_id", target.PostID,
			"comment_id", target.CommentID,
			"likes", likes,
			"dislikes", dislikes,
		)
	}
	return likes, dislikes, nil
}
