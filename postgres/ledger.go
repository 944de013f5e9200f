package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/crypto-comrades/social-api/ledger"
	"github.com/uptrace/bun"
)

// counterColumns is a whitelist mapping reaction kinds to the counter
// columns they drive.
var counterColumns = map[ledger.Kind]string{
	ledger.KindLike:    "likes",
	ledger.KindDislike: "dislikes",
}

// GetReaction returns the user's reaction on the target, or nil when
// the user has none.
func (pg *Postgres) GetReaction(ctx context.Context, userID string, target ledger.Target) (*ledger.Reaction, error) {
	var r reaction
	q := pg.bun.NewSelect().Model(&r).Where("user_id = ?", userID)
	q = whereTarget(q, target)

	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	lr := r.ledgerReaction()
	return &lr, nil
}

// CreateReaction inserts the reaction row and increments the matching
// counter on the target in one transaction. The counter update
// doubles as the existence check: zero rows affected means the target
// is gone.
func (pg *Postgres) CreateReaction(ctx context.Context, in ledger.Reaction) (ledger.Reaction, error) {
	var out ledger.Reaction
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := adjustCounter(ctx, tx, in.Target, counterColumns[in.Kind], +1); err != nil {
			return err
		}

		r := &reaction{
			PostID: in.Target.PostID,
			UserID: in.UserID,
			Kind:   string(in.Kind),
		}
		if in.Target.Type == ledger.TargetComment {
			commentID := in.Target.CommentID
			r.CommentID = &commentID
		}
		if _, err := tx.NewInsert().Model(r).Exec(ctx); err != nil {
			return fmt.Errorf("insert reaction: %w", err)
		}
		out = r.ledgerReaction()
		return nil
	})
	if err != nil {
		return ledger.Reaction{}, err
	}
	return out, nil
}

// SwitchReaction flips the reaction's kind and moves one count from
// the old counter to the new one, atomically.
func (pg *Postgres) SwitchReaction(ctx context.Context, r ledger.Reaction, kind ledger.Kind) error {
	return pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		m := &reaction{Kind: string(kind), UpdatedAt: time.Now().UTC()}
		res, err := tx.NewUpdate().
			Model(m).
			Column("kind", "updated_at").
			Where("id = ?", r.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update reaction: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ledger.ErrTargetNotFound
		}

		if err := adjustCounter(ctx, tx, r.Target, counterColumns[r.Kind], -1); err != nil {
			return err
		}
		return adjustCounter(ctx, tx, r.Target, counterColumns[kind], +1)
	})
}

// DeleteReaction removes the row and decrements its counter.
func (pg *Postgres) DeleteReaction(ctx context.Context, r ledger.Reaction) error {
	return pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*reaction)(nil)).Where("id = ?", r.ID).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete reaction: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Already gone; nothing to decrement.
			return nil
		}
		return adjustCounter(ctx, tx, r.Target, counterColumns[r.Kind], -1)
	})
}

// CountReactions recounts the reaction rows on a target.
func (pg *Postgres) CountReactions(ctx context.Context, target ledger.Target) (likes, dislikes int, err error) {
	q := pg.bun.NewSelect().
		Model((*reaction)(nil)).
		ColumnExpr("count(*) FILTER (WHERE kind = 'like')").
		ColumnExpr("count(*) FILTER (WHERE kind = 'dislike')")
	q = whereTarget(q, target)

	if err := q.Scan(ctx, &likes, &dislikes); err != nil {
		return 0, 0, fmt.Errorf("scan: %w", err)
	}
	return likes, dislikes, nil
}

// SetReactionCounts overwrites the target's counters.
func (pg *Postgres) SetReactionCounts(ctx context.Context, target ledger.Target, likes, dislikes int) error {
	var q *bun.UpdateQuery
	switch target.Type {
	case ledger.TargetComment:
		m := &comment{Likes: likes, Dislikes: dislikes}
		q = pg.bun.NewUpdate().
			Model(m).
			Column("likes", "dislikes").
			Where("id = ? AND post_id = ?", target.CommentID, target.PostID)
	default:
		m := &post{Likes: likes, Dislikes: dislikes}
		q = pg.bun.NewUpdate().
			Model(m).
			Column("likes", "dislikes").
			Where("id = ?", target.PostID)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTargetNotFound
	}
	return nil
}

// adjustCounter bumps a counter column on the reaction's target,
// clamped at zero. Zero rows affected means the target doesn't exist.
func adjustCounter(ctx context.Context, tx bun.Tx, target ledger.Target, column string, delta int) error {
	var q *bun.UpdateQuery
	switch target.Type {
	case ledger.TargetComment:
		q = tx.NewUpdate().
			Model((*comment)(nil)).
			Where("id = ? AND post_id = ?", target.CommentID, target.PostID)
	default:
		q = tx.NewUpdate().
			Model((*post)(nil)).
			Where("id = ?", target.PostID)
	}

	res, err := q.
		Set("? = GREATEST(? + ?, 0)", bun.Ident(column), bun.Ident(column), delta).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("adjust %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTargetNotFound
	}
	return nil
}

// whereTarget narrows a reaction query to one target.
func whereTarget(q *bun.SelectQuery, target ledger.Target) *bun.SelectQuery {
	if target.Type == ledger.TargetComment {
		return q.Where("comment_id = ?", target.CommentID)
	}
	return q.Where("post_id = ? AND comment_id IS NULL", target.PostID)
}
