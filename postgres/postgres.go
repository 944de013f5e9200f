// Package postgres provides storage in PostgreSQL for posts,
// comments, reactions and portfolio holdings.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/crypto-comrades/social-api/api"
	"github.com/crypto-comrades/social-api/migrations"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Postgres provides storage in PostgreSQL. It implements api.DB and,
// in ledger.go, ledger.Store.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and pings the DB to ensure the
// connection is working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

// Migrate runs the embedded goose migrations.
func (pg *Postgres) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, pg.bun.DB, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// ListPosts returns posts ordered by descending creation time.
func (pg *Postgres) ListPosts(ctx context.Context, filter api.PostFilter) ([]api.Post, error) {
	var posts []post
	q := pg.bun.NewSelect().
		Model(&posts).
		Relation("Comments", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at ASC")
		}).
		Order("created_at DESC")

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	switch filter.Visibility {
	case "public":
		q = q.Where("is_public")
	case "private":
		q = q.Where("NOT is_public")
	}
	if filter.AuthorID != "" {
		q = q.Where("user_id = ?", filter.AuthorID)
	}
	if len(filter.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN (?)", bun.In(filter.ExcludeIDs))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]api.Post, len(posts))
	for i, p := range posts {
		out[i] = p.APIPost()
	}

	return out, nil
}

// GetPost returns the post with its full comment list, oldest comment
// first.
func (pg *Postgres) GetPost(ctx context.Context, id string) (api.Post, error) {
	var p post
	err := pg.bun.NewSelect().
		Model(&p).
		Relation("Comments", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at ASC")
		}).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Post{}, api.ErrPostNotFound
	}
	if err != nil {
		return api.Post{}, fmt.Errorf("scan: %w", err)
	}
	return p.APIPost(), nil
}

// InsertPost inserts a post. The returned post holds auto generated
// fields, such as the post id.
func (pg *Postgres) InsertPost(ctx context.Context, in api.Post) (api.Post, error) {
	p := &post{
		UserID:         in.UserID,
		AuthorName:     in.Author.Username,
		AuthorAvatar:   in.Author.Avatar,
		Title:          in.Title,
		Content:        in.Content,
		ImageURL:       in.ImageURL,
		Tags:           in.Tags,
		CryptoMentions: in.CryptoMentions,
		IsPublic:       in.IsPublic,
		CreatedAt:      in.CreatedAt,
		UpdatedAt:      in.UpdatedAt,
	}
	if _, err := pg.bun.NewInsert().Model(p).Exec(ctx); err != nil {
		return api.Post{}, fmt.Errorf("insert: %w", err)
	}
	return p.APIPost(), nil
}

// UpdatePost writes only the fields the update names; counters and
// unnamed fields are never touched.
func (pg *Postgres) UpdatePost(ctx context.Context, id string, upd api.PostUpdate) (api.Post, error) {
	m := &post{UpdatedAt: time.Now().UTC()}
	q := pg.bun.NewUpdate().Model(m).Column("updated_at").Where("id = ?", id)

	if upd.Title != nil {
		m.Title = *upd.Title
		q = q.Column("title")
	}
	if upd.Content != nil {
		m.Content = *upd.Content
		q = q.Column("content")
	}
	if upd.ImageURL != nil {
		m.ImageURL = *upd.ImageURL
		q = q.Column("image_url")
	}
	if upd.Tags != nil {
		m.Tags = *upd.Tags
		q = q.Column("tags")
	}
	if upd.CryptoMentions != nil {
		m.CryptoMentions = *upd.CryptoMentions
		q = q.Column("crypto_mentions")
	}
	if upd.IsPublic != nil {
		m.IsPublic = *upd.IsPublic
		q = q.Column("is_public")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return api.Post{}, fmt.Errorf("update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return api.Post{}, api.ErrPostNotFound
	}

	return pg.GetPost(ctx, id)
}

// DeletePost removes the post, its comments and every reaction
// referencing the post or its comments, in one transaction.
func (pg *Postgres) DeletePost(ctx context.Context, id string) error {
	return pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*reaction)(nil)).Where("post_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete reactions: %w", err)
		}
		if _, err := tx.NewDelete().Model((*comment)(nil)).Where("post_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		res, err := tx.NewDelete().Model((*post)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return api.ErrPostNotFound
		}
		return nil
	})
}

// InsertComment appends a comment to its parent post's collection.
func (pg *Postgres) InsertComment(ctx context.Context, in api.Comment) (api.Comment, error) {
	c := &comment{
		PostID:       in.PostID,
		UserID:       in.UserID,
		AuthorName:   in.Author.Username,
		AuthorAvatar: in.Author.Avatar,
		Content:      in.Content,
		CreatedAt:    in.CreatedAt,
		UpdatedAt:    in.UpdatedAt,
	}
	if _, err := pg.bun.NewInsert().Model(c).Exec(ctx); err != nil {
		if isFKViolation(err) {
			return api.Comment{}, api.ErrPostNotFound
		}
		return api.Comment{}, fmt.Errorf("insert: %w", err)
	}
	return c.APIComment(), nil
}

// UpdateComment rewrites a comment's content.
func (pg *Postgres) UpdateComment(ctx context.Context, postID, commentID, content string) (api.Comment, error) {
	m := &comment{Content: content, UpdatedAt: time.Now().UTC()}
	res, err := pg.bun.NewUpdate().
		Model(m).
		Column("content", "updated_at").
		Where("id = ? AND post_id = ?", commentID, postID).
		Exec(ctx)
	if err != nil {
		return api.Comment{}, fmt.Errorf("update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return api.Comment{}, api.ErrCommentNotFound
	}

	var c comment
	if err := pg.bun.NewSelect().Model(&c).Where("id = ?", commentID).Scan(ctx); err != nil {
		return api.Comment{}, fmt.Errorf("scan: %w", err)
	}
	return c.APIComment(), nil
}

// DeleteComment removes the comment and the reactions on it, but not
// the parent post.
func (pg *Postgres) DeleteComment(ctx context.Context, postID, commentID string) error {
	return pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*reaction)(nil)).Where("comment_id = ?", commentID).Exec(ctx); err != nil {
			return fmt.Errorf("delete reactions: %w", err)
		}
		res, err := tx.NewDelete().
			Model((*comment)(nil)).
			Where("id = ? AND post_id = ?", commentID, postID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return api.ErrCommentNotFound
		}
		return nil
	})
}

// ListHoldings returns a user's portfolio holdings, oldest first.
func (pg *Postgres) ListHoldings(ctx context.Context, userID string) ([]api.Holding, error) {
	var holdings []holding
	err := pg.bun.NewSelect().
		Model(&holdings).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]api.Holding, len(holdings))
	for i, h := range holdings {
		out[i] = h.APIHolding()
	}
	return out, nil
}

func (pg *Postgres) GetHolding(ctx context.Context, id string) (api.Holding, error) {
	var h holding
	err := pg.bun.NewSelect().Model(&h).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Holding{}, api.ErrHoldingNotFound
	}
	if err != nil {
		return api.Holding{}, fmt.Errorf("scan: %w", err)
	}
	return h.APIHolding(), nil
}

func (pg *Postgres) InsertHolding(ctx context.Context, in api.Holding) (api.Holding, error) {
	h := &holding{
		UserID:      in.UserID,
		CoinID:      in.CoinID,
		Symbol:      in.Symbol,
		Name:        in.Name,
		Amount:      in.Amount,
		AvgBuyPrice: in.AvgBuyPrice,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
	}
	if _, err := pg.bun.NewInsert().Model(h).Exec(ctx); err != nil {
		return api.Holding{}, fmt.Errorf("insert: %w", err)
	}
	return h.APIHolding(), nil
}

func (pg *Postgres) UpdateHolding(ctx context.Context, id string, upd api.HoldingUpdate) (api.Holding, error) {
	m := &holding{UpdatedAt: time.Now().UTC()}
	q := pg.bun.NewUpdate().Model(m).Column("updated_at").Where("id = ?", id)

	if upd.Amount != nil {
		m.Amount = *upd.Amount
		q = q.Column("amount")
	}
	if upd.AvgBuyPrice != nil {
		m.AvgBuyPrice = *upd.AvgBuyPrice
		q = q.Column("avg_buy_price")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return api.Holding{}, fmt.Errorf("update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return api.Holding{}, api.ErrHoldingNotFound
	}
	return pg.GetHolding(ctx, id)
}

func (pg *Postgres) DeleteHolding(ctx context.Context, id string) error {
	res, err := pg.bun.NewDelete().Model((*holding)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return api.ErrHoldingNotFound
	}
	return nil
}

// isFKViolation reports whether err is a Postgres foreign key
// violation (SQLSTATE 23503).
func isFKViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23503"
}
