package postgres

import (
	"time"

	"github.com/crypto-comrades/social-api/api"
	"github.com/crypto-comrades/social-api/ledger"
	"github.com/uptrace/bun"
)

// A post represents a post row in the database. Tags and mentions are
// Postgres text arrays; the like/dislike counters are denormalized
// from the reactions table and only ever written by reaction
// transactions or reconciliation.
type post struct {
	bun.BaseModel `bun:"table:posts"`

	ID             string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	UserID         string    `bun:",notnull"`
	AuthorName     string    `bun:"author_name,notnull"`
	AuthorAvatar   string    `bun:"author_avatar"`
	Title          string    `bun:",notnull"`
	Content        string    `bun:",notnull"`
	ImageURL       string    `bun:"image_url"`
	Tags           []string  `bun:",array"`
	CryptoMentions []string  `bun:"crypto_mentions,array"`
	IsPublic       bool      `bun:"is_public"`
	Likes          int       `bun:",notnull,default:0"`
	Dislikes       int       `bun:",notnull,default:0"`
	CreatedAt      time.Time `bun:",nullzero,default:now()"`
	UpdatedAt      time.Time `bun:",nullzero,default:now()"`
	Comments       []comment `bun:"rel:has-many,join:id=post_id"`
}

type comment struct {
	bun.BaseModel `bun:"table:comments"`

	ID           string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	PostID       string    `bun:",notnull,type:uuid"`
	UserID       string    `bun:",notnull"`
	AuthorName   string    `bun:"author_name,notnull"`
	AuthorAvatar string    `bun:"author_avatar"`
	Content      string    `bun:",notnull"`
	Likes        int       `bun:",notnull,default:0"`
	Dislikes     int       `bun:",notnull,default:0"`
	CreatedAt    time.Time `bun:",nullzero,default:now()"`
	UpdatedAt    time.Time `bun:",nullzero,default:now()"`
}

// A reaction row records one user's like or dislike on a post or a
// comment. comment_id is null for post targets; partial unique
// indexes enforce at most one row per (user, target).
type reaction struct {
	bun.BaseModel `bun:"table:reactions"`

	ID        string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	PostID    string    `bun:",notnull,type:uuid"`
	CommentID *string   `bun:",type:uuid"`
	UserID    string    `bun:",notnull"`
	Kind      string    `bun:",notnull"`
	CreatedAt time.Time `bun:",nullzero,default:now()"`
	UpdatedAt time.Time `bun:",nullzero,default:now()"`
}

type holding struct {
	bun.BaseModel `bun:"table:holdings"`

	ID          string    `bun:",pk,type:uuid,default:uuid_generate_v4()"`
	UserID      string    `bun:",notnull"`
	CoinID      string    `bun:"coin_id,notnull"`
	Symbol      string    `bun:",notnull"`
	Name        string    `bun:""`
	Amount      float64   `bun:",notnull"`
	AvgBuyPrice float64   `bun:"avg_buy_price,notnull,default:0"`
	CreatedAt   time.Time `bun:",nullzero,default:now()"`
	UpdatedAt   time.Time `bun:",nullzero,default:now()"`
}

func (p post) APIPost() api.Post {
	comments := make([]api.Comment, len(p.Comments))
	for i, c := range p.Comments {
		comments[i] = c.APIComment()
	}

	return api.Post{
		ID:             p.ID,
		UserID:         p.UserID,
		Author:         api.Author{Username: p.AuthorName, Avatar: p.AuthorAvatar},
		Title:          p.Title,
		Content:        p.Content,
		ImageURL:       p.ImageURL,
		Tags:           emptyIfNil(p.Tags),
		CryptoMentions: emptyIfNil(p.CryptoMentions),
		IsPublic:       p.IsPublic,
		Likes:          p.Likes,
		Dislikes:       p.Dislikes,
		Comments:       comments,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (c comment) APIComment() api.Comment {
	return api.Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		Author:    api.Author{Username: c.AuthorName, Avatar: c.AuthorAvatar},
		Content:   c.Content,
		Likes:     c.Likes,
		Dislikes:  c.Dislikes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (r reaction) ledgerReaction() ledger.Reaction {
	target := ledger.PostTarget(r.PostID)
	if r.CommentID != nil {
		target = ledger.CommentTarget(r.PostID, *r.CommentID)
	}
	return ledger.Reaction{
		ID:        r.ID,
		Target:    target,
		UserID:    r.UserID,
		Kind:      ledger.Kind(r.Kind),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (h holding) APIHolding() api.Holding {
	return api.Holding{
		ID:          h.ID,
		UserID:      h.UserID,
		CoinID:      h.CoinID,
		Symbol:      h.Symbol,
		Name:        h.Name,
		Amount:      h.Amount,
		AvgBuyPrice: h.AvgBuyPrice,
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
