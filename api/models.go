package api

import (
	"strings"
	"time"
)

// An Author is the denormalized identity attached to posts and
// comments at creation time. Identity itself is supplied by the
// caller; the API only requires a stable user ID.
type Author struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// A Post represents a persisted post with its full comment list.
type Post struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Author         Author    `json:"author"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	ImageURL       string    `json:"image_url,omitempty"`
	Tags           []string  `json:"tags"`
	CryptoMentions []string  `json:"crypto_mentions"`
	IsPublic       bool      `json:"is_public"`
	Likes          int       `json:"likes"`
	Dislikes       int       `json:"dislikes"`
	Comments       []Comment `json:"comments"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// A Comment represents a comment under a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	Dislikes  int       `json:"dislikes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// A Holding is one coin position in a user's portfolio.
type Holding struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CoinID      string    `json:"coin_id"`
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Amount      float64   `json:"amount"`
	AvgBuyPrice float64   `json:"avg_buy_price"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// A HoldingValue is a holding priced against the current market.
type HoldingValue struct {
	Holding
	CurrentPrice  float64 `json:"current_price"`
	TotalValue    float64 `json:"total_value"`
	ProfitLoss    float64 `json:"profit_loss"`
	ProfitLossPct float64 `json:"profit_loss_pct"`
}

// maxTags caps both the tag and crypto mention lists on a post.
const maxTags = 10

// normalizeTags lowercases, trims and de-duplicates tags, preserving
// first-occurrence order and dropping anything beyond maxTags.
func normalizeTags(tags []string) []string {
	return normalizeList(tags, strings.ToLower)
}

// normalizeMentions uppercases ticker symbols, otherwise like
// normalizeTags.
func normalizeMentions(mentions []string) []string {
	return normalizeList(mentions, strings.ToUpper)
}

func normalizeList(in []string, fold func(string) string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = fold(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == maxTags {
			break
		}
	}
	return out
}
