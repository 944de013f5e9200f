// Package api exposes the Crypto Comrades social feed over HTTP:
// posts, comments, like/dislike reactions and portfolio holdings.
// Identity is a collaborator concern; callers authenticate elsewhere
// and pass a stable user ID in the X-User-ID header (plus X-Username
// and X-User-Avatar when creating content).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/crypto-comrades/social-api/api/validator"
	"github.com/crypto-comrades/social-api/ledger"
	"github.com/crypto-comrades/social-api/market"
)

// A DB provides a storage layer that persists posts, comments and
// portfolio holdings. Reads for missing entities return the matching
// sentinel error (ErrPostNotFound etc.), never a partial value.
type DB interface {
	ListPosts(ctx context.Context, filter PostFilter) ([]Post, error)
	GetPost(ctx context.Context, id string) (Post, error)
	InsertPost(ctx context.Context, p Post) (Post, error)
	UpdatePost(ctx context.Context, id string, upd PostUpdate) (Post, error)
	DeletePost(ctx context.Context, id string) error

	InsertComment(ctx context.Context, c Comment) (Comment, error)
	UpdateComment(ctx context.Context, postID, commentID, content string) (Comment, error)
	DeleteComment(ctx context.Context, postID, commentID string) error

	ListHoldings(ctx context.Context, userID string) ([]Holding, error)
	GetHolding(ctx context.Context, id string) (Holding, error)
	InsertHolding(ctx context.Context, h Holding) (Holding, error)
	UpdateHolding(ctx context.Context, id string, upd HoldingUpdate) (Holding, error)
	DeleteHolding(ctx context.Context, id string) error
}

// A PostFilter narrows ListPosts. The only supported order is
// descending creation time; pagination is a flat limit.
type PostFilter struct {
	Visibility string // "", "public" or "private"
	AuthorID   string
	Limit      int
	ExcludeIDs []string
}

// A PostUpdate carries the fields of a partial post edit. Nil fields
// are left untouched, so an edit can never clobber counters or fields
// it didn't mention.
type PostUpdate struct {
	Title          *string
	Content        *string
	ImageURL       *string
	Tags           *[]string
	CryptoMentions *[]string
	IsPublic       *bool
}

// A HoldingUpdate carries the mutable fields of a holding edit.
type HoldingUpdate struct {
	Amount      *float64
	AvgBuyPrice *float64
}

// A Cache provides a storage layer that caches recent public posts.
// Cache failures are logged and never fail a request.
type Cache interface {
	ListPosts(ctx context.Context) ([]Post, error)
	InsertPost(ctx context.Context, p Post) error
	RemovePost(ctx context.Context, id string) error
}

// A Ledger records like/dislike reactions, one per (user, target).
type Ledger interface {
	React(ctx context.Context, userID string, target ledger.Target, kind ledger.Kind) (ledger.Kind, error)
	UserReaction(ctx context.Context, userID string, target ledger.Target) (ledger.Kind, error)
}

// A Market quotes current coin prices and market listings.
type Market interface {
	Prices(ctx context.Context, coinIDs []string) (map[string]float64, error)
	Coins(ctx context.Context) ([]market.Coin, error)
}

// API provides the REST endpoints for the application.
type API struct {
	Logger *slog.Logger
	DB     DB
	Cache  Cache
	Ledger Ledger
	Market Market
	Val    *validator.Validator

	once sync.Once
	mux  *http.ServeMux
}

// pageSize defines the default number of posts returned by the feed
// when no limit is given.
var pageSize = 20

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /posts", a.listPosts)
	mux.HandleFunc("POST /posts", a.createPost)
	mux.HandleFunc("GET /posts/{postID}", a.getPost)
	mux.HandleFunc("PATCH /posts/{postID}", a.updatePost)
	mux.HandleFunc("DELETE /posts/{postID}", a.deletePost)

	mux.HandleFunc("POST /posts/{postID}/comments", a.createComment)
	mux.HandleFunc("PATCH /posts/{postID}/comments/{commentID}", a.updateComment)
	mux.HandleFunc("DELETE /posts/{postID}/comments/{commentID}", a.deleteComment)

	mux.HandleFunc("POST /posts/{postID}/reactions", a.reactToPost)
	mux.HandleFunc("GET /posts/{postID}/reactions", a.getPostReaction)
	mux.HandleFunc("POST /posts/{postID}/comments/{commentID}/reactions", a.reactToComment)
	mux.HandleFunc("GET /posts/{postID}/comments/{commentID}/reactions", a.getCommentReaction)

	mux.HandleFunc("GET /users/{userID}/holdings", a.listHoldings)
	mux.HandleFunc("POST /users/{userID}/holdings", a.createHolding)
	mux.HandleFunc("PATCH /users/{userID}/holdings/{holdingID}", a.updateHolding)
	mux.HandleFunc("DELETE /users/{userID}/holdings/{holdingID}", a.deleteHolding)

	mux.HandleFunc("GET /market/coins", a.listCoins)
	mux.HandleFunc("GET /market/prices", a.getPrices)

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	a.mux.ServeHTTP(w, r)
}

// actor reads the calling user's identity from the request headers.
func actor(r *http.Request) (userID string, author Author) {
	return r.Header.Get("X-User-ID"), Author{
		Username: r.Header.Get("X-Username"),
		Avatar:   r.Header.Get("X-User-Avatar"),
	}
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

// respondDomainError maps sentinel errors to HTTP statuses: missing
// entities to 404, missing identity to 401, bad reaction kinds to
// 400. Anything else is a transport failure and surfaces as 500 for
// the caller to retry.
func (a *API) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPostNotFound),
		errors.Is(err, ErrCommentNotFound),
		errors.Is(err, ErrHoldingNotFound),
		errors.Is(err, ledger.ErrTargetNotFound):
		a.respondError(w, http.StatusNotFound, err, err.Error())
	case errors.Is(err, ledger.ErrUnauthenticated):
		a.respondError(w, http.StatusUnauthorized, err, "Authentication required")
	case errors.Is(err, ledger.ErrInvalidKind):
		a.respondError(w, http.StatusBadRequest, err, err.Error())
	default:
		a.respondError(w, http.StatusInternalServerError, err, "Something went wrong")
	}
}

func (a *API) forbidden(w http.ResponseWriter, msg string) {
	a.respondError(w, http.StatusForbidden, errors.New(msg), msg)
}

func (a *API) unauthenticated(w http.ResponseWriter) {
	a.respondError(w, http.StatusUnauthorized, ledger.ErrUnauthenticated, "Authentication required")
}

func (a *API) validateBody(w http.ResponseWriter, s interface{}) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []validator.ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}

func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return false
	}
	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return false
	}
	return true
}
