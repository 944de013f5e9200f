package api

import (
	"net/http"

	"github.com/crypto-comrades/social-api/ledger"
)

// reactionResponse reports the user's reaction state on a target
// after a call: "like", "dislike" or "" when no reaction remains.
type reactionResponse struct {
	PostID    string `json:"post_id"`
	CommentID string `json:"comment_id,omitempty"`
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
}

func (a *API) reactToPost(w http.ResponseWriter, r *http.Request) {
	a.react(w, r, ledger.PostTarget(r.PathValue("postID")))
}

func (a *API) reactToComment(w http.ResponseWriter, r *http.Request) {
	a.react(w, r, ledger.CommentTarget(r.PathValue("postID"), r.PathValue("commentID")))
}

// react submits a like or dislike. Repeating the current reaction
// removes it; submitting the other kind switches it. The ledger
// serializes calls per (user, target), so a double-tap cannot corrupt
// the counters.
func (a *API) react(w http.ResponseWriter, r *http.Request, target ledger.Target) {
	type request struct {
		Kind string `json:"kind" validate:"required,oneof=like dislike"`
	}

	userID, _ := actor(r)
	if userID == "" {
		a.unauthenticated(w)
		return
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if valid := a.validateBody(w, &body); !valid {
		return
	}

	kind, err := a.Ledger.React(r.Context(), userID, target, ledger.Kind(body.Kind))
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	if err := a.Cache.RemovePost(r.Context(), target.PostID); err != nil {
		a.Logger.Error("Could not evict post from cache", "error", err.Error())
	}

	a.respond(w, http.StatusOK, reactionResponse{
		PostID:    target.PostID,
		CommentID: target.CommentID,
		UserID:    userID,
		Kind:      string(kind),
	})
}

func (a *API) getPostReaction(w http.ResponseWriter, r *http.Request) {
	a.getReaction(w, r, ledger.PostTarget(r.PathValue("postID")))
}

func (a *API) getCommentReaction(w http.ResponseWriter, r *http.Request) {
	a.getReaction(w, r, ledger.CommentTarget(r.PathValue("postID"), r.PathValue("commentID")))
}

// getReaction returns the user's current reaction so views can render
// liked/disliked state. Always answered from the ledger, never a
// cache.
func (a *API) getReaction(w http.ResponseWriter, r *http.Request, target ledger.Target) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID, _ = actor(r)
	}
	if userID == "" {
		a.unauthenticated(w)
		return
	}

	kind, err := a.Ledger.UserReaction(r.Context(), userID, target)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	a.respond(w, http.StatusOK, reactionResponse{
		PostID:    target.PostID,
		CommentID: target.CommentID,
		UserID:    userID,
		Kind:      string(kind),
	})
}
