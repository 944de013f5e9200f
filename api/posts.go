package api

import (
	"net/http"
	"strconv"
	"time"
)

func (a *API) listPosts(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Posts []Post `json:"posts"`
	}

	q := r.URL.Query()
	filter := PostFilter{
		Visibility: q.Get("visibility"),
		AuthorID:   q.Get("author"),
		Limit:      pageSize,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			a.respondError(w, http.StatusBadRequest, errInvalidLimit, "limit must be between 1 and 100")
			return
		}
		filter.Limit = n
	}

	var posts []Post

	// The cache only ever holds recent public posts, so it can only
	// serve the unscoped feed. Scoped queries go straight to the DB.
	if filter.Visibility == "" && filter.AuthorID == "" {
		cached, err := a.Cache.ListPosts(r.Context())
		if err != nil {
			a.respondError(w, http.StatusInternalServerError, err, "Could not list posts")
			return
		}
		a.Logger.Info("Got posts from cache", "count", len(cached))

		filter.ExcludeIDs = make([]string, len(cached))
		for i, p := range cached {
			filter.ExcludeIDs[i] = p.ID
		}
		posts = cached
	}

	dbPosts, err := a.DB.ListPosts(r.Context(), filter)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list posts")
		return
	}
	a.Logger.Info("Got remaining posts from DB", "count", len(dbPosts))
	posts = append(posts, dbPosts...)

	posts = ApplyFeed(posts, FeedQuery{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	})

	// The cache merge can overshoot: up to a full cache page plus the
	// DB page. The limit is a hard cap on the response.
	if len(posts) > filter.Limit {
		posts = posts[:filter.Limit]
	}

	a.respond(w, http.StatusOK, response{Posts: posts})
}

func (a *API) createPost(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Title          string   `json:"title" validate:"required"`
		Content        string   `json:"content" validate:"required"`
		ImageURL       string   `json:"image_url"`
		Tags           []string `json:"tags"`
		CryptoMentions []string `json:"crypto_mentions"`
		IsPublic       bool     `json:"is_public"`
	}

	userID, author := actor(r)
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

	now := time.Now().UTC()
	post, err := a.DB.InsertPost(r.Context(), Post{
		UserID:         userID,
		Author:         author,
		Title:          body.Title,
		Content:        body.Content,
		ImageURL:       body.ImageURL,
		Tags:           normalizeTags(body.Tags),
		CryptoMentions: normalizeMentions(body.CryptoMentions),
		IsPublic:       body.IsPublic,
		Comments:       []Comment{},
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not insert post")
		return
	}

	if post.IsPublic {
		if err := a.Cache.InsertPost(r.Context(), post); err != nil {
			a.Logger.Error("Could not cache post", "error", err.Error())
		}
	}

	a.respond(w, http.StatusCreated, post)
}

func (a *API) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := a.DB.GetPost(r.Context(), r.PathValue("postID"))
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	a.respond(w, http.StatusOK, post)
}

func (a *API) updatePost(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Title          *string   `json:"title"`
		Content        *string   `json:"content"`
		ImageURL       *string   `json:"image_url"`
		Tags           *[]string `json:"tags"`
		CryptoMentions *[]string `json:"crypto_mentions"`
		IsPublic       *bool     `json:"is_public"`
	}

	userID, _ := actor(r)
	if userID == "" {
		a.unauthenticated(w)
		return
	}
	postID := r.PathValue("postID")

	post, err := a.DB.GetPost(r.Context(), postID)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	if post.UserID != userID {
		a.forbidden(w, "Only the author can edit a post")
		return
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	upd := PostUpdate{
		Title:    body.Title,
		Content:  body.Content,
		ImageURL: body.ImageURL,
		IsPublic: body.IsPublic,
	}
	if body.Tags != nil {
		tags := normalizeTags(*body.Tags)
		upd.Tags = &tags
	}
	if body.CryptoMentions != nil {
		mentions := normalizeMentions(*body.CryptoMentions)
		upd.CryptoMentions = &mentions
	}

	updated, err := a.DB.UpdatePost(r.Context(), postID, upd)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	if err := a.Cache.RemovePost(r.Context(), postID); err != nil {
		a.Logger.Error("Could not evict post from cache", "error", err.Error())
	}

	a.respond(w, http.StatusOK, updated)
}

func (a *API) deletePost(w http.ResponseWriter, r *http.Request) {
	userID, _ := actor(r)
	if userID == "" {
		a.unauthenticated(w)
		return
	}
	postID := r.PathValue("postID")

	post, err := a.DB.GetPost(r.Context(), postID)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	if post.UserID != userID {
		a.forbidden(w, "Only the author can delete a post")
		return
	}

	// Cascades to the post's comments and every reaction referencing
	// the post or its comments.
	if err := a.DB.DeletePost(r.Context(), postID); err != nil {
		a.respondDomainError(w, err)
		return
	}

	if err := a.Cache.RemovePost(r.Context(), postID); err != nil {
		a.Logger.Error("Could not evict post from cache", "error", err.Error())
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) createComment(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Content string `json:"content" validate:"required"`
	}

	userID, author := actor(r)
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

	now := time.Now().UTC()
	comment, err := a.DB.InsertComment(r.Context(), Comment{
		PostID:    r.PathValue("postID"),
		UserID:    userID,
		Author:    author,
		Content:   body.Content,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	if err := a.Cache.RemovePost(r.Context(), comment.PostID); err != nil {
		a.Logger.Error("Could not evict post from cache", "error", err.Error())
	}

	a.respond(w, http.StatusCreated, comment)
}

func (a *API) updateComment(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Content string `json:"content" validate:"required"`
	}

	userID, _ := actor(r)
	if userID == "" {
		a.unauthenticated(w)
		return
	}
	postID := r.PathValue("postID")
	commentID := r.PathValue("commentID")

	post, err := a.DB.GetPost(r.Context(), postID)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	comment, ok := findComment(post, commentID)
	if !ok {
		a.respondDomainError(w, ErrCommentNotFound)
		return
	}
	if comment.UserID != userID {
		a.forbidden(w, "Only the author can edit a comment")
		return
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if valid := a.validateBody(w, &body); !valid {
		return
	}

	updated, err := a.DB.UpdateComment(r.Context(), postID, commentID, body.Content)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	if err := a.Cache.RemovePost(r.Context(), postID); err != nil {
		a.Logger.Error("Could not evict post from cache", "error", err.Error())
	}

	a.respond(w, http.StatusOK, updated)
}

func (a *API) deleteComment(w http.ResponseWriter, r *http.Request) {
	userID, _ := actor(r)
	if userID == "" {
		a.unauthenticated(w)
		return
	}
	postID := r.PathValue("postID")
	commentID := r.PathValue("commentID")

	post, err := a.DB.GetPost(r.Context(), postID)
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	comment, ok := findComment(post, commentID)
	if !ok {
		a.respondDomainError(w, ErrCommentNotFound)
		return
	}
	// The post owner moderates comments under their post.
	if comment.UserID != userID && post.UserID != userID {
		a.forbidden(w, "Only the comment author or the post author can delete a comment")
		return
	}

	// Cascades to reactions on this comment only.
	if err := a.DB.DeleteComment(r.Context(), postID, commentID); err != nil {
		a.respondDomainError(w, err)
		return
	}

	if err := a.Cache.RemovePost(r.Context(), postID); err != nil {
		a.Logger.Error("Could not evict post from cache", "error", err.Error())
	}

	w.WriteHeader(http.StatusNoContent)
}

func findComment(post Post, commentID string) (Comment, bool) {
	for _, c := range post.Comments {
		if c.ID == commentID {
			return c, true
		}
	}
	return Comment{}, false
}
