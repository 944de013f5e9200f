package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/neilotoole/slogt"

	"github.com/crypto-comrades/social-api/api/validator"
	"github.com/crypto-comrades/social-api/ledger"
)

// Deleting a post removes its comments and every reaction referencing
// the post or its comments.
func TestAPI_deletePost_Cascade(t *testing.T) {
	store := newMemstore()
	postID := store.addPost(Post{UserID: "owner", Author: Author{Username: "satoshi"}, Title: "BTC rally", Content: "Up only", IsPublic: true})
	c1 := store.addComment(postID, Comment{UserID: "u2", Author: Author{Username: "vitalik"}, Content: "gm"})
	c2 := store.addComment(postID, Comment{UserID: "u3", Author: Author{Username: "hodler"}, Content: "gn"})

	srv := newStoreServer(t, store)
	defer srv.Close()

	// One reaction on the post, one on each comment.
	doReact(t, srv, "u1", "/posts/"+postID+"/reactions", "like")
	doReact(t, srv, "u2", "/posts/"+postID+"/comments/"+c1+"/reactions", "like")
	doReact(t, srv, "u3", "/posts/"+postID+"/comments/"+c2+"/reactions", "dislike")

	if n := store.reactionTotal(); n != 3 {
		t.Fatalf("Got %d reactions before delete, want 3", n)
	}

	req, _ := http.NewRequest("DELETE", srv.URL+"/posts/"+postID, nil)
	req.Header.Set("X-User-ID", "owner")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 204)

	req, _ = http.NewRequest("GET", srv.URL+"/posts/"+postID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 404)

	if n := store.reactionTotal(); n != 0 {
		t.Errorf("Got %d reactions after delete, want 0", n)
	}
	if n := store.reactionsOn(ledger.CommentTarget(postID, c1)); n != 0 {
		t.Errorf("Got %d reactions on deleted comment, want 0", n)
	}
}

// Deleting a comment removes the reactions on that comment only; the
// post, its other comments and their reactions survive.
func TestAPI_deleteComment_Cascade(t *testing.T) {
	store := newMemstore()
	postID := store.addPost(Post{UserID: "owner", Author: Author{Username: "satoshi"}, Title: "BTC rally", Content: "Up only", IsPublic: true})
	c1 := store.addComment(postID, Comment{UserID: "u2", Author: Author{Username: "vitalik"}, Content: "gm"})
	c2 := store.addComment(postID, Comment{UserID: "u3", Author: Author{Username: "hodler"}, Content: "gn"})

	srv := newStoreServer(t, store)
	defer srv.Close()

	doReact(t, srv, "u1", "/posts/"+postID+"/reactions", "like")
	doReact(t, srv, "u2", "/posts/"+postID+"/comments/"+c1+"/reactions", "like")
	doReact(t, srv, "u3", "/posts/"+postID+"/comments/"+c2+"/reactions", "dislike")

	req, _ := http.NewRequest("DELETE", srv.URL+"/posts/"+postID+"/comments/"+c1, nil)
	req.Header.Set("X-User-ID", "u2")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 204)

	post, err := store.GetPost(context.Background(), postID)
	if err != nil {
		t.Fatal(err)
	}
	if len(post.Comments) != 1 || post.Comments[0].ID != c2 {
		t.Errorf("Got comments %v, want only %s", post.Comments, c2)
	}

	if n := store.reactionsOn(ledger.CommentTarget(postID, c1)); n != 0 {
		t.Errorf("Got %d reactions on deleted comment, want 0", n)
	}
	if n := store.reactionsOn(ledger.PostTarget(postID)); n != 1 {
		t.Errorf("Got %d reactions on post, want 1", n)
	}
	if n := store.reactionsOn(ledger.CommentTarget(postID, c2)); n != 1 {
		t.Errorf("Got %d reactions on surviving comment, want 1", n)
	}
	if n := store.reactionTotal(); n != 2 {
		t.Errorf("Got %d reactions total, want 2", n)
	}
}

func newStoreServer(t *testing.T, store *memstore) *httptest.Server {
	t.Helper()
	a := &API{
		Logger: slogt.New(t),
		DB:     store,
		Cache:  &testcache{T: t},
		Ledger: &ledger.Ledger{Logger: slogt.New(t), Store: store},
		Val:    validator.New(),
	}
	return httptest.NewServer(a)
}

func doReact(t *testing.T, srv *httptest.Server, userID, path, kind string) {
	t.Helper()
	req, _ := http.NewRequest("POST", srv.URL+path, strings.NewReader(`{"kind": "`+kind+`"}`))
	req.Header.Set("X-User-ID", userID)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	checkStatus(t, resp.StatusCode, 200)
}

// memstore is an in-memory DB and reaction store with the same
// cascade behavior as the Postgres transactions: deleting a post takes
// its comments and every reaction under it, deleting a comment takes
// that comment's reactions only.
type memstore struct {
	mu        sync.Mutex
	posts     map[string]*Post
	reactions map[string]ledger.Reaction
}

func newMemstore() *memstore {
	return &memstore{
		posts:     make(map[string]*Post),
		reactions: make(map[string]ledger.Reaction),
	}
}

func (s *memstore) addPost(p Post) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.NewString()
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
	s.posts[p.ID] = &p
	return p.ID
}

func (s *memstore) addComment(postID string, c Comment) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.NewString()
	c.PostID = postID
	p := s.posts[postID]
	p.Comments = append(p.Comments, c)
	return c.ID
}

func (s *memstore) reactionTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reactions)
}

func (s *memstore) reactionsOn(target ledger.Target) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reactions {
		if r.Target == target {
			n++
		}
	}
	return n
}

func (s *memstore) copyLocked(p *Post) Post {
	out := *p
	out.Comments = append([]Comment{}, p.Comments...)
	return out
}

func (s *memstore) ListPosts(_ context.Context, filter PostFilter) ([]Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, s.copyLocked(p))
	}
	return out, nil
}

func (s *memstore) GetPost(_ context.Context, id string) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return Post{}, ErrPostNotFound
	}
	return s.copyLocked(p), nil
}

func (s *memstore) InsertPost(_ context.Context, p Post) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.NewString()
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
	s.posts[p.ID] = &p
	return p, nil
}

func (s *memstore) UpdatePost(_ context.Context, id string, upd PostUpdate) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return Post{}, ErrPostNotFound
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	return s.copyLocked(p), nil
}

func (s *memstore) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(s.posts, id)
	for rid, r := range s.reactions {
		if r.Target.PostID == id {
			delete(s.reactions, rid)
		}
	}
	return nil
}

func (s *memstore) InsertComment(_ context.Context, c Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[c.PostID]
	if !ok {
		return Comment{}, ErrPostNotFound
	}
	c.ID = uuid.NewString()
	p.Comments = append(p.Comments, c)
	return c, nil
}

func (s *memstore) UpdateComment(_ context.Context, postID, commentID, content string) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return Comment{}, ErrCommentNotFound
	}
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			p.Comments[i].Content = content
			return p.Comments[i], nil
		}
	}
	return Comment{}, ErrCommentNotFound
}

func (s *memstore) DeleteComment(_ context.Context, postID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return ErrCommentNotFound
	}
	idx := -1
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrCommentNotFound
	}
	p.Comments = append(p.Comments[:idx], p.Comments[idx+1:]...)
	for rid, r := range s.reactions {
		if r.Target.CommentID == commentID {
			delete(s.reactions, rid)
		}
	}
	return nil
}

func (s *memstore) ListHoldings(_ context.Context, userID string) ([]Holding, error) {
	return nil, nil
}

func (s *memstore) GetHolding(_ context.Context, id string) (Holding, error) {
	return Holding{}, ErrHoldingNotFound
}

func (s *memstore) InsertHolding(_ context.Context, h Holding) (Holding, error) {
	h.ID = uuid.NewString()
	return h, nil
}

func (s *memstore) UpdateHolding(_ context.Context, id string, upd HoldingUpdate) (Holding, error) {
	return Holding{}, ErrHoldingNotFound
}

func (s *memstore) DeleteHolding(_ context.Context, id string) error {
	return ErrHoldingNotFound
}

func (s *memstore) GetReaction(_ context.Context, userID string, target ledger.Target) (*ledger.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reactions {
		if r.UserID == userID && r.Target == target {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memstore) CreateReaction(_ context.Context, r ledger.Reaction) (ledger.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.bumpLocked(r.Target, r.Kind, +1); err != nil {
		return ledger.Reaction{}, err
	}
	r.ID = uuid.NewString()
	s.reactions[r.ID] = r
	return r, nil
}

func (s *memstore) SwitchReaction(_ context.Context, r ledger.Reaction, kind ledger.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.reactions[r.ID]
	if !ok {
		return ledger.ErrTargetNotFound
	}
	if err := s.bumpLocked(r.Target, stored.Kind, -1); err != nil {
		return err
	}
	if err := s.bumpLocked(r.Target, kind, +1); err != nil {
		return err
	}
	stored.Kind = kind
	s.reactions[r.ID] = stored
	return nil
}

func (s *memstore) DeleteReaction(_ context.Context, r ledger.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.reactions[r.ID]
	if !ok {
		return nil
	}
	delete(s.reactions, r.ID)
	return s.bumpLocked(r.Target, stored.Kind, -1)
}

func (s *memstore) CountReactions(_ context.Context, target ledger.Target) (likes, dislikes int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reactions {
		if r.Target != target {
			continue
		}
		if r.Kind == ledger.KindLike {
			likes++
		} else {
			dislikes++
		}
	}
	return likes, dislikes, nil
}

func (s *memstore) SetReactionCounts(_ context.Context, target ledger.Target, likes, dislikes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCountsLocked(target, likes, dislikes)
}

func (s *memstore) bumpLocked(target ledger.Target, kind ledger.Kind, delta int) error {
	likes, dislikes, ok := s.countsLocked(target)
	if !ok {
		return ledger.ErrTargetNotFound
	}
	if kind == ledger.KindLike {
		likes = max(likes+delta, 0)
	} else {
		dislikes = max(dislikes+delta, 0)
	}
	return s.setCountsLocked(target, likes, dislikes)
}

func (s *memstore) countsLocked(target ledger.Target) (likes, dislikes int, ok bool) {
	p, found := s.posts[target.PostID]
	if !found {
		return 0, 0, false
	}
	if target.Type == ledger.TargetComment {
		for i := range p.Comments {
			if p.Comments[i].ID == target.CommentID {
				return p.Comments[i].Likes, p.Comments[i].Dislikes, true
			}
		}
		return 0, 0, false
	}
	return p.Likes, p.Dislikes, true
}

func (s *memstore) setCountsLocked(target ledger.Target, likes, dislikes int) error {
	p, found := s.posts[target.PostID]
	if !found {
		return ledger.ErrTargetNotFound
	}
	if target.Type == ledger.TargetComment {
		for i := range p.Comments {
			if p.Comments[i].ID == target.CommentID {
				p.Comments[i].Likes, p.Comments[i].Dislikes = likes, dislikes
				return nil
			}
		}
		return ledger.ErrTargetNotFound
	}
	p.Likes, p.Dislikes = likes, dislikes
	return nil
}
