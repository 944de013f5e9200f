package ledger

import "time"

// A Kind is the type of reaction a user leaves on a target.
type Kind string

const (
	// KindNone means the user has no reaction on the target.
	KindNone    Kind = ""
	KindLike    Kind = "like"
	KindDislike Kind = "dislike"
)

// Valid reports whether the kind is one a user can submit.
func (k Kind) Valid() bool {
	return k == KindLike || k == KindDislike
}

// A TargetType discriminates what a reaction is attached to.
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
)

// A Target identifies a post or a comment for reaction purposes.
// Comment targets carry both the parent post ID and the comment ID.
type Target struct {
	Type      TargetType
	PostID    string
	CommentID string
}

// PostTarget returns a target addressing a post.
func PostTarget(postID string) Target {
	return Target{Type: TargetPost, PostID: postID}
}

// CommentTarget returns a target addressing a comment under a post.
func CommentTarget(postID, commentID string) Target {
	return Target{Type: TargetComment, PostID: postID, CommentID: commentID}
}

// key is the serialization key for a (user, target) pair.
func (t Target) key(userID string) string {
	return userID + "|" + string(t.Type) + "|" + t.PostID + "|" + t.CommentID
}

// A Reaction is one user's recorded like or dislike on a target. At
// most one reaction exists per (user, target) pair.
type Reaction struct {
	ID        string
	Target    Target
	UserID    string
	Kind      Kind
	CreatedAt time.Time
	UpdatedAt time.Time
}
