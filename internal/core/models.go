package core

import (
	"fmt"
	"slices"
	"time"
)

type PostID int64

// Kind controls the relationship semantics of a post. It never changes after creation.
type Kind string

const (
	KindPost   Kind = "post"
	KindRepost Kind = "repost"
	KindQuote  Kind = "quote"
	KindReply  Kind = "reply"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPost, KindRepost, KindQuote, KindReply:
		return true
	default:
		return false
	}
}

// HasParent reports whether posts of this kind point at another post.
func (k Kind) HasParent() bool {
	return k == KindRepost || k == KindQuote || k == KindReply
}

// Author is denormalized from the author's profile when the post is written.
type Author struct {
	Username    string `json:"username"`
	DisplayName string `json:"name"`
	AvatarURL   string `json:"profile_picture"`
}

type Media struct {
	ID   int64  `json:"id"`
	URL  string `json:"file"`
	Type string `json:"media_type"`
}

// Counters are the interactive, mutable part of a post.
type Counters struct {
	LikesCount     int  `json:"likes_count"`
	CommentsCount  int  `json:"comments_count"`
	RepostsCount   int  `json:"reposts_count"`
	LikedByUser    bool `json:"liked_by_user"`
	RepostedByUser bool `json:"reposted_by_user"`
}

// Post is the unit of storage of the entity store.
type Post struct {
	ID        PostID    `json:"id"`
	Kind      Kind      `json:"type"`
	Parent    *PostID   `json:"parent"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"created_at"`

	Description string  `json:"description"`
	Media       []Media `json:"media"`

	Counters
}

// ParentID returns the parent id and whether the post has one.
func (p Post) ParentID() (PostID, bool) {
	if p.Parent == nil {
		return 0, false
	}
	return *p.Parent, true
}

func (p Post) Validate() error {
	if p.ID == 0 {
		return fmt.Errorf("%w: id is required", ErrInvalidPost)
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPost, p.Kind)
	}
	if p.Kind.HasParent() && p.Parent == nil {
		return fmt.Errorf("%w: %s %d has no parent", ErrInvalidPost, p.Kind, p.ID)
	}
	return nil
}

// Equal compares two records field by field. Timestamps are compared as instants.
func (p Post) Equal(other Post) bool {
	if p.ID != other.ID || p.Kind != other.Kind || p.Author != other.Author {
		return false
	}
	if !p.CreatedAt.Equal(other.CreatedAt) {
		return false
	}
	if (p.Parent == nil) != (other.Parent == nil) {
		return false
	}
	if p.Parent != nil && *p.Parent != *other.Parent {
		return false
	}
	return p.Description == other.Description &&
		slices.Equal(p.Media, other.Media) &&
		p.Counters == other.Counters
}

// Before reports whether p is displayed before other: newest first, ties broken by id.
func (p Post) Before(other Post) bool {
	if !p.CreatedAt.Equal(other.CreatedAt) {
		return p.CreatedAt.After(other.CreatedAt)
	}
	return p.ID > other.ID
}

// Profile is the public profile returned by the profile endpoints.
type Profile struct {
	Username    string `json:"username"`
	DisplayName string `json:"name"`
	AvatarURL   string `json:"profile_picture"`
	Bio         string `json:"bio"`
	IsFriend    bool   `json:"is_friend"`
}

type FriendRequestStatus string

const (
	FriendRequestPending   FriendRequestStatus = "pending"
	FriendRequestAccepted  FriendRequestStatus = "accepted"
	FriendRequestRejected  FriendRequestStatus = "rejected"
	FriendRequestCancelled FriendRequestStatus = "cancelled"
)

type FriendRequest struct {
	ID        int64               `json:"id"`
	From      string              `json:"from_user"`
	To        string              `json:"to_user"`
	Status    FriendRequestStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
}

type Notification struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Actor     Author    `json:"actor"`
	PostID    *PostID   `json:"post,omitempty"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
