package core

import (
	"context"
)

// KeyValue is the durable client-side storage holding the session.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// PostQuery selects a slice of posts from the posts list endpoint.
type PostQuery struct {
	Type     Kind
	Parent   *PostID
	Author   string
	MaxPages int
}

type PostReader interface {
	GetPost(ctx context.Context, id PostID) (Post, error)
	ListPosts(ctx context.Context, query PostQuery) ([]Post, error)
	LikedPosts(ctx context.Context) ([]Post, error)
}

// LikeResult is the authoritative like state returned by the like endpoints.
type LikeResult struct {
	LikesCount int  `json:"likes_count"`
	Liked      bool `json:"liked"`
}

type PostWriter interface {
	CreatePost(ctx context.Context, description string) (Post, error)
	Reply(ctx context.Context, id PostID, description string) (Post, error)
	Quote(ctx context.Context, id PostID, description string) (Post, error)
	Like(ctx context.Context, id PostID) (LikeResult, error)
	Unlike(ctx context.Context, id PostID) (LikeResult, error)
	Repost(ctx context.Context, id PostID) (Post, error)
	Unrepost(ctx context.Context, id PostID) error
	DeletePost(ctx context.Context, id PostID) error
}

type ProfileSearcher interface {
	SearchProfiles(ctx context.Context, query string) ([]Profile, error)
}

type FriendsAPI interface {
	FriendRequests(ctx context.Context) ([]FriendRequest, error)
	Friends(ctx context.Context) ([]Profile, error)
}

type NotificationsAPI interface {
	Notifications(ctx context.Context) ([]Notification, error)
	MarkNotificationsRead(ctx context.Context) error
}

type TokenRefresher interface {
	RefreshToken(ctx context.Context, refresh string) (string, error)
}

// TokenSource hands out bearer tokens to the API client.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}
