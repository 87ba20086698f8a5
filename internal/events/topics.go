package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"feedsync/internal/core"
)

// Type selects the dispatch table entry of an envelope.
type Type string

type decoder interface {
	decode(raw json.RawMessage) (any, error)
}

// Topic binds an event type to its payload type and validation.
type Topic[T any] struct {
	name     Type
	validate func(T) error
}

func (t Topic[T]) Name() Type {
	return t.name
}

func (t Topic[T]) decode(raw json.RawMessage) (any, error) {
	var payload T
	if len(raw) == 0 {
		return nil, errors.New("missing data")
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if t.validate != nil {
		if err := t.validate(payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

var registry = map[Type]decoder{}

func topic[T any](name Type, validate func(T) error) Topic[T] {
	t := Topic[T]{name: name, validate: validate}
	registry[name] = t
	return t
}

// Post events.
var (
	PostCreated     = topic("post_create", core.Post.Validate)
	PostUpdated     = topic("post_update", PostUpdate.validate)
	PostUserUpdated = topic("post_user_update", PostUserUpdate.validate)
	PostDeleted     = topic("post_delete", PostDelete.validate)
)

// Friend request events, a namespace disjoint from posts.
var (
	FriendRequestNew       = topic("friend_request_new", validateFriendRequest)
	FriendRequestAccepted  = topic("friend_request_accepted", validateFriendRequest)
	FriendRequestRejected  = topic("friend_request_rejected", validateFriendRequest)
	FriendRequestCancelled = topic("friend_request_cancelled", validateFriendRequest)
	FriendRemoved          = topic("friend_removed", FriendRemoval.validate)
)

// Notification events.
var (
	NotificationCreated = topic("notification_create", validateNotification)
	NotificationDeleted = topic("notification_delete", NotificationDelete.validate)
)

// PostUpdate carries changed content and counters. Identity fields present on the wire
// are not decoded.
type PostUpdate struct {
	ID            core.PostID   `json:"id"`
	Description   *string       `json:"description"`
	Media         *[]core.Media `json:"media"`
	LikesCount    *int          `json:"likes_count"`
	CommentsCount *int          `json:"comments_count"`
	RepostsCount  *int          `json:"reposts_count"`
}

func (u PostUpdate) validate() error {
	if u.ID == 0 {
		return errors.New("id is required")
	}
	return nil
}

func (u PostUpdate) Patches() []core.Patch {
	content := core.ContentPatch{Description: u.Description}
	if u.Media != nil {
		content.Media = append([]core.Media{}, *u.Media...)
	}
	return []core.Patch{
		content,
		core.CounterPatch{
			LikesCount:    u.LikesCount,
			CommentsCount: u.CommentsCount,
			RepostsCount:  u.RepostsCount,
		},
	}
}

// PostUserUpdate is this viewer's relationship to a post changing elsewhere.
type PostUserUpdate struct {
	ID             core.PostID `json:"id"`
	LikedByUser    *bool       `json:"liked_by_user"`
	RepostedByUser *bool       `json:"reposted_by_user"`
	LikesCount     *int        `json:"likes_count"`
	RepostsCount   *int        `json:"reposts_count"`
}

func (u PostUserUpdate) validate() error {
	if u.ID == 0 {
		return errors.New("id is required")
	}
	if u.LikedByUser == nil && u.RepostedByUser == nil {
		return errors.New("liked_by_user or reposted_by_user is required")
	}
	return nil
}

func (u PostUserUpdate) Patches() []core.Patch {
	return []core.Patch{
		core.RelationshipPatch{LikedByUser: u.LikedByUser, RepostedByUser: u.RepostedByUser},
		core.CounterPatch{LikesCount: u.LikesCount, RepostsCount: u.RepostsCount},
	}
}

type PostDelete struct {
	ID core.PostID `json:"id"`
}

func (d PostDelete) validate() error {
	if d.ID == 0 {
		return errors.New("id is required")
	}
	return nil
}

type FriendRemoval struct {
	Username string `json:"username"`
}

func (f FriendRemoval) validate() error {
	if f.Username == "" {
		return errors.New("username is required")
	}
	return nil
}

type NotificationDelete struct {
	ID int64 `json:"id"`
}

func (d NotificationDelete) validate() error {
	if d.ID == 0 {
		return errors.New("id is required")
	}
	return nil
}

func validateFriendRequest(r core.FriendRequest) error {
	if r.ID == 0 {
		return errors.New("id is required")
	}
	if r.From == "" || r.To == "" {
		return fmt.Errorf("request %d: from_user and to_user are required", r.ID)
	}
	return nil
}

func validateNotification(n core.Notification) error {
	if n.ID == 0 {
		return errors.New("id is required")
	}
	return nil
}
