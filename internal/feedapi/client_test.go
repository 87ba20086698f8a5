package feedapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"feedsync/internal/core"
	"feedsync/internal/feedapi"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	access    atomic.Value
	refreshed atomic.Int32
	next      string
	err       error
}

func newTokens(access, next string) *fakeTokens {
	t := &fakeTokens{next: next}
	t.access.Store(access)
	return t
}

func (f *fakeTokens) AccessToken(context.Context) (string, error) {
	return f.access.Load().(string), nil
}

func (f *fakeTokens) Refresh(context.Context) (string, error) {
	f.refreshed.Add(1)
	if f.err != nil {
		return "", f.err
	}
	f.access.Store(f.next)
	return f.next, nil
}

func newClient(t *testing.T, handler http.HandlerFunc, tokens core.TokenSource) *feedapi.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := feedapi.NewClient(&feedapi.ClientConfig{
		BaseURL: server.URL + "/api",
		Tokens:  tokens,
	})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_RefreshesOnceOn401(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	tokens := newTokens("stale", "fresh")

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "/api/posts/7/", r.URL.Path)

		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
			return
		}
		writeJSON(w, http.StatusOK, core.Post{ID: 7, Kind: core.KindPost, Description: "hi"})
	}, tokens)

	post, err := client.GetPost(t.Context(), 7)

	require.NoError(t, err)
	require.Equal(t, "hi", post.Description)
	require.Equal(t, int32(1), tokens.refreshed.Load())
	require.Equal(t, int32(2), hits.Load())
}

func TestClient_SecondUnauthorizedIsReturned(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	tokens := newTokens("stale", "also-stale")

	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "nope"})
	}, tokens)

	_, err := client.GetPost(t.Context(), 1)

	require.ErrorIs(t, err, core.ErrUnauthorized)
	require.True(t, feedapi.IsStatus(err, http.StatusUnauthorized))
	require.Equal(t, int32(1), tokens.refreshed.Load())
	require.Equal(t, int32(2), hits.Load())
}

func TestClient_FailedRefreshIsUnauthorized(t *testing.T) {
	t.Parallel()

	tokens := newTokens("stale", "")
	tokens.err = errors.New("refresh token expired")

	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, nil)
	}, tokens)

	err := client.DeletePost(t.Context(), 1)

	require.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestClient_NonSuccessIsAnError(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/posts/404/" {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
	}, nil)

	_, err := client.GetPost(t.Context(), 404)
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = client.Like(t.Context(), 1)

	var apiErr *feedapi.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Equal(t, http.MethodPost, apiErr.Method)
	require.Contains(t, apiErr.Body, "boom")
}

func TestClient_ListPostsFollowsPages(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/posts/", r.URL.Path)

		if r.URL.Query().Get("page") == "2" {
			writeJSON(w, http.StatusOK, feedapi.Page[core.Post]{
				Count:   3,
				Results: []core.Post{{ID: 1, Kind: core.KindPost}},
			})
			return
		}

		require.Equal(t, "reply", r.URL.Query().Get("type"))
		require.Equal(t, "9", r.URL.Query().Get("parent"))
		require.Equal(t, "carol", r.URL.Query().Get("author__username"))

		next := fmt.Sprintf("%s/api/posts/?page=2", server.URL)
		writeJSON(w, http.StatusOK, feedapi.Page[core.Post]{
			Count:   3,
			Next:    &next,
			Results: []core.Post{{ID: 3, Kind: core.KindPost}, {ID: 2, Kind: core.KindPost}},
		})
	}))
	t.Cleanup(server.Close)

	client := feedapi.NewClient(&feedapi.ClientConfig{BaseURL: server.URL + "/api"})

	query := core.PostQuery{Type: core.KindReply, Parent: lo.ToPtr(core.PostID(9)), Author: "carol"}

	posts, err := client.ListPosts(t.Context(), query)
	require.NoError(t, err)
	require.Equal(t, []core.PostID{3, 2, 1}, lo.Map(posts, func(p core.Post, _ int) core.PostID { return p.ID }))

	query.MaxPages = 1
	posts, err = client.ListPosts(t.Context(), query)
	require.NoError(t, err)
	require.Len(t, posts, 2)
}

func TestClient_LikeAndUnlike(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/posts/5/like/", r.URL.Path)
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		switch r.Method {
		case http.MethodPost:
			writeJSON(w, http.StatusCreated, core.LikeResult{LikesCount: 4, Liked: true})
		case http.MethodDelete:
			writeJSON(w, http.StatusOK, core.LikeResult{LikesCount: 3})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}, newTokens("token", ""))

	liked, err := client.Like(t.Context(), 5)
	require.NoError(t, err)
	require.Equal(t, core.LikeResult{LikesCount: 4, Liked: true}, liked)

	unliked, err := client.Unlike(t.Context(), 5)
	require.NoError(t, err)
	require.Equal(t, core.LikeResult{LikesCount: 3}, unliked)
}

func TestClient_RefreshToken(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/token/refresh/", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body["refresh"] != "good" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access": "new-access"})
	}, nil)

	access, err := client.RefreshToken(t.Context(), "good")
	require.NoError(t, err)
	require.Equal(t, "new-access", access)

	_, err = client.RefreshToken(t.Context(), "bad")
	require.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestClient_FriendsAndNotifications(t *testing.T) {
	t.Parallel()

	var accepted atomic.Bool

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/friend-requests/":
			writeJSON(w, http.StatusOK, feedapi.Page[core.FriendRequest]{
				Results: []core.FriendRequest{{ID: 1, From: "alice", To: "bob", Status: core.FriendRequestPending}},
			})
		case "/api/friend-requests/1/accept/":
			require.Equal(t, http.MethodPost, r.Method)
			accepted.Store(true)
			w.WriteHeader(http.StatusNoContent)
		case "/api/notifications/":
			writeJSON(w, http.StatusOK, feedapi.Page[core.Notification]{
				Results: []core.Notification{{ID: 10, Type: "like"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, nil)

	requests, err := client.FriendRequests(t.Context())
	require.NoError(t, err)
	require.Len(t, requests, 1)

	require.NoError(t, client.AcceptFriendRequest(t.Context(), 1))
	require.True(t, accepted.Load())

	notifications, err := client.Notifications(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(10), notifications[0].ID)

	require.ErrorIs(t, client.MarkNotificationsRead(t.Context()), core.ErrNotFound)
}
