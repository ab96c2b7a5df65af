package posts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xreader/feed-service/internal/events"
	"github.com/xreader/feed-service/internal/feed"
	"github.com/xreader/feed-service/internal/http/middleware"
	"github.com/xreader/feed-service/internal/storage/memory"
	"github.com/xreader/feed-service/internal/types"
)

var reviewContent = strings.Repeat("A review long enough to clear the minimum length. ", 2)

// stubPublisher records fan-out calls without a hub.
type stubPublisher struct {
	created  []types.Post
	liked    []types.PostLikedEvent
	reposted []types.PostRepostedEvent
}

var _ events.Publisher = (*stubPublisher)(nil)

func (s *stubPublisher) PublishPostCreated(senderSessionID string, post types.Post, author types.PublicUser) {
	s.created = append(s.created, post)
}

func (s *stubPublisher) PublishPostLiked(senderSessionID string, data types.PostLikedEvent) {
	s.liked = append(s.liked, data)
}

func (s *stubPublisher) PublishPostReposted(senderSessionID string, data types.PostRepostedEvent) {
	s.reposted = append(s.reposted, data)
}

func setup(t *testing.T) (*feed.Engine, *memory.Memory, *stubPublisher) {
	t.Helper()
	store := memory.NewMemory()
	require.NoError(t, store.CreateUser(types.User{ID: "alice", Username: "alice", FullName: "Alice"}))
	require.NoError(t, store.CreateUser(types.User{ID: "bob", Username: "bob", FullName: "Bob"}))
	return feed.NewEngine(store), store, &stubPublisher{}
}

func authedRequest(method, target, userID string, body []byte) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
	return r.WithContext(ctx)
}

func TestCreate(t *testing.T) {
	engine, store, publisher := setup(t)

	body, _ := json.Marshal(types.PostCreateRequest{
		BookName:    "Dune",
		ContentText: reviewContent,
	})
	r := authedRequest(http.MethodPost, "/posts", "alice", body)
	w := httptest.NewRecorder()

	Create(engine, store, publisher)(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, publisher.created, 1)
	assert.Equal(t, "alice", publisher.created[0].AuthorID)
}

func TestCreate_ShortContent(t *testing.T) {
	engine, store, publisher := setup(t)

	body, _ := json.Marshal(types.PostCreateRequest{
		BookName:    "Dune",
		ContentText: strings.Repeat("x", types.MinContentLength-1),
	})
	r := authedRequest(http.MethodPost, "/posts", "alice", body)
	w := httptest.NewRecorder()

	Create(engine, store, publisher)(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, publisher.created)
}

func TestCreate_EmptyBody(t *testing.T) {
	engine, store, publisher := setup(t)

	r := authedRequest(http.MethodPost, "/posts", "alice", nil)
	w := httptest.NewRecorder()

	Create(engine, store, publisher)(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreate_Unauthenticated(t *testing.T) {
	engine, store, publisher := setup(t)

	r := httptest.NewRequest(http.MethodPost, "/posts", nil)
	w := httptest.NewRecorder()

	Create(engine, store, publisher)(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLike_TogglesOnOriginal(t *testing.T) {
	engine, store, publisher := setup(t)

	post, err := engine.CreatePost("alice", "Dune", reviewContent)
	require.NoError(t, err)

	r := authedRequest(http.MethodPost, "/posts/"+post.ID+"/like", "bob", nil)
	r.SetPathValue("id", post.ID)
	w := httptest.NewRecorder()

	Like(engine, store, publisher)(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, publisher.liked, 1)
	assert.True(t, publisher.liked[0].Liked)
	assert.Equal(t, 1, publisher.liked[0].LikesCount)
	assert.Equal(t, post.ID, publisher.liked[0].OriginalPostID)
}

func TestLike_MissingPost(t *testing.T) {
	engine, store, publisher := setup(t)

	r := authedRequest(http.MethodPost, "/posts/missing/like", "bob", nil)
	r.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	Like(engine, store, publisher)(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, publisher.liked)
}

func TestRepost_ToggleOnAndOff(t *testing.T) {
	engine, store, publisher := setup(t)

	post, err := engine.CreatePost("alice", "Dune", reviewContent)
	require.NoError(t, err)

	r := authedRequest(http.MethodPost, "/posts/"+post.ID+"/repost", "bob", nil)
	r.SetPathValue("id", post.ID)
	w := httptest.NewRecorder()
	Repost(engine, store, publisher)(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, publisher.reposted, 1)
	assert.Equal(t, types.RepostActionCreate, publisher.reposted[0].Action)
	require.NotNil(t, publisher.reposted[0].Repost)

	r = authedRequest(http.MethodPost, "/posts/"+post.ID+"/repost", "bob", nil)
	r.SetPathValue("id", post.ID)
	w = httptest.NewRecorder()
	Repost(engine, store, publisher)(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, publisher.reposted, 2)
	assert.Equal(t, types.RepostActionDelete, publisher.reposted[1].Action)
}

func TestDelete_NotTheAuthor(t *testing.T) {
	engine, store, _ := setup(t)

	post, err := engine.CreatePost("alice", "Dune", reviewContent)
	require.NoError(t, err)

	r := authedRequest(http.MethodDelete, "/posts/"+post.ID, "bob", nil)
	r.SetPathValue("id", post.ID)
	w := httptest.NewRecorder()

	Delete(engine)(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)

	// The post is still there.
	_, err = store.GetPostByID(post.ID)
	assert.NoError(t, err)
}

func TestDelete_ByAuthor(t *testing.T) {
	engine, store, _ := setup(t)

	post, err := engine.CreatePost("alice", "Dune", reviewContent)
	require.NoError(t, err)

	r := authedRequest(http.MethodDelete, "/posts/"+post.ID, "alice", nil)
	r.SetPathValue("id", post.ID)
	w := httptest.NewRecorder()

	Delete(engine)(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	_, err = store.GetPostByID(post.ID)
	assert.Error(t, err)
}
