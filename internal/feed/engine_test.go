package feed

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xreader/feed-service/internal/errs"
	"github.com/xreader/feed-service/internal/storage/memory"
	"github.com/xreader/feed-service/internal/types"
)

var validContent = strings.Repeat("An honest review of a book I could not put down. ", 2)

func newTestEngine(t *testing.T) (*Engine, *memory.Memory) {
	t.Helper()
	store := memory.NewMemory()
	return NewEngine(store), store
}

func seedPost(t *testing.T, e *Engine, authorID string) types.Post {
	t.Helper()
	post, err := e.CreatePost(authorID, "The Go Programming Language", validContent)
	require.NoError(t, err)
	return post
}

func TestCreatePost(t *testing.T) {
	engine, _ := newTestEngine(t)

	post, err := engine.CreatePost("alice", "Dune", validContent)
	require.NoError(t, err)

	assert.Equal(t, "alice", post.AuthorID)
	assert.Equal(t, "Dune", post.BookName)
	assert.False(t, post.IsRepost())
	assert.Empty(t, post.Likes)
	assert.Empty(t, post.Reposts)
}

func TestCreatePost_ContentTooShort(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.CreatePost("alice", "Dune", strings.Repeat("x", types.MinContentLength-1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestCreatePost_CountsCharactersNotBytes(t *testing.T) {
	engine, _ := newTestEngine(t)

	// 59 two-byte runes are 118 bytes but still one character short.
	_, err := engine.CreatePost("alice", "Dune", strings.Repeat("é", types.MinContentLength-1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	post, err := engine.CreatePost("alice", "Dune", strings.Repeat("é", types.MinContentLength))
	require.NoError(t, err)
	assert.NotEmpty(t, post.ID)
}

func TestCreatePost_TrimsBeforeLengthCheck(t *testing.T) {
	engine, _ := newTestEngine(t)

	padded := "   " + strings.Repeat("x", types.MinContentLength-1) + "   "
	_, err := engine.CreatePost("alice", "Dune", padded)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestCreatePost_EmptyBookName(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.CreatePost("alice", "   ", validContent)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestResolveOriginal_OnOriginal(t *testing.T) {
	engine, _ := newTestEngine(t)
	original := seedPost(t, engine, "alice")

	resolved, via, err := engine.ResolveOriginal(original.ID)
	require.NoError(t, err)

	assert.Equal(t, original.ID, resolved.ID)
	assert.Nil(t, via)
}

func TestResolveOriginal_MissingPost(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, _, err := engine.ResolveOriginal("no-such-post")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestResolveOriginal_ViaRepost(t *testing.T) {
	engine, _ := newTestEngine(t)
	original := seedPost(t, engine, "alice")

	result, err := engine.ToggleRepost("bob", original.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Repost)

	resolved, via, err := engine.ResolveOriginal(result.Repost.ID)
	require.NoError(t, err)

	assert.Equal(t, original.ID, resolved.ID)
	require.NotNil(t, via)
	assert.Equal(t, result.Repost.ID, via.ID)
}

func TestResolveOriginal_HealsDanglingRef(t *testing.T) {
	engine, store := newTestEngine(t)

	// A repost whose original never existed, as left behind by a crash
	// between unlink and delete.
	dangling := types.Post{
		ID:             "repost-1",
		AuthorID:       "bob",
		OriginalPostID: "gone",
		BookName:       "Dune",
		ContentText:    validContent,
		Likes:          []string{},
		Reposts:        []string{},
	}
	require.NoError(t, store.CreatePost(dangling))

	resolved, via, err := engine.ResolveOriginal("repost-1")
	require.NoError(t, err)

	assert.Equal(t, "repost-1", resolved.ID)
	assert.False(t, resolved.IsRepost())
	assert.Nil(t, via)

	// The repair must be persisted, not just returned.
	stored, err := store.GetPostByID("repost-1")
	require.NoError(t, err)
	assert.False(t, stored.IsRepost())
}

func TestResolveOriginal_FlattensChain(t *testing.T) {
	engine, store := newTestEngine(t)
	original := seedPost(t, engine, "alice")

	// Hand-build a repost-of-repost chain; the engine itself never
	// creates one, but old or repaired data might contain it.
	middle := types.Post{
		ID: "middle", AuthorID: "bob", OriginalPostID: original.ID,
		BookName: original.BookName, ContentText: original.ContentText,
		Likes: []string{}, Reposts: []string{},
	}
	leaf := types.Post{
		ID: "leaf", AuthorID: "carol", OriginalPostID: "middle",
		BookName: original.BookName, ContentText: original.ContentText,
		Likes: []string{}, Reposts: []string{},
	}
	require.NoError(t, store.CreatePost(middle))
	require.NoError(t, store.CreatePost(leaf))

	resolved, via, err := engine.ResolveOriginal("leaf")
	require.NoError(t, err)

	assert.Equal(t, original.ID, resolved.ID)
	require.NotNil(t, via)
	assert.Equal(t, "leaf", via.ID)
}

func TestToggleLike(t *testing.T) {
	engine, _ := newTestEngine(t)
	original := seedPost(t, engine, "alice")

	result, err := engine.ToggleLike(original.ID, "bob")
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.Equal(t, 1, result.LikesCount)
	assert.Equal(t, original.ID, result.OriginalPostID)

	// Toggling again removes the like.
	result, err = engine.ToggleLike(original.ID, "bob")
	require.NoError(t, err)
	assert.False(t, result.Liked)
	assert.Equal(t, 0, result.LikesCount)
}

func TestToggleLike_ViaRepostLandsOnOriginal(t *testing.T) {
	engine, store := newTestEngine(t)
	original := seedPost(t, engine, "alice")

	repostResult, err := engine.ToggleRepost("bob", original.ID)
	require.NoError(t, err)
	require.NotNil(t, repostResult.Repost)

	// Like through the repost id.
	likeResult, err := engine.ToggleLike(repostResult.Repost.ID, "carol")
	require.NoError(t, err)
	assert.True(t, likeResult.Liked)
	assert.Equal(t, original.ID, likeResult.OriginalPostID)

	// The like lives on the original; the repost record's own set is
	// untouched.
	storedOriginal, err := store.GetPostByID(original.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, storedOriginal.Likes)

	storedRepost, err := store.GetPostByID(repostResult.Repost.ID)
	require.NoError(t, err)
	assert.Empty(t, storedRepost.Likes)

	// Unliking via the original id removes the same membership.
	likeResult, err = engine.ToggleLike(original.ID, "carol")
	require.NoError(t, err)
	assert.False(t, likeResult.Liked)
	assert.Equal(t, 0, likeResult.LikesCount)
}

func TestToggleLike_MissingPost(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.ToggleLike("no-such-post", "bob")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestToggleRepost(t *testing.T) {
	engine, store := newTestEngine(t)
	original := seedPost(t, engine, "alice")

	result, err := engine.ToggleRepost("bob", original.ID)
	require.NoError(t, err)
	assert.True(t, result.Reposted)
	assert.Equal(t, 1, result.RepostsCount)
	require.NotNil(t, result.Repost)
	assert.Equal(t, original.ID, result.Repost.OriginalPostID)
	assert.Equal(t, "bob", result.Repost.AuthorID)

	// Toggling again removes both the repost record and the mark.
	repostID := result.Repost.ID
	result, err = engine.ToggleRepost("bob", original.ID)
	require.NoError(t, err)
	assert.False(t, result.Reposted)
	assert.Equal(t, 0, result.RepostsCount)
	assert.Nil(t, result.Repost)

	_, err = store.GetPostByID(repostID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestToggleRepost_OfRepostReferencesOriginal(t *testing.T) {
	engine, _ := newTestEngine(t)
	original := seedPost(t, engine, "alice")

	bobResult, err := engine.ToggleRepost("bob", original.ID)
	require.NoError(t, err)
	require.NotNil(t, bobResult.Repost)

	// Carol reposts Bob's repost; her record must reference the
	// original, never the intermediate repost.
	carolResult, err := engine.ToggleRepost("carol", bobResult.Repost.ID)
	require.NoError(t, err)
	require.NotNil(t, carolResult.Repost)
	assert.Equal(t, original.ID, carolResult.Repost.OriginalPostID)
	assert.Equal(t, 2, carolResult.RepostsCount)
}

func TestToggleRepost_ViaRepostTogglesOff(t *testing.T) {
	engine, _ := newTestEngine(t)
	original := seedPost(t, engine, "alice")

	bobResult, err := engine.ToggleRepost("bob", original.ID)
	require.NoError(t, err)
	require.NotNil(t, bobResult.Repost)

	carolResult, err := engine.ToggleRepost("carol", original.ID)
	require.NoError(t, err)
	require.NotNil(t, carolResult.Repost)

	// Carol toggles again through Bob's repost id; both resolve to the
	// same original so her repost comes off.
	result, err := engine.ToggleRepost("carol", bobResult.Repost.ID)
	require.NoError(t, err)
	assert.False(t, result.Reposted)
	assert.Equal(t, 1, result.RepostsCount)
}

func TestDeletePost_OnlyAuthor(t *testing.T) {
	engine, _ := newTestEngine(t)
	original := seedPost(t, engine, "alice")

	_, err := engine.DeletePost(original.ID, "bob")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))
}

func TestDeletePost_UnlinksReposts(t *testing.T) {
	engine, store := newTestEngine(t)
	original := seedPost(t, engine, "alice")

	bobResult, err := engine.ToggleRepost("bob", original.ID)
	require.NoError(t, err)
	carolResult, err := engine.ToggleRepost("carol", original.ID)
	require.NoError(t, err)

	deleted, err := engine.DeletePost(original.ID, "alice")
	require.NoError(t, err)
	assert.True(t, deleted)

	// Both reposts survive as independent originals.
	for _, repost := range []*types.Post{bobResult.Repost, carolResult.Repost} {
		require.NotNil(t, repost)
		stored, err := store.GetPostByID(repost.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsRepost())
	}

	_, err = store.GetPostByID(original.ID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestDeletePost_MissingPost(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.DeletePost("no-such-post", "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestLikeSurvivorAfterOriginalDeleted(t *testing.T) {
	engine, _ := newTestEngine(t)
	original := seedPost(t, engine, "alice")

	bobResult, err := engine.ToggleRepost("bob", original.ID)
	require.NoError(t, err)
	require.NotNil(t, bobResult.Repost)

	deleted, err := engine.DeletePost(original.ID, "alice")
	require.NoError(t, err)
	require.True(t, deleted)

	// The surviving repost now takes likes as its own original.
	result, err := engine.ToggleLike(bobResult.Repost.ID, "carol")
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.Equal(t, bobResult.Repost.ID, result.OriginalPostID)
}
