package cache

import (
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xreader/feed-service/internal/storage/memory"
	"github.com/xreader/feed-service/internal/types"
)

var cacheContent = strings.Repeat("A review long enough to clear the minimum length. ", 2)

// setupTestRedis creates an in-memory Redis server for testing
func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
		DB:   0,
	})

	cleanup := func() {
		redisClient.Close()
		mr.Close()
	}

	return redisClient, cleanup
}

func setupCache(t *testing.T) (*CacheService, *memory.Memory, func()) {
	redisClient, cleanup := setupTestRedis(t)
	store := memory.NewMemory()
	return NewCacheService(store, redisClient), store, cleanup
}

func testPost(id string) types.Post {
	return types.Post{
		ID:          id,
		AuthorID:    "alice",
		BookName:    "Dune",
		ContentText: cacheContent,
		Likes:       []string{},
		Reposts:     []string{},
	}
}

func TestGetPostByID_ReadThrough(t *testing.T) {
	cache, store, cleanup := setupCache(t)
	defer cleanup()

	require.NoError(t, store.CreatePost(testPost("p1")))

	// First read populates the cache.
	post, err := cache.GetPostByID("p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", post.ID)

	// Remove from the backing store; the cached copy still serves.
	_, err = store.DeletePost("p1")
	require.NoError(t, err)

	post, err = cache.GetPostByID("p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", post.ID)
}

func TestDeletePost_InvalidatesCache(t *testing.T) {
	cache, store, cleanup := setupCache(t)
	defer cleanup()

	require.NoError(t, store.CreatePost(testPost("p1")))

	_, err := cache.GetPostByID("p1")
	require.NoError(t, err)

	deleted, err := cache.DeletePost("p1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = cache.GetPostByID("p1")
	require.Error(t, err)
}

func TestToggle_WritesThrough(t *testing.T) {
	cache, store, cleanup := setupCache(t)
	defer cleanup()

	require.NoError(t, store.CreatePost(testPost("p1")))

	// Prime the cache with the unliked state.
	post, err := cache.GetPostByID("p1")
	require.NoError(t, err)
	assert.Empty(t, post.Likes)

	// The toggle must refresh the cached entry, not leave it stale.
	_, err = cache.AddLike("p1", "bob")
	require.NoError(t, err)

	post, err = cache.GetPostByID("p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, post.Likes)
}

func TestGetAllPosts_CachesDefaultPageOnly(t *testing.T) {
	cache, store, cleanup := setupCache(t)
	defer cleanup()

	require.NoError(t, store.CreatePost(testPost("p1")))

	// Default page gets cached.
	posts, err := cache.GetAllPosts(20, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	require.NoError(t, store.CreatePost(testPost("p2")))

	// Cached default page is still the old one.
	posts, err = cache.GetAllPosts(20, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	// Non-default pages bypass the cache.
	posts, err = cache.GetAllPosts(50, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestCreatePost_InvalidatesGlobalFeed(t *testing.T) {
	cache, store, cleanup := setupCache(t)
	defer cleanup()

	require.NoError(t, store.CreatePost(testPost("p1")))

	posts, err := cache.GetAllPosts(20, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	// Creating through the cache drops the cached page.
	require.NoError(t, cache.CreatePost(testPost("p2")))

	posts, err = cache.GetAllPosts(20, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestUpdateUser_InvalidatesUser(t *testing.T) {
	cache, store, cleanup := setupCache(t)
	defer cleanup()

	user := types.User{ID: "u1", Username: "alice", FullName: "Alice"}
	require.NoError(t, store.CreateUser(user))

	cached, err := cache.GetUserByID("u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", cached.FullName)

	user.FullName = "Alice Cooper"
	require.NoError(t, cache.UpdateUser(user))

	cached, err = cache.GetUserByID("u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice Cooper", cached.FullName)
}

func TestFlattenRepostChains_InvalidatesFeedOnRepair(t *testing.T) {
	cache, store, cleanup := setupCache(t)
	defer cleanup()

	require.NoError(t, store.CreatePost(testPost("p1")))
	repost := testPost("r1")
	repost.OriginalPostID = "gone"
	require.NoError(t, store.CreatePost(repost))

	_, err := cache.GetAllPosts(20, 0)
	require.NoError(t, err)

	count, err := cache.FlattenRepostChains()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Repair dropped the cached page; the healed post is visible.
	posts, err := cache.GetAllPosts(20, 0)
	require.NoError(t, err)
	for _, p := range posts {
		assert.False(t, p.IsRepost())
	}
}
