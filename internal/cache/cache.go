package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/xreader/feed-service/internal/storage"
	"github.com/xreader/feed-service/internal/types"
)

// CacheService wraps storage with Redis caching. It implements
// storage.Storage so it can sit transparently between the engine and the
// database. Reads on the hot paths (posts by id, users by id, the
// default global feed page) go through Redis; every mutation writes
// through or invalidates, so a toggle is visible on the next read. The
// feed page TTL is short on purpose: reconnecting realtime clients
// re-fetch the feed to reconcile.
type CacheService struct {
	storage storage.Storage
	redis   *redis.Client
}

var _ storage.Storage = (*CacheService)(nil)

// NewCacheService creates a new cache service
func NewCacheService(storage storage.Storage, redisClient *redis.Client) *CacheService {
	return &CacheService{
		storage: storage,
		redis:   redisClient,
	}
}

// Cache key patterns
const (
	PostKey       = "post:%s"     // post:postID
	UserKey       = "user:%s"     // user:userID
	GlobalFeedKey = "feed:global" // default global feed page
)

// Cache durations
const (
	PostCacheDuration = 10 * time.Minute
	UserCacheDuration = 5 * time.Minute
	FeedCacheDuration = 45 * time.Second // Hot feed cache (30-60s)
)

func (c *CacheService) GetPostByID(postID string) (types.Post, error) {
	ctx := context.Background()
	key := fmt.Sprintf(PostKey, postID)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var post types.Post
		if err := json.Unmarshal([]byte(cached), &post); err == nil {
			return post, nil
		}
	}

	post, err := c.storage.GetPostByID(postID)
	if err != nil {
		return post, err
	}

	c.cachePost(ctx, post)
	return post, nil
}

func (c *CacheService) GetUserByID(userID string) (types.User, error) {
	ctx := context.Background()
	key := fmt.Sprintf(UserKey, userID)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var user types.User
		if err := json.Unmarshal([]byte(cached), &user); err == nil {
			return user, nil
		}
	}

	user, err := c.storage.GetUserByID(userID)
	if err != nil {
		return user, err
	}

	data, _ := json.Marshal(user)
	c.redis.Set(ctx, key, data, UserCacheDuration)
	return user, nil
}

// GetAllPosts caches only the default page; other pages pass through.
func (c *CacheService) GetAllPosts(limit, skip int) ([]types.Post, error) {
	if (limit != 0 && limit != 20) || skip != 0 {
		return c.storage.GetAllPosts(limit, skip)
	}

	ctx := context.Background()

	cached, err := c.redis.Get(ctx, GlobalFeedKey).Result()
	if err == nil {
		var posts []types.Post
		if err := json.Unmarshal([]byte(cached), &posts); err == nil {
			return posts, nil
		}
	}

	posts, err := c.storage.GetAllPosts(limit, skip)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(posts)
	c.redis.Set(ctx, GlobalFeedKey, data, FeedCacheDuration)
	return posts, nil
}

func (c *CacheService) cachePost(ctx context.Context, post types.Post) {
	data, _ := json.Marshal(post)
	c.redis.Set(ctx, fmt.Sprintf(PostKey, post.ID), data, PostCacheDuration)
}

// InvalidatePost clears one post's cache entry
func (c *CacheService) InvalidatePost(ctx context.Context, postID string) {
	c.redis.Del(ctx, fmt.Sprintf(PostKey, postID))
}

// InvalidateUser clears one user's cache entry
func (c *CacheService) InvalidateUser(ctx context.Context, userID string) {
	c.redis.Del(ctx, fmt.Sprintf(UserKey, userID))
}

// InvalidateGlobalFeed clears the cached global feed page
func (c *CacheService) InvalidateGlobalFeed(ctx context.Context) {
	c.redis.Del(ctx, GlobalFeedKey)
}

func (c *CacheService) CreatePost(post types.Post) error {
	err := c.storage.CreatePost(post)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c.cachePost(ctx, post)
	c.InvalidateGlobalFeed(ctx)
	return nil
}

func (c *CacheService) DeletePost(postID string) (bool, error) {
	deleted, err := c.storage.DeletePost(postID)
	if err != nil {
		return deleted, err
	}

	ctx := context.Background()
	c.InvalidatePost(ctx, postID)
	c.InvalidateGlobalFeed(ctx)
	return deleted, nil
}

func (c *CacheService) ClearOriginalRef(postID string) error {
	err := c.storage.ClearOriginalRef(postID)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c.InvalidatePost(ctx, postID)
	c.InvalidateGlobalFeed(ctx)
	return nil
}

func (c *CacheService) AddLike(postID, userID string) (types.Post, error) {
	return c.writeThrough(c.storage.AddLike(postID, userID))
}

func (c *CacheService) RemoveLike(postID, userID string) (types.Post, error) {
	return c.writeThrough(c.storage.RemoveLike(postID, userID))
}

func (c *CacheService) AddRepostMark(postID, userID string) (types.Post, error) {
	return c.writeThrough(c.storage.AddRepostMark(postID, userID))
}

func (c *CacheService) RemoveRepostMark(postID, userID string) (types.Post, error) {
	return c.writeThrough(c.storage.RemoveRepostMark(postID, userID))
}

// writeThrough refreshes the post cache entry with the toggled state so
// a read immediately after a toggle sees the new counts.
func (c *CacheService) writeThrough(post types.Post, err error) (types.Post, error) {
	if err != nil {
		return post, err
	}

	ctx := context.Background()
	c.cachePost(ctx, post)
	c.InvalidateGlobalFeed(ctx)
	return post, nil
}

func (c *CacheService) CreateUser(user types.User) error {
	return c.storage.CreateUser(user)
}

func (c *CacheService) GetUserByUsername(username string) (types.User, error) {
	return c.storage.GetUserByUsername(username)
}

func (c *CacheService) GetUsersByIDs(userIDs []string) ([]types.User, error) {
	return c.storage.GetUsersByIDs(userIDs)
}

func (c *CacheService) UpdateUser(user types.User) error {
	err := c.storage.UpdateUser(user)
	if err != nil {
		return err
	}

	c.InvalidateUser(context.Background(), user.ID)
	return nil
}

func (c *CacheService) DeleteUser(userID string) (bool, error) {
	deleted, err := c.storage.DeleteUser(userID)
	if err != nil {
		return deleted, err
	}

	c.InvalidateUser(context.Background(), userID)
	return deleted, nil
}

func (c *CacheService) AddFollowing(userID, targetID string) error {
	err := c.storage.AddFollowing(userID, targetID)
	if err != nil {
		return err
	}

	c.InvalidateUser(context.Background(), userID)
	return nil
}

func (c *CacheService) RemoveFollowing(userID, targetID string) error {
	err := c.storage.RemoveFollowing(userID, targetID)
	if err != nil {
		return err
	}

	c.InvalidateUser(context.Background(), userID)
	return nil
}

func (c *CacheService) GetFollowers(userID string) ([]types.User, error) {
	// Reverse scans are not cached; they only back profile views.
	return c.storage.GetFollowers(userID)
}

func (c *CacheService) GetPostsByIDs(postIDs []string) ([]types.Post, error) {
	return c.storage.GetPostsByIDs(postIDs)
}

func (c *CacheService) GetPostsByAuthor(authorID string, limit, skip int) ([]types.Post, error) {
	return c.storage.GetPostsByAuthor(authorID, limit, skip)
}

func (c *CacheService) GetPostsByAuthors(authorIDs []string, limit, skip int) ([]types.Post, error) {
	return c.storage.GetPostsByAuthors(authorIDs, limit, skip)
}

func (c *CacheService) GetRepostByAuthor(authorID, originalPostID string) (types.Post, error) {
	return c.storage.GetRepostByAuthor(authorID, originalPostID)
}

func (c *CacheService) GetRepostsOf(originalPostID string) ([]types.Post, error) {
	return c.storage.GetRepostsOf(originalPostID)
}

func (c *CacheService) FlattenRepostChains() (int, error) {
	count, err := c.storage.FlattenRepostChains()
	if err != nil {
		return count, err
	}

	if count > 0 {
		c.InvalidateGlobalFeed(context.Background())
	}
	return count, nil
}
