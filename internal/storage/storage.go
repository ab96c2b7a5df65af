package storage

import "github.com/xreader/feed-service/internal/types"

// Storage is the persistence boundary: a Users collection and a Posts
// collection, queryable by id, by username, and by the membership
// predicates the core depends on (following contains X,
// original_post_id = X). Implementations return errs.ErrNotFound-wrapped
// errors for absent records and errs.ErrConflict for uniqueness
// violations.
//
// The like/repost set mutations are conditional add-if-absent /
// remove-if-present operations issued directly against the store, so two
// concurrent toggles on the same original cannot drop each other's
// membership change.
type Storage interface {
	// Users
	CreateUser(user types.User) error
	GetUserByID(userID string) (types.User, error)
	GetUserByUsername(username string) (types.User, error)
	GetUsersByIDs(userIDs []string) ([]types.User, error)
	UpdateUser(user types.User) error
	DeleteUser(userID string) (bool, error)
	AddFollowing(userID, targetID string) error
	RemoveFollowing(userID, targetID string) error
	GetFollowers(userID string) ([]types.User, error)

	// Posts
	CreatePost(post types.Post) error
	GetPostByID(postID string) (types.Post, error)
	GetPostsByIDs(postIDs []string) ([]types.Post, error)
	GetAllPosts(limit, skip int) ([]types.Post, error)
	GetPostsByAuthor(authorID string, limit, skip int) ([]types.Post, error)
	GetPostsByAuthors(authorIDs []string, limit, skip int) ([]types.Post, error)
	GetRepostByAuthor(authorID, originalPostID string) (types.Post, error)
	GetRepostsOf(originalPostID string) ([]types.Post, error)
	ClearOriginalRef(postID string) error
	DeletePost(postID string) (bool, error)

	// Interaction sets (atomic membership toggles on the original post)
	AddLike(postID, userID string) (types.Post, error)
	RemoveLike(postID, userID string) (types.Post, error)
	AddRepostMark(postID, userID string) (types.Post, error)
	RemoveRepostMark(postID, userID string) (types.Post, error)

	// Maintenance
	FlattenRepostChains() (int, error)
}
