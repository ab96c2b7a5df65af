// Package feed holds the repost-resolution engine and feed assembly.
//
// Every post id maps to exactly one canonical original: the resolution
// walk flattens repost chains to depth 1 and self-heals references left
// dangling by deletions, so like/repost toggles always land on a single
// authoritative record.
package feed

import (
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xreader/feed-service/internal/errs"
	"github.com/xreader/feed-service/internal/storage"
	"github.com/xreader/feed-service/internal/types"
)

type Engine struct {
	store storage.Storage
}

func NewEngine(store storage.Storage) *Engine {
	return &Engine{store: store}
}

// LikeResult is the outcome of a like toggle, always expressed against
// the resolved original.
type LikeResult struct {
	Post           types.Post `json:"post"`
	Liked          bool       `json:"liked"`
	LikesCount     int        `json:"likes_count"`
	OriginalPostID string     `json:"original_post_id"`
}

// RepostResult is the outcome of a repost toggle. Repost is set only
// when a new repost record was created.
type RepostResult struct {
	Post           types.Post  `json:"post"`
	Repost         *types.Post `json:"repost,omitempty"`
	Reposted       bool        `json:"reposted"`
	RepostsCount   int         `json:"reposts_count"`
	OriginalPostID string      `json:"original_post_id"`
}

// ResolveOriginal maps any existing post id to its canonical original.
// The second return value is the direct repost record the caller's id
// referred to, nil when the id already named an original.
//
// Broken references are repaired in place rather than reported: a repost
// whose target is gone becomes its own original, and a chain is resolved
// recursively through the next reference. Only a missing postID itself
// surfaces as NotFound.
func (e *Engine) ResolveOriginal(postID string) (types.Post, *types.Post, error) {
	post, err := e.store.GetPostByID(postID)
	if err != nil {
		return types.Post{}, nil, err
	}

	if !post.IsRepost() {
		return post, nil, nil
	}

	original, err := e.store.GetPostByID(post.OriginalPostID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// The referenced original was deleted; this repost
			// becomes its own original.
			if err := e.store.ClearOriginalRef(post.ID); err != nil {
				return types.Post{}, nil, err
			}
			post.OriginalPostID = ""
			return post, nil, nil
		}
		return types.Post{}, nil, err
	}

	if original.IsRepost() {
		trueOriginal, _, err := e.ResolveOriginal(original.OriginalPostID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				// Chain broken deeper down; cut it here.
				if err := e.store.ClearOriginalRef(original.ID); err != nil {
					return types.Post{}, nil, err
				}
				original.OriginalPostID = ""
				return original, &post, nil
			}
			return types.Post{}, nil, err
		}
		return trueOriginal, &post, nil
	}

	return original, &post, nil
}

// CreatePost creates an original post. Content length is re-checked here
// even though the HTTP layer validates it.
func (e *Engine) CreatePost(authorID, bookName, contentText string) (types.Post, error) {
	bookName = strings.TrimSpace(bookName)
	contentText = strings.TrimSpace(contentText)

	if bookName == "" {
		return types.Post{}, errs.Validationf("book name is required")
	}
	if utf8.RuneCountInString(contentText) < types.MinContentLength {
		return types.Post{}, errs.Validationf("post content must be at least %d characters", types.MinContentLength)
	}

	now := time.Now().UTC()
	post := types.Post{
		ID:          uuid.New().String(),
		AuthorID:    authorID,
		BookName:    bookName,
		ContentText: contentText,
		Likes:       []string{},
		Reposts:     []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.store.CreatePost(post); err != nil {
		return types.Post{}, err
	}

	return post, nil
}

// ToggleLike adds or removes userID from the resolved original's likes
// set. Liking via a repost's id always affects the original.
func (e *Engine) ToggleLike(postID, userID string) (LikeResult, error) {
	if _, err := e.store.GetPostByID(postID); err != nil {
		return LikeResult{}, err
	}

	original, _, err := e.ResolveOriginal(postID)
	if err != nil {
		return LikeResult{}, err
	}

	var updated types.Post
	liked := !contains(original.Likes, userID)
	if liked {
		updated, err = e.store.AddLike(original.ID, userID)
	} else {
		updated, err = e.store.RemoveLike(original.ID, userID)
	}
	if err != nil {
		return LikeResult{}, err
	}

	return LikeResult{
		Post:           updated,
		Liked:          liked,
		LikesCount:     updated.LikesCount(),
		OriginalPostID: updated.ID,
	}, nil
}

// ToggleRepost creates or removes the caller's repost of the resolved
// original. A user holds at most one active repost per original; a new
// repost record always references the true original, never an
// intermediate repost.
func (e *Engine) ToggleRepost(userID, postID string) (RepostResult, error) {
	if _, err := e.store.GetPostByID(postID); err != nil {
		return RepostResult{}, err
	}

	original, _, err := e.ResolveOriginal(postID)
	if err != nil {
		return RepostResult{}, err
	}

	existing, err := e.store.GetRepostByAuthor(userID, original.ID)
	if err == nil {
		if _, err := e.store.DeletePost(existing.ID); err != nil {
			return RepostResult{}, err
		}
		updated, err := e.store.RemoveRepostMark(original.ID, userID)
		if err != nil {
			return RepostResult{}, err
		}
		return RepostResult{
			Post:           updated,
			Reposted:       false,
			RepostsCount:   updated.RepostsCount(),
			OriginalPostID: updated.ID,
		}, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return RepostResult{}, err
	}

	now := time.Now().UTC()
	repost := types.Post{
		ID:             uuid.New().String(),
		AuthorID:       userID,
		OriginalPostID: original.ID,
		BookName:       original.BookName,
		ContentText:    original.ContentText,
		Likes:          []string{},
		Reposts:        []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.CreatePost(repost); err != nil {
		return RepostResult{}, err
	}

	updated, err := e.store.AddRepostMark(original.ID, userID)
	if err != nil {
		return RepostResult{}, err
	}

	return RepostResult{
		Post:           updated,
		Repost:         &repost,
		Reposted:       true,
		RepostsCount:   updated.RepostsCount(),
		OriginalPostID: updated.ID,
	}, nil
}

// DeletePost removes a post after an ownership check. Direct reposts of
// a deleted original are unlinked first. They become independent
// originals, not deleted. The unlink and delete steps are separate
// writes; re-running delete after a crash between them is safe.
func (e *Engine) DeletePost(postID, requesterID string) (bool, error) {
	post, err := e.store.GetPostByID(postID)
	if err != nil {
		return false, err
	}

	if post.AuthorID != requesterID {
		return false, errs.Unauthorizedf("only the author can delete a post")
	}

	reposts, err := e.store.GetRepostsOf(postID)
	if err != nil {
		return false, err
	}
	for _, repost := range reposts {
		if err := e.store.ClearOriginalRef(repost.ID); err != nil {
			return false, err
		}
		slog.Info("Unlinked repost from deleted original",
			slog.String("repost_id", repost.ID),
			slog.String("original_id", postID))
	}

	return e.store.DeletePost(postID)
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
