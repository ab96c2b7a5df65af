package feed

import (
	"github.com/xreader/feed-service/internal/types"
)

// Item is a display-ready feed entry: the post, its author's public
// fields, and for reposts the resolved original and its author.
type Item struct {
	Post           types.Post        `json:"post"`
	Author         types.PublicUser  `json:"author"`
	OriginalPost   *types.Post       `json:"original_post,omitempty"`
	OriginalAuthor *types.PublicUser `json:"original_author,omitempty"`
}

// GetAllPosts returns the global feed page, newest first.
func (e *Engine) GetAllPosts(limit, skip int) ([]types.Post, error) {
	return e.store.GetAllPosts(limit, skip)
}

// GetFeed returns the following feed page: the user's own posts plus
// posts authored by anyone in their following set.
func (e *Engine) GetFeed(userID string, limit, skip int) ([]types.Post, error) {
	user, err := e.store.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	authorIDs := append(append([]string(nil), user.Following...), userID)
	return e.store.GetPostsByAuthors(authorIDs, limit, skip)
}

// GetUserPosts returns one author's posts, newest first.
func (e *Engine) GetUserPosts(authorID string, limit, skip int) ([]types.Post, error) {
	return e.store.GetPostsByAuthor(authorID, limit, skip)
}

// Assemble resolves display metadata for a page of posts. Original-post
// and author lookups are batched over deduplicated id sets rather than
// issued per post. Authors that no longer exist render as the deleted
// user placeholder; an original deleted mid-page leaves OriginalPost nil
// and the repost renders standalone.
func (e *Engine) Assemble(posts []types.Post) ([]Item, error) {
	seenOriginals := make(map[string]bool)
	var originalIDs []string
	for _, post := range posts {
		if post.IsRepost() && !seenOriginals[post.OriginalPostID] {
			seenOriginals[post.OriginalPostID] = true
			originalIDs = append(originalIDs, post.OriginalPostID)
		}
	}

	originals := make(map[string]types.Post, len(originalIDs))
	if len(originalIDs) > 0 {
		fetched, err := e.store.GetPostsByIDs(originalIDs)
		if err != nil {
			return nil, err
		}
		for _, original := range fetched {
			originals[original.ID] = original
		}
	}

	seenAuthors := make(map[string]bool)
	var authorIDs []string
	addAuthor := func(id string) {
		if !seenAuthors[id] {
			seenAuthors[id] = true
			authorIDs = append(authorIDs, id)
		}
	}
	for _, post := range posts {
		addAuthor(post.AuthorID)
	}
	for _, original := range originals {
		addAuthor(original.AuthorID)
	}

	authors := make(map[string]types.PublicUser, len(authorIDs))
	if len(authorIDs) > 0 {
		fetched, err := e.store.GetUsersByIDs(authorIDs)
		if err != nil {
			return nil, err
		}
		for _, user := range fetched {
			authors[user.ID] = user.Public()
		}
	}

	lookupAuthor := func(userID string) types.PublicUser {
		if author, ok := authors[userID]; ok {
			return author
		}
		return types.DeletedUser(userID)
	}

	items := make([]Item, 0, len(posts))
	for _, post := range posts {
		item := Item{
			Post:   post,
			Author: lookupAuthor(post.AuthorID),
		}
		if post.IsRepost() {
			if original, ok := originals[post.OriginalPostID]; ok {
				originalAuthor := lookupAuthor(original.AuthorID)
				item.OriginalPost = &original
				item.OriginalAuthor = &originalAuthor
			}
		}
		items = append(items, item)
	}

	return items, nil
}
