// Package memory is an in-memory Storage implementation used by tests
// and local development. Mutations take a single lock, so the membership
// toggles get the same add-if-absent/remove-if-present semantics the
// postgres store implements with conditional updates.
package memory

import (
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/xreader/feed-service/internal/errs"
	"github.com/xreader/feed-service/internal/storage"
	"github.com/xreader/feed-service/internal/types"
)

const defaultPageLimit = 20

type Memory struct {
	mu    sync.RWMutex
	users map[string]types.User
	posts map[string]types.Post
	seq   map[string]int64
	next  int64
}

var _ storage.Storage = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]types.User),
		posts: make(map[string]types.Post),
		seq:   make(map[string]int64),
	}
}

func (m *Memory) CreateUser(user types.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == user.Username {
			return errs.Conflictf("username %s already taken", user.Username)
		}
	}

	m.users[user.ID] = cloneUser(user)
	return nil
}

func (m *Memory) GetUserByID(userID string) (types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return types.User{}, errs.NotFoundf("user %s", userID)
	}
	return cloneUser(user), nil
}

func (m *Memory) GetUserByUsername(username string) (types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.Username == username {
			return cloneUser(user), nil
		}
	}
	return types.User{}, errs.NotFoundf("user with username %s", username)
}

func (m *Memory) GetUsersByIDs(userIDs []string) ([]types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []types.User
	for _, id := range userIDs {
		if user, ok := m.users[id]; ok {
			users = append(users, cloneUser(user))
		}
	}
	return users, nil
}

func (m *Memory) UpdateUser(user types.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.users[user.ID]
	if !ok {
		return errs.NotFoundf("user %s", user.ID)
	}

	existing.FullName = user.FullName
	existing.Age = user.Age
	existing.Interests = append([]string(nil), user.Interests...)
	existing.PasswordHash = user.PasswordHash
	existing.UpdatedAt = time.Now().UTC()
	m.users[user.ID] = existing
	return nil
}

func (m *Memory) DeleteUser(userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return false, nil
	}
	delete(m.users, userID)
	return true, nil
}

func (m *Memory) AddFollowing(userID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return errs.NotFoundf("user %s", userID)
	}
	if contains(user.Following, targetID) {
		return nil
	}
	user.Following = append(user.Following, targetID)
	user.UpdatedAt = time.Now().UTC()
	m.users[userID] = user
	return nil
}

func (m *Memory) RemoveFollowing(userID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return errs.NotFoundf("user %s", userID)
	}
	user.Following = remove(user.Following, targetID)
	user.UpdatedAt = time.Now().UTC()
	m.users[userID] = user
	return nil
}

func (m *Memory) GetFollowers(userID string) ([]types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var followers []types.User
	for _, user := range m.users {
		if contains(user.Following, userID) {
			followers = append(followers, cloneUser(user))
		}
	}
	return followers, nil
}

func (m *Memory) CreatePost(post types.Post) error {
	if utf8.RuneCountInString(post.ContentText) < types.MinContentLength {
		return errs.Validationf("post content must be at least %d characters", types.MinContentLength)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	m.seq[post.ID] = m.next
	m.posts[post.ID] = clonePost(post)
	return nil
}

func (m *Memory) GetPostByID(postID string) (types.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	post, ok := m.posts[postID]
	if !ok {
		return types.Post{}, errs.NotFoundf("post %s", postID)
	}
	return clonePost(post), nil
}

func (m *Memory) GetPostsByIDs(postIDs []string) ([]types.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var posts []types.Post
	for _, id := range postIDs {
		if post, ok := m.posts[id]; ok {
			posts = append(posts, clonePost(post))
		}
	}
	return posts, nil
}

func (m *Memory) GetAllPosts(limit, skip int) ([]types.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.page(func(types.Post) bool { return true }, limit, skip), nil
}

func (m *Memory) GetPostsByAuthor(authorID string, limit, skip int) ([]types.Post, error) {
	return m.GetPostsByAuthors([]string{authorID}, limit, skip)
}

func (m *Memory) GetPostsByAuthors(authorIDs []string, limit, skip int) ([]types.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.page(func(p types.Post) bool { return contains(authorIDs, p.AuthorID) }, limit, skip), nil
}

func (m *Memory) GetRepostByAuthor(authorID, originalPostID string) (types.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, post := range m.posts {
		if post.AuthorID == authorID && post.OriginalPostID == originalPostID {
			return clonePost(post), nil
		}
	}
	return types.Post{}, errs.NotFoundf("repost of %s by %s", originalPostID, authorID)
}

func (m *Memory) GetRepostsOf(originalPostID string) ([]types.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var reposts []types.Post
	for _, post := range m.posts {
		if post.OriginalPostID == originalPostID {
			reposts = append(reposts, clonePost(post))
		}
	}
	return reposts, nil
}

func (m *Memory) ClearOriginalRef(postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.posts[postID]
	if !ok {
		return errs.NotFoundf("post %s", postID)
	}
	post.OriginalPostID = ""
	post.UpdatedAt = time.Now().UTC()
	m.posts[postID] = post
	return nil
}

func (m *Memory) DeletePost(postID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[postID]; !ok {
		return false, nil
	}
	delete(m.posts, postID)
	delete(m.seq, postID)
	return true, nil
}

func (m *Memory) AddLike(postID, userID string) (types.Post, error) {
	return m.toggleMember(postID, userID, func(p *types.Post) {
		if !contains(p.Likes, userID) {
			p.Likes = append(p.Likes, userID)
		}
	})
}

func (m *Memory) RemoveLike(postID, userID string) (types.Post, error) {
	return m.toggleMember(postID, userID, func(p *types.Post) {
		p.Likes = remove(p.Likes, userID)
	})
}

func (m *Memory) AddRepostMark(postID, userID string) (types.Post, error) {
	return m.toggleMember(postID, userID, func(p *types.Post) {
		if !contains(p.Reposts, userID) {
			p.Reposts = append(p.Reposts, userID)
		}
	})
}

func (m *Memory) RemoveRepostMark(postID, userID string) (types.Post, error) {
	return m.toggleMember(postID, userID, func(p *types.Post) {
		p.Reposts = remove(p.Reposts, userID)
	})
}

func (m *Memory) toggleMember(postID, userID string, mutate func(*types.Post)) (types.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.posts[postID]
	if !ok {
		return types.Post{}, errs.NotFoundf("post %s", postID)
	}
	mutate(&post)
	post.UpdatedAt = time.Now().UTC()
	m.posts[postID] = post
	return clonePost(post), nil
}

func (m *Memory) FlattenRepostChains() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for {
		repaired := 0
		for id, post := range m.posts {
			if post.OriginalPostID == "" {
				continue
			}
			target, ok := m.posts[post.OriginalPostID]
			if !ok {
				post.OriginalPostID = ""
				m.posts[id] = post
				repaired++
				continue
			}
			if target.OriginalPostID != "" {
				post.OriginalPostID = target.OriginalPostID
				m.posts[id] = post
				repaired++
			}
		}
		total += repaired
		if repaired == 0 {
			return total, nil
		}
	}
}

// page returns matching posts newest-first. Insertion order breaks ties
// between posts created within the same timestamp tick.
func (m *Memory) page(match func(types.Post) bool, limit, skip int) []types.Post {
	var posts []types.Post
	for _, post := range m.posts {
		if match(post) {
			posts = append(posts, clonePost(post))
		}
	}

	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return m.seq[posts[i].ID] > m.seq[posts[j].ID]
	})

	if limit <= 0 {
		limit = defaultPageLimit
	}
	if skip < 0 {
		skip = 0
	}
	if skip >= len(posts) {
		return nil
	}
	posts = posts[skip:]
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts
}

func cloneUser(u types.User) types.User {
	u.Interests = append([]string(nil), u.Interests...)
	u.Following = append([]string(nil), u.Following...)
	return u
}

func clonePost(p types.Post) types.Post {
	p.Likes = append([]string(nil), p.Likes...)
	p.Reposts = append([]string(nil), p.Reposts...)
	return p
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func remove(list []string, value string) []string {
	out := list[:0]
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
