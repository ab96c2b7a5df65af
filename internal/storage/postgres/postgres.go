package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"
	"github.com/xreader/feed-service/internal/config"
	"github.com/xreader/feed-service/internal/errs"
	"github.com/xreader/feed-service/internal/types"
)

const defaultPageLimit = 20

type Postgres struct {
	Db *sql.DB
}

func NewPostgres(cfg *config.Config) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.PGSQL.Host, cfg.PGSQL.Port, cfg.PGSQL.User, cfg.PGSQL.Password, cfg.PGSQL.DBName, cfg.PGSQL.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		return nil, err
	}

	pg := &Postgres{Db: db}
	err = pg.CreateTables()
	if err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pg, nil
}

func (p *Postgres) CreateTables() error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			full_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			age INTEGER NOT NULL,
			interests TEXT[] NOT NULL DEFAULT '{}',
			following TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS posts (
			post_id TEXT PRIMARY KEY,
			author_id TEXT NOT NULL,
			original_post_id TEXT,
			book_name TEXT NOT NULL,
			content_text TEXT NOT NULL CHECK (length(content_text) >= 60),
			likes TEXT[] NOT NULL DEFAULT '{}',
			reposts TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`CREATE INDEX IF NOT EXISTS idx_posts_author ON posts (author_id);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_original ON posts (original_post_id);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_created ON posts (created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_users_following ON users USING GIN (following);`,
	}

	for _, q := range queries {
		if _, err := p.Db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

const userColumns = `user_id, username, full_name, password_hash, age, interests, following, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &u.Age,
		pq.Array(&u.Interests), pq.Array(&u.Following), &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (p *Postgres) CreateUser(user types.User) error {
	query := `
	INSERT INTO users (user_id, username, full_name, password_hash, age, interests, following, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := p.Db.Exec(query, user.ID, user.Username, user.FullName, user.PasswordHash,
		user.Age, pq.Array(user.Interests), pq.Array(user.Following), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return errs.Conflictf("username %s already taken", user.Username)
		}
		return err
	}

	return nil
}

func (p *Postgres) GetUserByID(userID string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(p.Db.QueryRow(query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, errs.NotFoundf("user %s", userID)
		}
		return types.User{}, err
	}

	return user, nil
}

func (p *Postgres) GetUserByUsername(username string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(p.Db.QueryRow(query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, errs.NotFoundf("user with username %s", username)
		}
		return types.User{}, err
	}

	return user, nil
}

func (p *Postgres) GetUsersByIDs(userIDs []string) ([]types.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = ANY($1)`

	rows, err := p.Db.Query(query, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectUsers(rows)
}

func (p *Postgres) UpdateUser(user types.User) error {
	query := `
	UPDATE users
	SET full_name = $2, age = $3, interests = $4, password_hash = $5, updated_at = $6
	WHERE user_id = $1
	`

	result, err := p.Db.Exec(query, user.ID, user.FullName, user.Age,
		pq.Array(user.Interests), user.PasswordHash, time.Now().UTC())
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NotFoundf("user %s", user.ID)
	}

	return nil
}

func (p *Postgres) DeleteUser(userID string) (bool, error) {
	result, err := p.Db.Exec(`DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// AddFollowing appends targetID to the user's following set if absent.
// The membership predicate makes the append a no-op for repeat follows.
func (p *Postgres) AddFollowing(userID, targetID string) error {
	query := `
	UPDATE users
	SET following = array_append(following, $2), updated_at = CURRENT_TIMESTAMP
	WHERE user_id = $1 AND NOT ($2 = ANY(following))
	`

	_, err := p.Db.Exec(query, userID, targetID)
	return err
}

func (p *Postgres) RemoveFollowing(userID, targetID string) error {
	query := `
	UPDATE users
	SET following = array_remove(following, $2), updated_at = CURRENT_TIMESTAMP
	WHERE user_id = $1
	`

	_, err := p.Db.Exec(query, userID, targetID)
	return err
}

// GetFollowers reverse-scans the following sets; there is no stored
// follower list.
func (p *Postgres) GetFollowers(userID string) ([]types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE $1 = ANY(following)`

	rows, err := p.Db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectUsers(rows)
}

const postColumns = `post_id, author_id, original_post_id, book_name, content_text, likes, reposts, created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (types.Post, error) {
	var post types.Post
	var originalID sql.NullString
	err := row.Scan(&post.ID, &post.AuthorID, &originalID, &post.BookName, &post.ContentText,
		pq.Array(&post.Likes), pq.Array(&post.Reposts), &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return types.Post{}, err
	}
	post.OriginalPostID = originalID.String
	return post, nil
}

func (p *Postgres) CreatePost(post types.Post) error {
	if utf8.RuneCountInString(post.ContentText) < types.MinContentLength {
		return errs.Validationf("post content must be at least %d characters", types.MinContentLength)
	}

	query := `
	INSERT INTO posts (post_id, author_id, original_post_id, book_name, content_text, likes, reposts, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := p.Db.Exec(query, post.ID, post.AuthorID, nullableID(post.OriginalPostID),
		post.BookName, post.ContentText, pq.Array(post.Likes), pq.Array(post.Reposts),
		post.CreatedAt, post.UpdatedAt)
	return err
}

func (p *Postgres) GetPostByID(postID string) (types.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE post_id = $1`

	post, err := scanPost(p.Db.QueryRow(query, postID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, errs.NotFoundf("post %s", postID)
		}
		return types.Post{}, err
	}

	return post, nil
}

func (p *Postgres) GetPostsByIDs(postIDs []string) ([]types.Post, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + postColumns + ` FROM posts WHERE post_id = ANY($1)`

	rows, err := p.Db.Query(query, pq.Array(postIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (p *Postgres) GetAllPosts(limit, skip int) ([]types.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := p.Db.Query(query, normalizeLimit(limit), normalizeSkip(skip))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (p *Postgres) GetPostsByAuthor(authorID string, limit, skip int) ([]types.Post, error) {
	return p.GetPostsByAuthors([]string{authorID}, limit, skip)
}

func (p *Postgres) GetPostsByAuthors(authorIDs []string, limit, skip int) ([]types.Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}

	query := `
	SELECT ` + postColumns + ` FROM posts
	WHERE author_id = ANY($1)
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3
	`

	rows, err := p.Db.Query(query, pq.Array(authorIDs), normalizeLimit(limit), normalizeSkip(skip))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (p *Postgres) GetRepostByAuthor(authorID, originalPostID string) (types.Post, error) {
	query := `
	SELECT ` + postColumns + ` FROM posts
	WHERE author_id = $1 AND original_post_id = $2
	LIMIT 1
	`

	post, err := scanPost(p.Db.QueryRow(query, authorID, originalPostID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, errs.NotFoundf("repost of %s by %s", originalPostID, authorID)
		}
		return types.Post{}, err
	}

	return post, nil
}

func (p *Postgres) GetRepostsOf(originalPostID string) ([]types.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE original_post_id = $1`

	rows, err := p.Db.Query(query, originalPostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (p *Postgres) ClearOriginalRef(postID string) error {
	query := `
	UPDATE posts
	SET original_post_id = NULL, updated_at = CURRENT_TIMESTAMP
	WHERE post_id = $1
	`

	_, err := p.Db.Exec(query, postID)
	return err
}

func (p *Postgres) DeletePost(postID string) (bool, error) {
	result, err := p.Db.Exec(`DELETE FROM posts WHERE post_id = $1`, postID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (p *Postgres) AddLike(postID, userID string) (types.Post, error) {
	return p.toggleMember(postID, userID, `
	UPDATE posts
	SET likes = array_append(likes, $2), updated_at = CURRENT_TIMESTAMP
	WHERE post_id = $1 AND NOT ($2 = ANY(likes))
	RETURNING `+postColumns)
}

func (p *Postgres) RemoveLike(postID, userID string) (types.Post, error) {
	return p.toggleMember(postID, userID, `
	UPDATE posts
	SET likes = array_remove(likes, $2), updated_at = CURRENT_TIMESTAMP
	WHERE post_id = $1
	RETURNING `+postColumns)
}

func (p *Postgres) AddRepostMark(postID, userID string) (types.Post, error) {
	return p.toggleMember(postID, userID, `
	UPDATE posts
	SET reposts = array_append(reposts, $2), updated_at = CURRENT_TIMESTAMP
	WHERE post_id = $1 AND NOT ($2 = ANY(reposts))
	RETURNING `+postColumns)
}

func (p *Postgres) RemoveRepostMark(postID, userID string) (types.Post, error) {
	return p.toggleMember(postID, userID, `
	UPDATE posts
	SET reposts = array_remove(reposts, $2), updated_at = CURRENT_TIMESTAMP
	WHERE post_id = $1
	RETURNING `+postColumns)
}

// toggleMember runs a conditional set update and returns the post's
// current state. When the membership predicate already holds the update
// touches no row, so the post is re-read instead.
func (p *Postgres) toggleMember(postID, userID, query string) (types.Post, error) {
	post, err := scanPost(p.Db.QueryRow(query, postID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p.GetPostByID(postID)
		}
		return types.Post{}, err
	}
	return post, nil
}

// FlattenRepostChains restores the depth-1 repost invariant in the
// background: dangling references are cleared and chained reposts are
// re-pointed one level closer to their true original per pass. Returns
// the number of repaired records.
func (p *Postgres) FlattenRepostChains() (int, error) {
	clearDangling := `
	UPDATE posts p
	SET original_post_id = NULL, updated_at = CURRENT_TIMESTAMP
	WHERE p.original_post_id IS NOT NULL
	  AND NOT EXISTS (SELECT 1 FROM posts o WHERE o.post_id = p.original_post_id)
	`

	collapseChain := `
	UPDATE posts p
	SET original_post_id = o.original_post_id, updated_at = CURRENT_TIMESTAMP
	FROM posts o
	WHERE p.original_post_id = o.post_id AND o.original_post_id IS NOT NULL
	`

	total := 0
	for {
		repaired := 0
		for _, q := range []string{clearDangling, collapseChain} {
			result, err := p.Db.Exec(q)
			if err != nil {
				return total, err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return total, err
			}
			repaired += int(affected)
		}
		total += repaired
		if repaired == 0 {
			return total, nil
		}
	}
}

func collectUsers(rows *sql.Rows) ([]types.User, error) {
	var users []types.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func collectPosts(rows *sql.Rows) ([]types.Post, error) {
	var posts []types.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func nullableID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	return limit
}

func normalizeSkip(skip int) int {
	if skip < 0 {
		return 0
	}
	return skip
}
