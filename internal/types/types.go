package types

import "time"

// MinContentLength is the product rule for review posts: a review must
// carry at least this many characters of content.
const MinContentLength = 60

// Post is a book review post. A post with an empty OriginalPostID is an
// original; a non-empty OriginalPostID makes it a repost of that post.
// The Likes and Reposts sets are authoritative only on originals; a
// repost record's own sets must be ignored for counting.
type Post struct {
	ID             string    `json:"post_id"`
	AuthorID       string    `json:"author_id"`
	OriginalPostID string    `json:"original_post_id,omitempty"`
	BookName       string    `json:"book_name"`
	ContentText    string    `json:"content_text"`
	Likes          []string  `json:"likes"`
	Reposts        []string  `json:"reposts"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsRepost reports whether the post references an original.
func (p Post) IsRepost() bool {
	return p.OriginalPostID != ""
}

func (p Post) LikesCount() int {
	return len(p.Likes)
}

func (p Post) RepostsCount() int {
	return len(p.Reposts)
}

// User is an account record. Following holds the ids of users this user
// follows; there is no stored follower list, followers are derived by
// reverse-scanning the following sets.
type User struct {
	ID           string    `json:"user_id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Age          int       `json:"age"`
	Interests    []string  `json:"interests"`
	Following    []string  `json:"following"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is the subset of user fields safe to attach to feed items
// and events.
type PublicUser struct {
	ID       string `json:"user_id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
	}
}

// DeletedUser is the placeholder shown for author ids that no longer
// resolve to a user record.
func DeletedUser(userID string) PublicUser {
	return PublicUser{
		ID:       userID,
		Username: "Deleted User",
		FullName: "User no longer exists",
	}
}

type SignUpRequest struct {
	Username  string   `validate:"required,min=3,max=30" json:"username"`
	FullName  string   `validate:"required,min=2,max=50" json:"full_name"`
	Password  string   `validate:"required,min=6" json:"password"`
	Age       int      `validate:"required,gte=13,lte=120" json:"age"`
	Interests []string `json:"interests"`
}

type SignInRequest struct {
	Username string `validate:"required" json:"username"`
	Password string `validate:"required" json:"password"`
}

type PostCreateRequest struct {
	BookName    string `validate:"required" json:"book_name"`
	ContentText string `validate:"required,min=60" json:"content_text"`
}

// UpdateProfileRequest carries partial profile updates; nil or empty
// fields are left unchanged.
type UpdateProfileRequest struct {
	FullName  string   `validate:"omitempty,min=2,max=50" json:"full_name"`
	Age       *int     `validate:"omitempty,gte=13,lte=120" json:"age"`
	Interests []string `json:"interests"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `validate:"required" json:"current_password"`
	NewPassword     string `validate:"required,min=6" json:"new_password"`
}
