package types

import "time"

// EventType represents the type of real-time event
type EventType string

const (
	EventSessionReady EventType = "session.ready"
	EventPostCreated  EventType = "post.created"
	EventPostLiked    EventType = "post.liked"
	EventPostReposted EventType = "post.reposted"
)

// Repost fan-out actions.
const (
	RepostActionCreate = "create"
	RepostActionDelete = "delete"
)

// Event represents a real-time event that can be sent over WebSocket
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// SessionReadyEvent tells a freshly connected client its session id, so
// later mutations can identify the originating session for no-self-echo
// broadcasts.
type SessionReadyEvent struct {
	SessionID string `json:"session_id"`
}

// PostCreatedEvent carries a new feed entry. For reposts it additionally
// carries the resolved original and its author so subscribers can render
// attribution without a follow-up fetch.
type PostCreatedEvent struct {
	Post           Post        `json:"post"`
	User           PublicUser  `json:"user"`
	OriginalPost   *Post       `json:"original_post,omitempty"`
	OriginalAuthor *PublicUser `json:"original_author,omitempty"`
}

// PostLikedEvent represents a like toggle on a post.
type PostLikedEvent struct {
	PostID         string     `json:"post_id"`
	OriginalPostID string     `json:"original_post_id"`
	Liked          bool       `json:"liked"`
	LikesCount     int        `json:"likes_count"`
	User           PublicUser `json:"user"`
}

// PostRepostedEvent represents a repost toggle on a post.
type PostRepostedEvent struct {
	PostID         string     `json:"post_id"`
	OriginalPostID string     `json:"original_post_id"`
	Action         string     `json:"action"`
	Repost         *Post      `json:"repost,omitempty"`
	Reposted       bool       `json:"reposted"`
	RepostsCount   int        `json:"reposts_count"`
	User           PublicUser `json:"user"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
