package events

import (
	"errors"
	"log/slog"

	"github.com/xreader/feed-service/internal/errs"
	"github.com/xreader/feed-service/internal/storage"
	"github.com/xreader/feed-service/internal/types"
)

// Publisher is the fan-out capability injected into the HTTP layer. All
// methods are fire-and-forget: they never block the mutation path and
// their failure never fails the caller's request. senderSessionID is the
// websocket session that triggered the mutation and is excluded from
// delivery; it may be empty when the caller has no live session.
type Publisher interface {
	PublishPostCreated(senderSessionID string, post types.Post, author types.PublicUser)
	PublishPostLiked(senderSessionID string, data types.PostLikedEvent)
	PublishPostReposted(senderSessionID string, data types.PostRepostedEvent)
}

// WebSocketHub interface for the WebSocket hub
type WebSocketHub interface {
	BroadcastToOthers(senderSessionID string, event *types.Event)
}

// EventPublisher implements the Publisher interface
type EventPublisher struct {
	hub   WebSocketHub
	store storage.Storage
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(hub WebSocketHub, store storage.Storage) *EventPublisher {
	return &EventPublisher{
		hub:   hub,
		store: store,
	}
}

// PublishPostCreated broadcasts a new feed entry to other sessions.
func (p *EventPublisher) PublishPostCreated(senderSessionID string, post types.Post, author types.PublicUser) {
	eventData := types.PostCreatedEvent{
		Post: post,
		User: author,
	}

	p.hub.BroadcastToOthers(senderSessionID, types.NewEvent(types.EventPostCreated, eventData))
}

// PublishPostLiked broadcasts a like toggle to other sessions.
func (p *EventPublisher) PublishPostLiked(senderSessionID string, data types.PostLikedEvent) {
	p.hub.BroadcastToOthers(senderSessionID, types.NewEvent(types.EventPostLiked, data))
}

// PublishPostReposted broadcasts a repost toggle. For create actions it
// additionally synthesizes a post.created payload carrying the repost
// plus resolved original-author attribution, so subscribers can render
// the repost as a new feed entry without a follow-up fetch.
func (p *EventPublisher) PublishPostReposted(senderSessionID string, data types.PostRepostedEvent) {
	p.hub.BroadcastToOthers(senderSessionID, types.NewEvent(types.EventPostReposted, data))

	if data.Action != types.RepostActionCreate || data.Repost == nil {
		return
	}

	original, err := p.store.GetPostByID(data.OriginalPostID)
	if err != nil {
		// The original may already be gone again; the repost entry
		// still goes out, just without attribution.
		if !errors.Is(err, errs.ErrNotFound) {
			slog.Error("Failed to load original for repost fan-out",
				slog.String("original_post_id", data.OriginalPostID),
				slog.String("error", err.Error()))
		}
		p.hub.BroadcastToOthers(senderSessionID, types.NewEvent(types.EventPostCreated, types.PostCreatedEvent{
			Post: *data.Repost,
			User: data.User,
		}))
		return
	}

	originalAuthor := types.DeletedUser(original.AuthorID)
	if author, err := p.store.GetUserByID(original.AuthorID); err == nil {
		originalAuthor = author.Public()
	}

	eventData := types.PostCreatedEvent{
		Post:           *data.Repost,
		User:           data.User,
		OriginalPost:   &original,
		OriginalAuthor: &originalAuthor,
	}

	p.hub.BroadcastToOthers(senderSessionID, types.NewEvent(types.EventPostCreated, eventData))
}
