package events

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xreader/feed-service/internal/storage/memory"
	"github.com/xreader/feed-service/internal/types"
)

// recorderHub captures broadcasts instead of delivering them.
type recorderHub struct {
	senders []string
	events  []*types.Event
}

func (r *recorderHub) BroadcastToOthers(senderSessionID string, event *types.Event) {
	r.senders = append(r.senders, senderSessionID)
	r.events = append(r.events, event)
}

var eventContent = strings.Repeat("A review long enough to clear the minimum length. ", 2)

func TestPublishPostCreated(t *testing.T) {
	hub := &recorderHub{}
	store := memory.NewMemory()
	publisher := NewEventPublisher(hub, store)

	post := types.Post{ID: "p1", AuthorID: "alice", BookName: "Dune", ContentText: eventContent}
	author := types.PublicUser{ID: "alice", Username: "alice", FullName: "Alice"}

	publisher.PublishPostCreated("session-1", post, author)

	require.Len(t, hub.events, 1)
	assert.Equal(t, "session-1", hub.senders[0])
	assert.Equal(t, types.EventPostCreated, hub.events[0].Type)

	data, ok := hub.events[0].Data.(types.PostCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "p1", data.Post.ID)
	assert.Equal(t, "alice", data.User.ID)
	assert.Nil(t, data.OriginalPost)
}

func TestPublishPostLiked(t *testing.T) {
	hub := &recorderHub{}
	publisher := NewEventPublisher(hub, memory.NewMemory())

	publisher.PublishPostLiked("session-1", types.PostLikedEvent{
		PostID:         "p1",
		OriginalPostID: "p1",
		Liked:          true,
		LikesCount:     3,
	})

	require.Len(t, hub.events, 1)
	assert.Equal(t, types.EventPostLiked, hub.events[0].Type)
}

func TestPublishPostReposted_CreateSynthesizesFeedEntry(t *testing.T) {
	hub := &recorderHub{}
	store := memory.NewMemory()
	publisher := NewEventPublisher(hub, store)

	require.NoError(t, store.CreateUser(types.User{ID: "alice", Username: "alice", FullName: "Alice"}))
	original := types.Post{ID: "p1", AuthorID: "alice", BookName: "Dune", ContentText: eventContent,
		Likes: []string{}, Reposts: []string{"bob"}}
	require.NoError(t, store.CreatePost(original))

	repost := types.Post{ID: "r1", AuthorID: "bob", OriginalPostID: "p1",
		BookName: "Dune", ContentText: eventContent}

	publisher.PublishPostReposted("session-1", types.PostRepostedEvent{
		PostID:         "p1",
		OriginalPostID: "p1",
		Action:         types.RepostActionCreate,
		Repost:         &repost,
		Reposted:       true,
		RepostsCount:   1,
		User:           types.PublicUser{ID: "bob", Username: "bob"},
	})

	// The toggle event plus the synthesized feed entry.
	require.Len(t, hub.events, 2)
	assert.Equal(t, types.EventPostReposted, hub.events[0].Type)
	assert.Equal(t, types.EventPostCreated, hub.events[1].Type)

	data, ok := hub.events[1].Data.(types.PostCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "r1", data.Post.ID)
	assert.Equal(t, "bob", data.User.ID)
	require.NotNil(t, data.OriginalPost)
	assert.Equal(t, "p1", data.OriginalPost.ID)
	require.NotNil(t, data.OriginalAuthor)
	assert.Equal(t, "alice", data.OriginalAuthor.Username)
}

func TestPublishPostReposted_DeleteDoesNotSynthesize(t *testing.T) {
	hub := &recorderHub{}
	publisher := NewEventPublisher(hub, memory.NewMemory())

	publisher.PublishPostReposted("session-1", types.PostRepostedEvent{
		PostID:         "p1",
		OriginalPostID: "p1",
		Action:         types.RepostActionDelete,
		Reposted:       false,
		RepostsCount:   0,
	})

	require.Len(t, hub.events, 1)
	assert.Equal(t, types.EventPostReposted, hub.events[0].Type)
}

func TestPublishPostReposted_MissingOriginalDegrades(t *testing.T) {
	hub := &recorderHub{}
	publisher := NewEventPublisher(hub, memory.NewMemory())

	repost := types.Post{ID: "r1", AuthorID: "bob", OriginalPostID: "gone",
		BookName: "Dune", ContentText: eventContent}

	publisher.PublishPostReposted("session-1", types.PostRepostedEvent{
		PostID:         "gone",
		OriginalPostID: "gone",
		Action:         types.RepostActionCreate,
		Repost:         &repost,
		Reposted:       true,
		RepostsCount:   1,
		User:           types.PublicUser{ID: "bob", Username: "bob"},
	})

	// The feed entry still goes out, just without attribution.
	require.Len(t, hub.events, 2)
	data, ok := hub.events[1].Data.(types.PostCreatedEvent)
	require.True(t, ok)
	assert.Nil(t, data.OriginalPost)
	assert.Nil(t, data.OriginalAuthor)
}
