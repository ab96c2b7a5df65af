package posts

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/xreader/feed-service/internal/events"
	"github.com/xreader/feed-service/internal/feed"
	"github.com/xreader/feed-service/internal/http/middleware"
	"github.com/xreader/feed-service/internal/storage"
	"github.com/xreader/feed-service/internal/types"
	"github.com/xreader/feed-service/internal/utils/response"
)

// Create handles creating a new book review post
func Create(engine *feed.Engine, store storage.Storage, publisher events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		var req types.PostCreateRequest

		err := json.NewDecoder(r.Body).Decode(&req)
		if errors.Is(err, io.EOF) {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("request body cannot be empty")))
			return
		} else if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		// Validate request
		validate := validator.New()
		err = validate.Struct(req)
		if err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		post, err := engine.CreatePost(userID, req.BookName, req.ContentText)
		if err != nil {
			response.WriteError(w, err)
			return
		}
		slog.Info("Post created", slog.String("post_id", post.ID), slog.String("author_id", userID))

		author := authorOf(store, userID)
		publisher.PublishPostCreated(middleware.GetSessionID(r), post, author)

		response.WriteJSON(w, http.StatusCreated, response.RequestOK("Post created successfully", feed.Item{
			Post:   post,
			Author: author,
		}))
	}
}

// Delete handles deleting a post; only the author may delete it. Direct
// reposts of a deleted original survive as independent originals.
func Delete(engine *feed.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		postID := r.PathValue("id")
		if postID == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("post ID is required")))
			return
		}

		deleted, err := engine.DeletePost(postID, userID)
		if err != nil {
			response.WriteError(w, err)
			return
		}
		if !deleted {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(errors.New("post not found or already deleted")))
			return
		}

		slog.Info("Post deleted", slog.String("post_id", postID), slog.String("author_id", userID))
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Post deleted successfully", nil))
	}
}

// Like toggles the caller's like on a post. The toggle always lands on
// the resolved original, whichever id the caller used.
func Like(engine *feed.Engine, store storage.Storage, publisher events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		postID := r.PathValue("id")
		if postID == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("post ID is required")))
			return
		}

		result, err := engine.ToggleLike(postID, userID)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		publisher.PublishPostLiked(middleware.GetSessionID(r), types.PostLikedEvent{
			PostID:         postID,
			OriginalPostID: result.OriginalPostID,
			Liked:          result.Liked,
			LikesCount:     result.LikesCount,
			User:           authorOf(store, userID),
		})

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Like toggled", result))
	}
}

// Repost toggles the caller's repost of a post against the resolved
// original.
func Repost(engine *feed.Engine, store storage.Storage, publisher events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		postID := r.PathValue("id")
		if postID == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("post ID is required")))
			return
		}

		result, err := engine.ToggleRepost(userID, postID)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		action := types.RepostActionDelete
		if result.Reposted {
			action = types.RepostActionCreate
		}
		publisher.PublishPostReposted(middleware.GetSessionID(r), types.PostRepostedEvent{
			PostID:         postID,
			OriginalPostID: result.OriginalPostID,
			Action:         action,
			Repost:         result.Repost,
			Reposted:       result.Reposted,
			RepostsCount:   result.RepostsCount,
			User:           authorOf(store, userID),
		})

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Repost toggled", result))
	}
}

// authorOf resolves the acting user's public fields for fan-out payloads
// and responses, degrading to the deleted-user placeholder rather than
// failing the mutation.
func authorOf(store storage.Storage, userID string) types.PublicUser {
	user, err := store.GetUserByID(userID)
	if err != nil {
		return types.DeletedUser(userID)
	}
	return user.Public()
}
