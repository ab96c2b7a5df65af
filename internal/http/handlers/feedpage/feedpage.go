// Package feedpage serves the assembled feed endpoints.
package feedpage

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/xreader/feed-service/internal/feed"
	"github.com/xreader/feed-service/internal/http/middleware"
	"github.com/xreader/feed-service/internal/storage"
	"github.com/xreader/feed-service/internal/types"
	"github.com/xreader/feed-service/internal/utils/response"
)

// Feed handles the feed endpoint. filter=all returns the global feed,
// filter=following restricts to the caller's own posts and the posts of
// users they follow. Any other filter value falls back to the global
// feed.
func Feed(engine *feed.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		limit, skip := pagination(r)

		var posts []types.Post
		var err error
		if r.URL.Query().Get("filter") == "following" {
			posts, err = engine.GetFeed(userID, limit, skip)
		} else {
			posts, err = engine.GetAllPosts(limit, skip)
		}
		if err != nil {
			response.WriteError(w, err)
			return
		}

		items, err := engine.Assemble(posts)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Feed fetched successfully", items))
	}
}

// UserPosts handles the posts-by-user endpoint.
func UserPosts(engine *feed.Engine, store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.PathValue("username")
		if username == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("username is required")))
			return
		}

		user, err := store.GetUserByUsername(username)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		limit, skip := pagination(r)

		posts, err := engine.GetUserPosts(user.ID, limit, skip)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		items, err := engine.Assemble(posts)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("User posts fetched successfully", items))
	}
}

func pagination(r *http.Request) (limit, skip int) {
	limit = 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("skip"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			skip = parsed
		}
	}
	return limit, skip
}
