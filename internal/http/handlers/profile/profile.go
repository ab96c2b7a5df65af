package profile

import (
	"errors"
	"net/http"

	"github.com/xreader/feed-service/internal/feed"
	"github.com/xreader/feed-service/internal/http/middleware"
	"github.com/xreader/feed-service/internal/storage"
	"github.com/xreader/feed-service/internal/types"
	"github.com/xreader/feed-service/internal/utils/response"
)

// Profile is the public view of a user: account fields, follow graph
// counts with public member lists, the relationship to the caller, and
// the user's assembled posts.
type Profile struct {
	User           types.PublicUser   `json:"user"`
	Age            int                `json:"age"`
	Interests      []string           `json:"interests"`
	Following      []types.PublicUser `json:"following"`
	Followers      []types.PublicUser `json:"followers"`
	FollowingCount int                `json:"following_count"`
	FollowersCount int                `json:"followers_count"`
	IsFollowing    bool               `json:"is_following"`
	FollowsYou     bool               `json:"follows_you"`
	Posts          []feed.Item        `json:"posts"`
}

// Get handles the public profile endpoint.
func Get(engine *feed.Engine, store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

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

		following, err := store.GetUsersByIDs(user.Following)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		followers, err := store.GetFollowers(user.ID)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		posts, err := engine.GetUserPosts(user.ID, 20, 0)
		if err != nil {
			response.WriteError(w, err)
			return
		}
		items, err := engine.Assemble(posts)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		p := Profile{
			User:           user.Public(),
			Age:            user.Age,
			Interests:      user.Interests,
			Following:      publicUsers(following),
			Followers:      publicUsers(followers),
			FollowingCount: len(user.Following),
			FollowersCount: len(followers),
			FollowsYou:     contains(user.Following, viewerID),
			Posts:          items,
		}
		for _, f := range followers {
			if f.ID == viewerID {
				p.IsFollowing = true
				break
			}
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Profile fetched successfully", p))
	}
}

func publicUsers(users []types.User) []types.PublicUser {
	out := make([]types.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
