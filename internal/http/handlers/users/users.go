package users

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xreader/feed-service/internal/errs"
	"github.com/xreader/feed-service/internal/http/middleware"
	"github.com/xreader/feed-service/internal/storage"
	"github.com/xreader/feed-service/internal/types"
	"github.com/xreader/feed-service/internal/utils/jwt"
	"github.com/xreader/feed-service/internal/utils/password"
	"github.com/xreader/feed-service/internal/utils/response"
)

// SignUp handles user registration. Usernames are unique; a taken
// username fails with a conflict.
func SignUp(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SignUpRequest

		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
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

		hashedPassword, err := password.HashPassword(req.Password)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to hash password")))
			return
		}

		now := time.Now().UTC()
		user := types.User{
			ID:           uuid.New().String(),
			Username:     req.Username,
			FullName:     req.FullName,
			PasswordHash: hashedPassword,
			Age:          req.Age,
			Interests:    req.Interests,
			Following:    []string{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := store.CreateUser(user); err != nil {
			response.WriteError(w, err)
			return
		}
		slog.Info("User created", slog.String("user_id", user.ID), slog.String("username", user.Username))

		response.WriteJSON(w, http.StatusCreated, map[string]string{
			"id": user.ID,
		})
	}
}

// Login handles user authentication and returns a JWT token.
func Login(store storage.Storage, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SignInRequest

		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
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

		user, err := store.GetUserByUsername(req.Username)
		if err != nil {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("invalid username or password")))
			return
		}

		if !password.CheckPasswordHash(req.Password, user.PasswordHash) {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("invalid username or password")))
			return
		}

		token, err := jwt.CreateToken(user.ID, jwtSecret)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to generate token")))
			return
		}

		response.WriteJSON(w, http.StatusOK, map[string]string{
			"user_id": user.ID,
			"token":   token,
		})
	}
}

// Me returns the authenticated user's account record.
func Me(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		user, err := store.GetUserByID(userID)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, user)
	}
}

// UpdateProfile updates the authenticated user's fullName, age and
// interests. Zero-valued fields are left unchanged.
func UpdateProfile(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		var req types.UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		validate := validator.New()
		if err := validate.Struct(req); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		user, err := store.GetUserByID(userID)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		if req.FullName != "" {
			user.FullName = req.FullName
		}
		if req.Age != nil {
			user.Age = *req.Age
		}
		if req.Interests != nil {
			user.Interests = req.Interests
		}

		if err := store.UpdateUser(user); err != nil {
			response.WriteError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Profile updated successfully", user))
	}
}

// UpdatePassword changes the authenticated user's password after
// verifying the current one.
func UpdatePassword(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		var req types.UpdatePasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		validate := validator.New()
		if err := validate.Struct(req); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		user, err := store.GetUserByID(userID)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		if !password.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("current password is incorrect")))
			return
		}

		hashed, err := password.HashPassword(req.NewPassword)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to hash password")))
			return
		}
		user.PasswordHash = hashed

		if err := store.UpdateUser(user); err != nil {
			response.WriteError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Password updated successfully", nil))
	}
}

// DeleteMe deletes the authenticated user's account. Posts are not
// cascaded; feeds render their author as the deleted-user placeholder.
func DeleteMe(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		deleted, err := store.DeleteUser(userID)
		if err != nil {
			response.WriteError(w, err)
			return
		}
		if !deleted {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(errors.New("user not found")))
			return
		}

		slog.Info("User deleted", slog.String("user_id", userID))
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Account deleted successfully", nil))
	}
}

// FollowUser handles following a user. Self-follows are rejected; a
// repeat follow is a no-op.
func FollowUser(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		followerID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		followedID := r.PathValue("user_id")
		if followedID == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("user_id is required")))
			return
		}

		if followedID == followerID {
			response.WriteError(w, errs.Conflictf("you cannot follow yourself"))
			return
		}

		if _, err := store.GetUserByID(followedID); err != nil {
			response.WriteError(w, err)
			return
		}

		if err := store.AddFollowing(followerID, followedID); err != nil {
			slog.Error("Failed to follow user", slog.String("error", err.Error()),
				slog.String("follower_id", followerID), slog.String("followed_id", followedID))
			response.WriteError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("User followed successfully", nil))
	}
}

// UnfollowUser handles unfollowing a user. Unfollowing someone not
// followed is a no-op.
func UnfollowUser(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		followerID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		followedID := r.PathValue("user_id")
		if followedID == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("user_id is required")))
			return
		}

		if err := store.RemoveFollowing(followerID, followedID); err != nil {
			slog.Error("Failed to unfollow user", slog.String("error", err.Error()),
				slog.String("follower_id", followerID), slog.String("followed_id", followedID))
			response.WriteError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("User unfollowed successfully", nil))
	}
}
