package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/xreader/feed-service/internal/config"
	"github.com/xreader/feed-service/internal/ratelimit"
	"github.com/xreader/feed-service/internal/utils/response"
)

// Rate-limited actions.
const (
	ActionPosts        = "posts"
	ActionInteractions = "interactions"
)

type RateLimitConfig struct {
	redisClient *redis.Client
	limiters    map[string]*ratelimit.TokenBucket
	limits      map[string]int64
}

func NewRateLimitConfig(redisClient *redis.Client, cfg config.RateLimits) *RateLimitConfig {
	rlc := &RateLimitConfig{
		redisClient: redisClient,
		limiters:    make(map[string]*ratelimit.TokenBucket),
		limits:      make(map[string]int64),
	}

	// POST /posts: per-user post creations per minute
	rlc.limiters[ActionPosts] = ratelimit.NewTokenBucket(redisClient, cfg.Posts, cfg.Posts)
	rlc.limits[ActionPosts] = cfg.Posts

	// like/repost toggles: per-user per minute
	rlc.limiters[ActionInteractions] = ratelimit.NewTokenBucket(redisClient, cfg.Interactions, cfg.Interactions)
	rlc.limits[ActionInteractions] = cfg.Interactions

	return rlc
}

func (rlc *RateLimitConfig) RateLimitMiddleware(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get user ID from context (assumes auth middleware ran first)
			userID, ok := GetUserIDFromContext(r.Context())
			if !ok {
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
					errors.New("user not authenticated")))
				return
			}

			// Get the appropriate rate limiter
			limiter, exists := rlc.limiters[action]
			if !exists {
				// If no rate limiter configured for this action, allow the request
				next.ServeHTTP(w, r)
				return
			}

			// Check if user is allowed to perform this action
			allowed, err := limiter.Allow(r.Context(), userID, action)
			if err != nil {
				response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
					fmt.Errorf("rate limit check failed: %w", err)))
				return
			}

			// Get remaining tokens for rate limit headers
			remaining, _ := limiter.GetRemaining(r.Context(), userID, action)

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rlc.limits[action], 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", "60") // Reset in 60 seconds (1 minute window)

			if !allowed {
				response.WriteJSON(w, http.StatusTooManyRequests, response.GeneralError(
					errors.New("rate limit exceeded")))
				return
			}

			// Allow the request to proceed
			next.ServeHTTP(w, r)
		})
	}
}
