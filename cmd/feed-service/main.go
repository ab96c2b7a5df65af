package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/xreader/feed-service/internal/cache"
	"github.com/xreader/feed-service/internal/config"
	"github.com/xreader/feed-service/internal/events"
	"github.com/xreader/feed-service/internal/feed"
	"github.com/xreader/feed-service/internal/http/handlers/feedpage"
	"github.com/xreader/feed-service/internal/http/handlers/posts"
	"github.com/xreader/feed-service/internal/http/handlers/profile"
	"github.com/xreader/feed-service/internal/http/handlers/users"
	wsHandler "github.com/xreader/feed-service/internal/http/handlers/websocket"
	"github.com/xreader/feed-service/internal/http/middleware"
	"github.com/xreader/feed-service/internal/storage"
	"github.com/xreader/feed-service/internal/storage/postgres"
	ws "github.com/xreader/feed-service/internal/websocket"
)

func main() {
	// load config
	cfg := config.MustLoad()

	// database setup
	pg, err := postgres.NewPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	slog.Info("Connected to Postgres database")

	// Redis client for caching and rate limiting
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	slog.Info("Connected to Redis")

	// Wrap storage with the read-through cache
	var store storage.Storage = cache.NewCacheService(pg, redisClient)

	engine := feed.NewEngine(store)

	// WebSocket hub for realtime fan-out
	hub := ws.NewHub()
	go hub.Run()

	publisher := events.NewEventPublisher(hub, store)

	rateLimits := middleware.NewRateLimitConfig(redisClient, cfg.RateLimits)
	auth := middleware.AuthMiddleware(cfg.JWTSecret)

	// setup server
	router := http.NewServeMux()

	router.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("XReader feed service"))
	})

	// Auth
	router.HandleFunc("POST /signup", users.SignUp(store))
	router.HandleFunc("POST /login", users.Login(store, cfg.JWTSecret))

	// Account
	router.Handle("GET /me", auth(users.Me(store)))
	router.Handle("PATCH /me", auth(users.UpdateProfile(store)))
	router.Handle("PATCH /me/password", auth(users.UpdatePassword(store)))
	router.Handle("DELETE /me", auth(users.DeleteMe(store)))

	// Social graph
	router.Handle("POST /follow/{user_id}", auth(users.FollowUser(store)))
	router.Handle("DELETE /follow/{user_id}", auth(users.UnfollowUser(store)))
	router.Handle("GET /profile/{username}", auth(profile.Get(engine, store)))

	// Feed
	router.Handle("GET /feed", auth(feedpage.Feed(engine)))
	router.Handle("GET /users/{username}/posts", auth(feedpage.UserPosts(engine, store)))

	// Posts and interactions
	router.Handle("POST /posts",
		auth(rateLimits.RateLimitMiddleware(middleware.ActionPosts)(posts.Create(engine, store, publisher))))
	router.Handle("DELETE /posts/{id}", auth(posts.Delete(engine)))
	router.Handle("POST /posts/{id}/like",
		auth(rateLimits.RateLimitMiddleware(middleware.ActionInteractions)(posts.Like(engine, store, publisher))))
	router.Handle("POST /posts/{id}/repost",
		auth(rateLimits.RateLimitMiddleware(middleware.ActionInteractions)(posts.Repost(engine, store, publisher))))

	// Realtime
	router.HandleFunc("GET /ws", wsHandler.WebSocketHandler(hub, cfg.JWTSecret))

	server := http.Server{
		Addr:    cfg.HTTPServer.Address,
		Handler: router,
	}

	log.Println("server started on", cfg.HTTPServer.Address)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %s", err)
		}
	}()

	<-done

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = server.Shutdown(ctx)
	if err != nil {
		slog.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
		return
	}

	slog.Info("Server stopped")
}
