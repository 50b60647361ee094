package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/makroxyz/simplechat/internal/config"
	"github.com/makroxyz/simplechat/internal/handlers"
	"github.com/makroxyz/simplechat/internal/middleware"
	"github.com/makroxyz/simplechat/internal/repository"
	"github.com/makroxyz/simplechat/internal/services"
	chatws "github.com/makroxyz/simplechat/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, redisClient *redis.Client) {
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewUserProfileRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	resolver := services.NewProfileIdentityResolver(userRepo, profileRepo)
	chatService := services.NewChatService(
		conversationRepo,
		messageRepo,
		userRepo,
		resolver,
		cfg.MarkReadOnView,
	)
	profileService := services.NewProfileService(profileRepo)

	chatHub := chatws.NewHub(redisClient)
	go chatHub.Run()
	if redisClient != nil {
		go chatHub.SubscribeFanout()
	}

	authHandler := handlers.NewAuthHandler(db, userRepo, cfg.JWTSecret)
	chatHandler := handlers.NewChatHandler(chatService, chatHub, cfg.JWTSecret)
	profileHandler := handlers.NewProfileHandler(profileService)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	v1 := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	v1.Get("/contacts", profileHandler.ListContacts)
	v1.Get("/profile", profileHandler.GetProfile)
	v1.Put("/profile", profileHandler.UpdateProfile)

	conversations := v1.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Delete("/:contactId", chatHandler.DeleteConversation)
	conversations.Put("/:contactId/read", chatHandler.MarkConversationRead)
	conversations.Put("/:contactId/unread", chatHandler.MarkConversationUnread)
	conversations.Get("/:contactId/messages", chatHandler.GetMessages)
	conversations.Post("/:contactId/messages", chatHandler.SendMessage)

	v1.Delete("/messages/:id", chatHandler.DeleteMessage)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))
}
