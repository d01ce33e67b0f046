package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/earnbuddy/backend/internal/config"
	"github.com/earnbuddy/backend/internal/middleware"
	"github.com/earnbuddy/backend/internal/realtime"
	"github.com/earnbuddy/backend/pkg/cache"
	"github.com/earnbuddy/backend/pkg/storage"

	applicationHttp "github.com/earnbuddy/backend/internal/modules/application/delivery/http"
	applicationRepo "github.com/earnbuddy/backend/internal/modules/application/repository"
	applicationService "github.com/earnbuddy/backend/internal/modules/application/service"

	collabHttp "github.com/earnbuddy/backend/internal/modules/collaboration/delivery/http"
	collabRepo "github.com/earnbuddy/backend/internal/modules/collaboration/repository"
	collabService "github.com/earnbuddy/backend/internal/modules/collaboration/service"

	eventHttp "github.com/earnbuddy/backend/internal/modules/event/delivery/http"
	eventRepo "github.com/earnbuddy/backend/internal/modules/event/repository"
	eventService "github.com/earnbuddy/backend/internal/modules/event/service"

	notiHttp "github.com/earnbuddy/backend/internal/modules/notification/delivery/http"
	notifRepo "github.com/earnbuddy/backend/internal/modules/notification/repository"
	notifService "github.com/earnbuddy/backend/internal/modules/notification/service"

	opportunityHttp "github.com/earnbuddy/backend/internal/modules/opportunity/delivery/http"
	opportunityRepo "github.com/earnbuddy/backend/internal/modules/opportunity/repository"
	opportunityService "github.com/earnbuddy/backend/internal/modules/opportunity/service"

	reconcileRepo "github.com/earnbuddy/backend/internal/modules/reconcile/repository"
	reconcileService "github.com/earnbuddy/backend/internal/modules/reconcile/service"

	roomHttp "github.com/earnbuddy/backend/internal/modules/room/delivery/http"
	roomRepo "github.com/earnbuddy/backend/internal/modules/room/repository"
	roomService "github.com/earnbuddy/backend/internal/modules/room/service"

	searchHttp "github.com/earnbuddy/backend/internal/modules/search/delivery/http"
	searchService "github.com/earnbuddy/backend/internal/modules/search/service"

	uploadHttp "github.com/earnbuddy/backend/internal/modules/upload/delivery/http"

	userHttp "github.com/earnbuddy/backend/internal/modules/user/delivery/http"
	userRepo "github.com/earnbuddy/backend/internal/modules/user/repository"
	userService "github.com/earnbuddy/backend/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	engine     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger
	redisBus   *realtime.RedisBus
	reconciler reconcileService.Service
}

func NewServer(ctx context.Context, cfg *config.Config, db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) (*Server, error) {
	verifier, err := middleware.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseJWKSURL)
	if err != nil {
		return nil, err
	}

	var imageStorage storage.ImageStorage
	if cfg.CloudinaryConfigured() {
		imageStorage, err = storage.NewCloudinaryStorage(storage.Options{
			CloudName:     cfg.CloudinaryCloudName,
			APIKey:        cfg.CloudinaryAPIKey,
			APISecret:     cfg.CloudinaryAPISecret,
			DefaultFolder: cfg.CloudinaryUploadFolder,
		})
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("cloudinary is not configured, uploads are disabled")
	}

	var meiliClient meilisearch.ServiceManager
	if cfg.MeiliSearchHost != "" {
		meiliClient = meilisearch.New(cfg.MeiliSearchHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	} else {
		logger.Warn("MEILISEARCH_HOST is not set, search is disabled")
	}
	searchSvc := searchService.NewService(meiliClient, logger.Named("search"))

	hub := realtime.NewHub(logger.Named("realtime"))
	var (
		bus      realtime.Bus
		redisBus *realtime.RedisBus
		ca       cache.Cache
	)
	if redisClient != nil {
		redisBus = realtime.NewRedisBus(redisClient, hub, logger.Named("realtime"))
		bus = redisBus
		ca = cache.NewRedisCache(redisClient)
	} else {
		bus = realtime.NewLocalBus(hub, logger.Named("realtime"))
		ca = cache.NewMemoryCache()
	}

	// Repositories
	users := userRepo.NewUserRepository(db)
	rooms := roomRepo.NewRoomRepository(db)
	memberships := roomRepo.NewMembershipRepository(db)
	messages := roomRepo.NewMessageRepository(db)
	opportunities := opportunityRepo.NewOpportunityRepository(db)
	applications := applicationRepo.NewApplicationRepository(db)
	collabRequests := collabRepo.NewCollaborationRepository(db)
	notifications := notifRepo.NewNotificationRepository(db)
	events := eventRepo.NewEventRepository(db)

	// Notification Module
	notificationSvc := notifService.NewNotificationService(notifications, users, bus, logger.Named("notification"))
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc)

	userSvc := userService.NewService(users, opportunities)
	userHandler := userHttp.NewUserHandler(userSvc)

	roomSvc := roomService.NewService(roomService.Deps{
		Users:       users,
		Rooms:       rooms,
		Memberships: memberships,
		Messages:    messages,
		Cache:       ca,
		Bus:         bus,
		Notifier:    notificationSvc,
		Indexer:     searchSvc,
		Presence:    hub,
		Storage:     imageStorage,
		Redis:       redisClient,
		ListTTL:     cfg.RoomCacheTTL,
		Cooldown:    cfg.MessageCooldown,
		Logger:      logger.Named("room"),
	})
	roomHandler := roomHttp.NewRoomHandler(roomSvc)

	opportunitySvc := opportunityService.NewService(users, opportunities, rooms, memberships, ca, bus, searchSvc, logger.Named("opportunity"))
	opportunityHandler := opportunityHttp.NewOpportunityHandler(opportunitySvc)

	applicationSvc := applicationService.NewService(users, opportunities, applications, rooms, memberships, ca, bus, notificationSvc, logger.Named("application"))
	applicationHandler := applicationHttp.NewApplicationHandler(applicationSvc)

	collabSvc := collabService.NewService(users, collabRequests, rooms, memberships, ca, bus, notificationSvc, logger.Named("collaboration"))
	collabHandler := collabHttp.NewCollaborationHandler(collabSvc)

	eventSvc := eventService.NewService(users, events)
	eventHandler := eventHttp.NewEventHandler(eventSvc)

	searchHandler := searchHttp.NewSearchHandler(searchSvc)
	uploadHandler := uploadHttp.NewUploadHandler(imageStorage)
	wsHandler := realtime.NewHandler(hub, roomSvc, originChecker(cfg.AllowedOrigins), logger.Named("realtime"))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http"), "/health"))

	authMiddleware := middleware.NewAuthMiddleware(verifier)

	// Public routes (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connected_users": hub.ConnectedUsers()})
	})

	api := router.Group("/api")

	// Protected routes (apply auth middleware explicitly)
	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// User routes
		protected.POST("/users/sync", userHandler.Sync)
		protected.GET("/users/me", userHandler.GetMe)
		protected.PUT("/users/me", userHandler.UpdateMe)
		protected.POST("/users/bookmarks/toggle", userHandler.ToggleBookmark)

		// Room routes
		protected.POST("/rooms", roomHandler.CreateRoom)
		protected.GET("/rooms", roomHandler.GetRooms)
		protected.GET("/rooms/me", roomHandler.GetMyRooms)
		protected.POST("/rooms/:roomId/join", roomHandler.JoinRoom)
		protected.GET("/rooms/:roomId/online", roomHandler.GetOnlineMembers)
		protected.GET("/rooms/:roomId/pending", roomHandler.GetPendingRequests)
		protected.PATCH("/rooms/:roomId/members/:userId", roomHandler.UpdateMembershipStatus)
		protected.PUT("/rooms/:roomId", roomHandler.UpdateRoom)
		protected.DELETE("/rooms/:roomId", roomHandler.DeleteRoom)
		protected.POST("/rooms/:roomId/leave", roomHandler.LeaveRoom)
		protected.GET("/rooms/:roomId/members", roomHandler.GetRoomMembers)
		protected.GET("/rooms/:roomId/messages", roomHandler.GetMessages)
		protected.POST("/rooms/:roomId/messages", roomHandler.SendMessage)

		// Opportunity routes
		protected.POST("/opportunities", opportunityHandler.CreateOpportunity)
		protected.GET("/opportunities", opportunityHandler.ListOpportunities)
		protected.GET("/opportunities/:opportunityId", opportunityHandler.GetOpportunity)

		// Application routes
		protected.POST("/applications", applicationHandler.Apply)
		protected.GET("/applications/me", applicationHandler.GetMyApplications)
		protected.GET("/applications/opportunity/:opportunityId", applicationHandler.GetApplicationsForOpportunity)
		protected.PATCH("/applications/:applicationId/status", applicationHandler.UpdateStatus)
		protected.POST("/applications/:applicationId/status", applicationHandler.UpdateStatus)

		// Collaboration routes
		protected.POST("/collaboration/request", collabHandler.SendRequest)
		protected.GET("/collaboration/pending", collabHandler.GetPending)
		protected.POST("/collaboration/:requestId/accept", collabHandler.Accept)
		protected.POST("/collaboration/:requestId/reject", collabHandler.Reject)

		// Event routes
		protected.GET("/events", eventHandler.ListEvents)
		protected.POST("/events", eventHandler.CreateEvent)

		// Notification routes
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)

		// Other protected routes
		protected.GET("/search", searchHandler.Search)
		protected.POST("/upload/signature", uploadHandler.Signature)
		protected.POST("/upload", uploadHandler.Upload)
		protected.GET("/ws", wsHandler.HandleWebSocket)
	}

	return &Server{
		engine:     router,
		cfg:        cfg,
		logger:     logger,
		redisBus:   redisBus,
		reconciler: reconcileService.NewService(reconcileRepo.NewCounterRepository(db), logger.Named("reconcile")),
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP and the background workers until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.redisBus != nil {
		go func() {
			if err := s.redisBus.Run(ctx); err != nil {
				s.logger.Error("realtime subscriber stopped", zap.Error(err))
			}
		}()
	}
	go s.reconciler.StartWorker(ctx, s.cfg.ReconcileInterval)

	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server exited with error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}

func setupCORS(router *gin.Engine, origins []string) {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}

// originChecker admits websocket upgrades from the CORS origins. Requests
// without an Origin header come from non-browser clients and are allowed.
func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
