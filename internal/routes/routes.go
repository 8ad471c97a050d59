package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"renamewiki-system/internal/controllers"
	"renamewiki-system/internal/jobs"
	"renamewiki-system/internal/listeners"
	"renamewiki-system/internal/platform"
	"renamewiki-system/internal/repositories"
	"renamewiki-system/internal/services"
	"renamewiki-system/pkg/config"
	"renamewiki-system/pkg/eventbus"
	"renamewiki-system/pkg/middleware"
	"renamewiki-system/pkg/service"
	"renamewiki-system/pkg/telegram"
)

// InitRouter собирает весь граф зависимостей и регистрирует маршруты.
// Возвращает воркер переименований, который main запускает отдельной
// горутиной.
func InitRouter(e *echo.Echo, dbConn *pgxpool.Pool, redisClient *redis.Client, cfg *config.Config, logger *zap.Logger) *jobs.RenameJobRunner {
	logger.Info("InitRouter: Начало создания маршрутов")

	api := e.Group("/api")

	// --- 1. РЕПОЗИТОРИИ ---
	requestRepo := repositories.NewRequestRepository(dbConn)
	commentRepo := repositories.NewCommentRepository(dbConn)
	logRepo := repositories.NewLogRepository(dbConn)
	userRepo := repositories.NewUserRepository(dbConn)
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)

	// --- 2. ИНФРАСТРУКТУРА ---
	directory := platform.NewConfigDirectory(cfg.RenameWiki)
	bus := eventbus.New(logger)
	telegramSvc := telegram.NewService(cfg.Telegram.BotToken)
	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)

	notificationListener := listeners.NewNotificationListener(
		userRepo, commentRepo, requestRepo, dbConn, telegramSvc, cfg.RenameWiki, cfg.Server, logger,
	)
	notificationListener.Register(bus)

	// --- 3. СЕРВИСЫ ---
	factory := services.NewRequestManagerFactory(
		dbConn, requestRepo, commentRepo, logRepo, userRepo, directory, bus, cfg.RenameWiki, logger,
	)
	hooks := jobs.NewHookRegistry()
	jobRunner := jobs.NewRenameJobRunner(factory, cacheRepo, bus, hooks, logger)

	permissionService := services.NewPermissionService(userRepo, cacheRepo, logger)
	authService := services.NewAuthService(userRepo, jwtSvc, logger)
	submissionService := services.NewSubmissionService(factory, requestRepo, userRepo, directory, logger)
	viewerService := services.NewRequestViewer(factory, userRepo, cacheRepo, jobRunner, directory, cfg.RenameWiki, logger)
	queueService := services.NewQueueService(requestRepo, userRepo, dbConn, logger)

	// --- 4. КОНТРОЛЛЕРЫ ---
	authController := controllers.NewAuthController(authService, logger)
	requestController := controllers.NewRequestController(submissionService, viewerService, logger)
	queueController := controllers.NewQueueController(queueService, logger)

	// --- 5. МАРШРУТЫ ---
	authMW := middleware.NewAuthMiddleware(jwtSvc, permissionService, logger)

	api.POST("/auth/login", authController.Login)
	api.POST("/auth/refresh", authController.Refresh)

	secureGroup := api.Group("", authMW.Auth)
	secureGroup.POST("/requests", requestController.CreateRequest)
	secureGroup.GET("/requests", queueController.ListRequests)
	secureGroup.GET("/requests/export", queueController.ExportRequests)
	secureGroup.GET("/requests/:id", requestController.GetRequest)
	secureGroup.POST("/requests/:id/action", requestController.SubmitAction)

	logger.Info("InitRouter: Создание маршрутов завершено")
	return jobRunner
}
