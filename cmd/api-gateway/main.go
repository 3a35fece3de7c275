package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/el-mostafi/elearning-api/api/swagger"
	"github.com/el-mostafi/elearning-api/internal/handler"
	"github.com/el-mostafi/elearning-api/internal/middleware"
	"github.com/el-mostafi/elearning-api/internal/models"
	"github.com/el-mostafi/elearning-api/internal/repository"
	"github.com/el-mostafi/elearning-api/internal/service"
	rediscache "github.com/el-mostafi/elearning-api/pkg/cache"
	"github.com/el-mostafi/elearning-api/pkg/config"
	"github.com/el-mostafi/elearning-api/pkg/database"
	"github.com/el-mostafi/elearning-api/pkg/export"
	"github.com/el-mostafi/elearning-api/pkg/jobs"
	"github.com/el-mostafi/elearning-api/pkg/logger"
	corsmiddleware "github.com/el-mostafi/elearning-api/pkg/middleware/cors"
	reqidmiddleware "github.com/el-mostafi/elearning-api/pkg/middleware/requestid"
	"github.com/el-mostafi/elearning-api/pkg/storage"
)

// @title E-Learning Marketplace API
// @version 1.0.0
// @description Course marketplace backend with enrollments, progress tracking and certificates
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	lectureRepo := repository.NewLectureRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	cartRepo := repository.NewCartRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	// Observability and caching.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	// Certificate pipeline.
	certStore, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init certificate storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)
	certificateSvc := service.NewCertificateService(
		certificateRepo,
		courseRepo,
		userRepo,
		export.NewCertificateRenderer(),
		certStore,
		signer,
		jobs.QueueConfig{
			Workers:    cfg.Certificates.WorkerConcurrency,
			MaxRetries: cfg.Certificates.WorkerRetries,
			Logger:     logr,
		},
		logr,
	)
	var issuer interface {
		IssueForCompletion(ctx context.Context, courseID, userID string) error
	}
	if cfg.Certificates.Enabled {
		certificateSvc.Start(ctx)
		defer certificateSvc.Stop()
		issuer = certificateSvc
	}

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "elearning-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	courseSvc := service.NewCourseService(
		courseRepo, sectionRepo, lectureRepo, reviewRepo, userRepo, enrollmentRepo,
		cacheRepo,
		service.CatalogConfig{
			PopularCacheTTL: cfg.Catalog.PopularCacheTTL,
			PopularMinScore: cfg.Catalog.PopularMinScore,
		},
		validate, logr,
	)
	sectionSvc := service.NewSectionService(sectionRepo, courseRepo, validate, logr)
	lectureSvc := service.NewLectureService(lectureRepo, sectionRepo, courseRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, sectionRepo, lectureRepo, issuer, validate, logr)
	couponSvc := service.NewCouponService(couponRepo, courseRepo, validate, logr)
	reviewSvc := service.NewReviewService(reviewRepo, courseRepo, enrollmentRepo, validate, logr)
	cartSvc := service.NewCartService(cartRepo, courseRepo, couponRepo, enrollmentRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(courseRepo, enrollmentRepo, certificateRepo, cacheSvc, service.DashboardConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	}, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	sectionHandler := handler.NewSectionHandler(sectionSvc)
	lectureHandler := handler.NewLectureHandler(lectureSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, metricsSvc)
	couponHandler := handler.NewCouponHandler(couponSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	cartHandler := handler.NewCartHandler(cartSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	users := api.Group("/users")
	{
		users.GET("/:id", userHandler.Get)
		users.PUT("/me", middleware.JWT(authSvc), userHandler.UpdateProfile)
	}

	courses := api.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/popular", courseHandler.Popular)
		courses.GET("/:id", middleware.OptionalJWT(authSvc), courseHandler.Detail)
		courses.GET("/:id/reviews", reviewHandler.List)
		courses.GET("/:id/coupons/verify", couponHandler.Verify)

		instructor := courses.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin))
		{
			instructor.POST("", courseHandler.Create)
			instructor.PUT("/:id", courseHandler.Update)
			instructor.DELETE("/:id", courseHandler.Delete)
			instructor.POST("/:id/publish", courseHandler.Publish)
			instructor.POST("/:id/unpublish", courseHandler.Unpublish)

			instructor.GET("/:id/sections", sectionHandler.List)
			instructor.POST("/:id/sections", sectionHandler.Create)
			instructor.PUT("/:id/sections/:sectionId", sectionHandler.Update)
			instructor.DELETE("/:id/sections/:sectionId", sectionHandler.Delete)

			instructor.POST("/:id/sections/:sectionId/lectures", lectureHandler.Create)
			instructor.PUT("/:id/sections/:sectionId/lectures/:lectureId", lectureHandler.Update)
			instructor.DELETE("/:id/sections/:sectionId/lectures/:lectureId", lectureHandler.Delete)

			instructor.POST("/:id/coupons", couponHandler.Create)
			instructor.GET("/:id/coupons", couponHandler.List)
			instructor.DELETE("/:id/coupons/:couponId", couponHandler.Delete)
		}

		student := courses.Group("", middleware.JWT(authSvc))
		{
			student.POST("/:id/enroll", enrollmentHandler.Enroll)
			student.DELETE("/:id/enroll", enrollmentHandler.Withdraw)
			student.GET("/:id/progress", enrollmentHandler.Progress)
			student.POST("/:id/sections/:sectionId/lectures/:lectureId/complete", enrollmentHandler.CompleteLecture)

			student.PUT("/:id/reviews", reviewHandler.Submit)
			student.GET("/:id/reviews/me", reviewHandler.Mine)
			student.DELETE("/:id/reviews/me", reviewHandler.Delete)
		}
	}

	api.GET("/instructor/courses", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), courseHandler.ListOwn)

	api.GET("/enrollments", middleware.JWT(authSvc), enrollmentHandler.ListMine)

	api.GET("/reviews", middleware.JWT(authSvc), reviewHandler.MyReviews)

	cart := api.Group("/cart", middleware.JWT(authSvc))
	{
		cart.GET("", cartHandler.List)
		cart.DELETE("", cartHandler.Clear)
		cart.POST("/items/:id", cartHandler.Add)
		cart.DELETE("/items/:id", cartHandler.Remove)
		cart.PUT("/items/:id/coupon", cartHandler.ApplyCoupon)
		cart.DELETE("/items/:id/coupon", cartHandler.RemoveCoupon)
	}

	certificates := api.Group("/certificates")
	{
		certificates.GET("/file", certificateHandler.File)
		certificates.GET("", middleware.JWT(authSvc), certificateHandler.ListMine)
		certificates.GET("/:id/download", middleware.JWT(authSvc), certificateHandler.Download)
	}

	dashboard := api.Group("/dashboard", middleware.JWT(authSvc))
	{
		dashboard.GET("/instructor", middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), dashboardHandler.Instructor)
		dashboard.GET("/student", dashboardHandler.Student)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", userHandler.List)
		admin.GET("/metrics", metricsHandler.Snapshot)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
