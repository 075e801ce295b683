package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"loyalty-program-system/handlers"
	"loyalty-program-system/models"
	"loyalty-program-system/services"
	"loyalty-program-system/utils"
	"loyalty-program-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, icon uploads included
	})

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Admin-Token",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	var db *gorm.DB
	var err error
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Println("⚠️  DATABASE_URL not set, using SQLite for development")
		db, err = gorm.Open(sqlite.Open("loyalty.db"), &gorm.Config{TranslateError: true})
	} else {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	}
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Purchase{},
		&models.Achievement{},
		&models.Badge{},
		&models.UserAchievement{},
		&models.UserBadge{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Catalog cache is optional: without REDIS_URL every catalog read hits
	// the DB directly.
	var redisClient *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatal("failed to parse REDIS_URL:", err)
		}
		redisClient = redis.NewClient(opt)
	} else {
		log.Println("⚠️  REDIS_URL not set, catalog cache disabled")
	}

	r2Enabled, err := utils.InitR2()
	if err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if !r2Enabled {
		log.Println("⚠️  R2 credentials not set, icon uploads go to local ./uploads")
		if err := utils.EnsureUploadDir(); err != nil {
			log.Fatal("failed to ensure upload dir:", err)
		}
	}

	events := services.LogSink{}
	userService := services.NewUserService(db)
	catalogService := services.NewCatalogService(db, redisClient)
	loyaltyService := services.NewLoyaltyService(db, userService, events)
	evaluationService := services.NewEvaluationService(db, catalogService, events)
	paymentService := services.NewPaymentService(db)

	if err := catalogService.EnsureDefaultCatalog(context.Background()); err != nil {
		log.Fatal("failed to seed default catalog:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	evaluationWorker := workers.NewEvaluationWorker(db, evaluationService)
	loyaltyService.Queue = evaluationWorker
	go evaluationWorker.Start(ctx)

	paymentService.StartPayoutScheduler()

	api := app.Group("/api/v1")
	handlers.SetupPurchaseRoutes(api, loyaltyService)
	handlers.SetupLoyaltyRoutes(api, loyaltyService)
	handlers.SetupAdminRoutes(api, catalogService, userService, loyaltyService)

	app.Static("/uploads", "./uploads")

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Achievement evaluation worker running")
	log.Println("✅ Cashback payout scheduler running (every 1m)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
