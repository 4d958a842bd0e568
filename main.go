package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"team-tournament-system/handlers"
	"team-tournament-system/middleware"
	"team-tournament-system/models"
	"team-tournament-system/services"
	"team-tournament-system/utils"
	"team-tournament-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 5 * 1024 * 1024, // 5MB — this service only moves JSON
	})

	// Only gateway requests are allowed — no exceptions.
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Player{},
		&models.PlayerStats{},
		&models.Tournament{},
		&models.Poll{},
		&models.PollVote{},
		&models.Match{},
		&models.MatchAttendance{},
		&models.Team{},
		&models.TeamPlayer{},
		&models.TeamStats{},
		&models.TeamPlayerStats{},
		&models.WalletTransaction{},
		&models.TournamentWinner{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitReportStore(); err != nil {
		log.Printf("Settlement report archival disabled: %v", err)
	}

	taxPolicy := services.TaxPolicyFromEnv()

	poolService := services.NewPoolService(db)
	pollService := services.NewPollService(db)
	previewService := services.NewPreviewService(poolService)
	formationService := services.NewFormationService(poolService, services.NewGormFormationStore(db))
	settlementService := services.NewSettlementService(db, poolService, taxPolicy)

	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("TOURNAMENT_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("TOURNAMENT_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	playerSync := workers.NewPlayerSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)
	playerSync.Start(ctx)

	resultsSync := workers.NewResultsSyncClient(db)
	go workers.PollKillFeed(ctx, resultsSync, 10*time.Second)

	pollService.StartPollScheduler()

	handlers.SetupTournamentRoutes(app, pollService, previewService, formationService, settlementService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("Server running on http://localhost:5300")
	log.Println("Player sync worker running")
	log.Println("Kill-feed polling running (every 10s)")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
