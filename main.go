package main

import (
	"log"
	"time"

	"billing-app/config"
	"billing-app/database"
	routes "billing-app/internal/app/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// gin.SetMode(gin.ReleaseMode) uncomment only in production
	config.LoadEnv()
	database.InitDB()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	app := routes.NewApp(database.DB, logger)

	// Nightly foreclosure of stale pending checkouts.
	scheduler, err := app.Expiry.StartDaily(config.EXPIRATION_CRON)
	if err != nil {
		log.Fatal("Failed to start expiration scheduler:", err)
	}
	defer scheduler.Stop()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.CORS_ORIGIN},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, app)

	r.Run(":" + config.PORT)
}
