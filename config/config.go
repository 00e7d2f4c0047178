package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var (
	PORT        string
	DB_URL      string
	JWT_SECRET  string
	CORS_ORIGIN string

	// WEBHOOK_ALLOWED_IPS is a comma-separated list of IPs or CIDRs the
	// payment processor notifies from. Empty disables the check.
	WEBHOOK_ALLOWED_IPS []string

	// EXPIRATION_CRON fires the nightly foreclosure of stale pending work.
	EXPIRATION_CRON string
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	DB_URL = mustEnv("DB_URL")
	JWT_SECRET = mustEnv("JWT_SECRET")
	CORS_ORIGIN = getEnv("CORS_ORIGIN", "http://localhost:3000")
	EXPIRATION_CRON = getEnv("EXPIRATION_CRON", "0 4 * * *")

	WEBHOOK_ALLOWED_IPS = nil
	for _, entry := range strings.Split(getEnv("WEBHOOK_ALLOWED_IPS", ""), ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			WEBHOOK_ALLOWED_IPS = append(WEBHOOK_ALLOWED_IPS, entry)
		}
	}
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
