package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"redirector/internal/cache"
	"redirector/internal/database"
	"redirector/internal/geo"
	"redirector/internal/service"
)

const (
	defaultGeoAPIURL      = "https://ipapi.co"
	defaultGeoTimeout     = 2 * time.Second
	defaultCollectTimeout = 5 * time.Second
	defaultCacheTTL       = 10 * time.Minute
	defaultCountryHeader  = "X-Country-Code"
	defaultCityHeader     = "X-City"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)
	slog.Info("Starting redirector service...", "port", os.Getenv("PORT"))

	err := godotenv.Load()
	if err != nil {
		slog.Warn("Error loading .env file", "error", err)
	}

	clickhouseAddr := os.Getenv("CLICKHOUSE_ADDR")
	clickhouseUser := os.Getenv("CLICKHOUSE_USER")
	clickhousePassword := os.Getenv("CLICKHOUSE_PASSWORD")
	clickhouseDb := os.Getenv("CLICKHOUSE_DB")
	postgresURL := os.Getenv("DB_URL")
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	port := os.Getenv("PORT")

	if clickhouseAddr == "" ||
		clickhouseUser == "" ||
		clickhousePassword == "" ||
		clickhouseDb == "" ||
		postgresURL == "" ||
		redisAddr == "" ||
		redisPassword == "" ||
		port == "" {
		slog.Error("Missing required environment variables")
		return
	}

	geoAPIURL := envOr("GEO_API_URL", defaultGeoAPIURL)
	countryHeader := envOr("COUNTRY_HEADER", defaultCountryHeader)
	cityHeader := envOr("CITY_HEADER", defaultCityHeader)
	geoTimeout := durationEnv("GEO_TIMEOUT", defaultGeoTimeout)
	cacheTTL := durationEnv("CACHE_TTL", defaultCacheTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(ctx, postgresURL)
	if err != nil {
		slog.Error("Could not connect to Postgres", "error", err)
		return
	}
	defer db.Close()

	cacheDB, err := cache.ConnectRedis(redisAddr, redisPassword)
	if err != nil {
		slog.Error("Could not connect to Redis", "error", err)
		return
	}
	defer cacheDB.Close()

	analytics, err := database.ConnectClickHouse(clickhouseAddr, clickhouseUser, clickhousePassword, clickhouseDb)
	if err != nil {
		slog.Error("Could not connect to ClickHouse", "error", err)
		return
	}
	defer analytics.Close()
	analytics.Start(ctx)

	locator, err := geo.NewLocator(os.Getenv("GEOIP_DB_PATH"), geoAPIURL, geoTimeout)
	if err != nil {
		slog.Error("Could not open GeoIP database", "error", err)
		return
	}
	defer locator.Close()

	resolver := service.NewResolver(db, cacheDB, cacheTTL)
	collector := service.NewCollector(db, analytics, locator, defaultCollectTimeout)

	server := service.NewServer(port, resolver, collector, countryHeader, cityHeader)
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start(ctx) }()

	slog.Info("Service is up and running!")

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			slog.Error("Server stopped with error", "error", err)
			stop()
		}
	}

	slog.Info("Shutting down gracefully...")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Invalid duration, using default", "key", key, "value", v)
		return fallback
	}
	return d
}
