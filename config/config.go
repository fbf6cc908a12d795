package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port        string
	BindAddress string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	RedisHost   string
	RedisPort   string
	JWTSecret   string

	// Upstream agent platform
	SecondMeAppID       string
	SecondMeAppSecret   string
	SecondMeRedirectURI string
	SecondMeAPIBase     string
	SecondMeOAuthURL    string

	GameRounds       int
	AITimeoutSeconds int
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		BindAddress: getEnv("BIND_ADDRESS", "localhost"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "agentarena"),
		DBPassword:  getEnv("DB_PASSWORD", "agentarena123"),
		DBName:      getEnv("DB_NAME", "agentarena"),
		RedisHost:   getEnv("REDIS_HOST", "localhost"),
		RedisPort:   getEnv("REDIS_PORT", "6379"),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		SecondMeAppID:       getEnv("SECONDME_APP_ID", ""),
		SecondMeAppSecret:   getEnv("SECONDME_APP_SECRET", ""),
		SecondMeRedirectURI: getEnv("SECONDME_REDIRECT_URI", "http://localhost:8080/api/auth/callback"),
		SecondMeAPIBase:     getEnv("SECONDME_API_BASE", "https://api.secondme.io/api"),
		SecondMeOAuthURL:    getEnv("SECONDME_OAUTH_URL", "https://auth.secondme.io/oauth"),

		GameRounds:       getEnvInt("GAME_ROUNDS", 5),
		AITimeoutSeconds: getEnvInt("AI_TIMEOUT_SECONDS", 60),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	return client
}
