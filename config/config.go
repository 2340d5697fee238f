package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string
	LogMode string

	MongoURI            string
	MongoDB             string
	MongoUsername       string
	MongoPassword       string
	MongoConnectTimeout time.Duration

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	UserCacheTTL  time.Duration

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PublicBase string
	S3PresignTTL time.Duration

	PageSize       int
	ReceiptTimeout time.Duration
}

// RedisEnabled reports whether a sender cache should be wired.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// S3Enabled reports whether image uploads can be served.
func (c *Config) S3Enabled() bool {
	return c.S3Region != "" && c.S3Bucket != ""
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort: getEnv("APP_PORT", "8080"),
		AppMode: getEnv("APP_MODE", "debug"),
		LogMode: getEnv("LOG_MODE", "development"),

		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDB:             getEnv("MONGO_DB", "cute_chat"),
		MongoUsername:       getEnv("MONGO_USERNAME", ""),
		MongoPassword:       getEnv("MONGO_PASSWORD", ""),
		MongoConnectTimeout: getEnvAsDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		UserCacheTTL:  getEnvAsDuration("USER_CACHE_TTL", 5*time.Minute),

		S3Region:     getEnv("S3_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PublicBase: getEnv("S3_PUBLIC_BASE", ""),
		S3PresignTTL: getEnvAsDuration("S3_PRESIGN_TTL", 24*time.Hour),

		PageSize:       getEnvAsInt("CHAT_PAGE_SIZE", 20),
		ReceiptTimeout: getEnvAsDuration("RECEIPT_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("30s", "5m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
