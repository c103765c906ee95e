package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
	Business BusinessConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	CORSOrigins []string
}

type RedisConfig struct {
	Enabled             bool
	Addr                string
	Password            string
	DB                  int
	IdempotencyTTLHours int
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	TopicStore string
}

type ObservabilityConfig struct {
	LogLevel       string
	JaegerEndpoint string
}

// BusinessConfig holds the store rules. MaxItemsPerCart and
// MaxQuantityPerItem are exposed for operators but carts are not capped.
type BusinessConfig struct {
	DiscountOrderFrequency int
	DiscountPercentage     float64
	DiscountCodeExpiryDays int
	MaxItemsPerCart        int
	MaxQuantityPerItem     int
}

func Load() *Config {
	_ = godotenv.Load()

	frequency := getEnvInt("DISCOUNT_ORDER_FREQUENCY", 3)
	if frequency <= 0 {
		frequency = 1
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Env:         getEnv("ENV", "development"),
			CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "*")),
		},
		Redis: RedisConfig{
			Enabled:             getEnvBool("REDIS_ENABLED", false),
			Addr:                getEnv("REDIS_ADDR", "localhost:6379"),
			Password:            getEnv("REDIS_PASSWORD", ""),
			DB:                  getEnvInt("REDIS_DB", 0),
			IdempotencyTTLHours: getEnvInt("IDEMPOTENCY_TTL_HOURS", 24),
		},
		Kafka: KafkaConfig{
			Enabled:    getEnvBool("KAFKA_ENABLED", false),
			Brokers:    splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
			TopicStore: getEnv("KAFKA_TOPIC_STORE_EVENTS", "store-events"),
		},
		Observ: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		},
		Business: BusinessConfig{
			DiscountOrderFrequency: frequency,
			DiscountPercentage:     getEnvFloat("DISCOUNT_PERCENTAGE", 10.0),
			DiscountCodeExpiryDays: getEnvInt("DISCOUNT_CODE_EXPIRY_DAYS", 30),
			MaxItemsPerCart:        getEnvInt("MAX_ITEMS_PER_CART", 100),
			MaxQuantityPerItem:     getEnvInt("MAX_QUANTITY_PER_ITEM", 10),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, discount_frequency=%d",
		cfg.Server.Env, cfg.Server.Port, cfg.Business.DiscountOrderFrequency)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvBool(key string, defaultVal bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
