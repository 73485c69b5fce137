// internal/infrastructure/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config - структура конфигурации приложения
type Config struct {
	// Telegram
	TelegramToken    string
	BotUsername      string
	AdminChatID      int64
	PollingTimeout   int // секунды long polling
	TelegramEnabled  bool
	SupportContact   string

	// Хранилище
	StorageBackend string // json | postgres
	UsersDBFile    string

	// PostgreSQL
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBMaxConns int
	DBMaxIdle  int

	// Redis (состояние диалогов)
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Реферальная программа
	ReferralRequireAccountID     bool
	ReferralRequireDeposit       bool
	ReferralCheckUniqueAccountID bool
	ReferralPreventSelfReferral  bool
	ReferralOneReferrerOnly      bool
	ReferralNotifyUser           bool
	ReferralNotifyAdmin          bool

	// EventBus
	EventBusBufferSize  int
	EventBusWorkerCount int

	// Logging
	LogLevel string
	LogFile  string
	Debug    bool
}

// LoadConfig загружает конфигурацию из .env файла
func LoadConfig(envPath string) (*Config, error) {
	// .env не обязателен, переменные могут прийти из окружения
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
	}

	config := &Config{
		// Telegram
		TelegramToken:   getEnvString("TG_API_KEY", ""),
		BotUsername:     getEnvString("TG_BOT_USERNAME", ""),
		AdminChatID:     getEnvInt64("ADMIN_CHAT_ID", 0),
		PollingTimeout:  getEnvInt("TG_POLLING_TIMEOUT", 30),
		TelegramEnabled: getEnvBool("TG_ENABLED", true),
		SupportContact:  getEnvString("SUPPORT_CONTACT", "@menejer_mentor"),

		// Хранилище
		StorageBackend: strings.ToLower(getEnvString("STORAGE_BACKEND", "json")),
		UsersDBFile:    getEnvString("USERS_DB_FILE", "data/users_db.json"),

		// PostgreSQL
		DBHost:     getEnvString("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnvString("DB_USER", "menutrade"),
		DBPassword: getEnvString("DB_PASSWORD", ""),
		DBName:     getEnvString("DB_NAME", "menutrade_db"),
		DBSSLMode:  getEnvString("DB_SSLMODE", "disable"),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 25),
		DBMaxIdle:  getEnvInt("DB_MAX_IDLE", 10),

		// Redis
		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisAddr:     getEnvString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnvString("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Реферальная программа
		ReferralRequireAccountID:     getEnvBool("REFERRAL_REQUIRE_ACCOUNT_ID", true),
		ReferralRequireDeposit:       getEnvBool("REFERRAL_REQUIRE_DEPOSIT", true),
		ReferralCheckUniqueAccountID: getEnvBool("REFERRAL_CHECK_UNIQUE_ACCOUNT_ID", true),
		ReferralPreventSelfReferral:  getEnvBool("REFERRAL_PREVENT_SELF_REFERRAL", true),
		ReferralOneReferrerOnly:      getEnvBool("REFERRAL_ONE_REFERRER_ONLY", true),
		ReferralNotifyUser:           getEnvBool("REFERRAL_NOTIFY_USER", true),
		ReferralNotifyAdmin:          getEnvBool("REFERRAL_NOTIFY_ADMIN", true),

		// EventBus
		EventBusBufferSize:  getEnvInt("EVENT_BUS_BUFFER_SIZE", 256),
		EventBusWorkerCount: getEnvInt("EVENT_BUS_WORKER_COUNT", 2),

		// Logging
		LogLevel: getEnvString("LOG_LEVEL", "info"),
		LogFile:  getEnvString("LOG_FILE", "logs/bot.log"),
		Debug:    getEnvBool("DEBUG", false),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.TelegramEnabled {
		if c.TelegramToken == "" {
			return fmt.Errorf("TG_API_KEY is required when Telegram is enabled")
		}
		if c.BotUsername == "" {
			return fmt.Errorf("TG_BOT_USERNAME is required when Telegram is enabled")
		}
		if c.AdminChatID == 0 {
			log.Printf("Warning: ADMIN_CHAT_ID is not set, admin notifications are disabled")
		}
	}

	switch c.StorageBackend {
	case "json":
		if c.UsersDBFile == "" {
			return fmt.Errorf("USERS_DB_FILE is required for json storage")
		}
	case "postgres":
		if c.DBHost == "" || c.DBName == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND: %s (expected json or postgres)", c.StorageBackend)
	}

	if c.PollingTimeout < 1 {
		return fmt.Errorf("TG_POLLING_TIMEOUT must be at least 1 second")
	}

	if c.EventBusBufferSize < 1 || c.EventBusWorkerCount < 1 {
		return fmt.Errorf("event bus buffer size and worker count must be positive")
	}

	return nil
}

// PrintSummary выводит сводку конфигурации (без секретов)
func (c *Config) PrintSummary() {
	fmt.Println(strings.Repeat("─", 50))
	fmt.Println("⚙️  КОНФИГУРАЦИЯ")
	fmt.Printf("   %-22s: %s\n", "Бот", "@"+c.BotUsername)
	fmt.Printf("   %-22s: %s\n", "Хранилище", c.StorageBackend)
	if c.StorageBackend == "json" {
		fmt.Printf("   %-22s: %s\n", "Файл пользователей", c.UsersDBFile)
	} else {
		fmt.Printf("   %-22s: %s:%d/%s\n", "PostgreSQL", c.DBHost, c.DBPort, c.DBName)
	}
	fmt.Printf("   %-22s: %v\n", "Redis", c.RedisEnabled)
	fmt.Printf("   %-22s: %v\n", "Нужен ID аккаунта", c.ReferralRequireAccountID)
	fmt.Printf("   %-22s: %v\n", "Нужен депозит", c.ReferralRequireDeposit)
	fmt.Printf("   %-22s: %s\n", "Уровень логов", c.LogLevel)
	fmt.Println(strings.Repeat("─", 50))
}

// Вспомогательные функции для парсинга переменных окружения
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
