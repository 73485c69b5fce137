package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrNaPaSS/menutrade/internal/adapters/notification"
	"github.com/MrNaPaSS/menutrade/internal/core/domain/referral"
	"github.com/MrNaPaSS/menutrade/internal/delivery/telegram"
	"github.com/MrNaPaSS/menutrade/internal/events"
	"github.com/MrNaPaSS/menutrade/internal/infrastructure/cache/redis"
	"github.com/MrNaPaSS/menutrade/internal/infrastructure/config"
	"github.com/MrNaPaSS/menutrade/internal/infrastructure/persistence/userstore"
	"github.com/MrNaPaSS/menutrade/pkg/logger"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	if err := logger.InitGlobal(cfg.LogFile, cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer logger.GetLogger().Close()

	printHeader("РЕФЕРАЛЬНЫЙ БОТ «ЗДРАВЫЙ ТРЕЙДЕР»")
	cfg.PrintSummary()

	// Хранилище пользователей
	store, closeStore, err := buildStore(cfg)
	if err != nil {
		logger.GetLogger().Fatal("Не удалось открыть хранилище: %v", err)
	}
	defer closeStore()

	// Шина событий
	bus := events.NewEventBus(events.EventBusConfig{
		BufferSize:    cfg.EventBusBufferSize,
		WorkerCount:   cfg.EventBusWorkerCount,
		MaxRetries:    3,
		RetryDelay:    100 * time.Millisecond,
		EnableMetrics: true,
		EnableLogging: cfg.Debug,
	})
	bus.AddMiddleware(&events.ValidationMiddleware{})
	if cfg.Debug {
		bus.AddMiddleware(&events.LoggingMiddleware{})
	}
	registerConsoleLogger(bus)
	bus.Start()
	defer bus.Stop()

	// Ядро реферальной программы
	settings := referral.Settings{
		BotUsername:          cfg.BotUsername,
		RequireAccountID:     cfg.ReferralRequireAccountID,
		RequireDeposit:       cfg.ReferralRequireDeposit,
		CheckUniqueAccountID: cfg.ReferralCheckUniqueAccountID,
		PreventSelfReferral:  cfg.ReferralPreventSelfReferral,
		OneReferrerOnly:      cfg.ReferralOneReferrerOnly,
	}
	manager := referral.NewManager(store, referral.DefaultCatalog(), settings, bus)

	if !cfg.TelegramEnabled {
		logger.Info("Telegram выключен, ядро работает без доставки")
		waitForShutdown()
		return
	}

	client := telegram.NewClient(cfg.TelegramToken)

	// Уведомления поверх шины
	notifier := notification.NewNotifier(client, notification.Settings{
		NotifyUser:  cfg.ReferralNotifyUser,
		NotifyAdmin: cfg.ReferralNotifyAdmin,
		AdminChatID: cfg.AdminChatID,
	})
	notifier.Register(bus)

	// Состояние диалогов: Redis или память процесса
	states := buildStateStore(cfg)

	bot := telegram.NewBot(client, manager, states, cfg.AdminChatID, cfg.SupportContact, cfg.PollingTimeout)
	if err := bot.Start(); err != nil {
		logger.GetLogger().Fatal("Не удалось запустить бота: %v", err)
	}

	waitForShutdown()

	bot.Stop()
	if err := store.Save(); err != nil {
		logger.Error("Финальное сохранение не удалось: %v", err)
	}
}

// buildStore создает хранилище пользователей по конфигурации
func buildStore(cfg *config.Config) (referral.Store, func(), error) {
	switch cfg.StorageBackend {
	case "postgres":
		pg, err := userstore.NewPostgresStore(userstore.PostgresConfig{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Database: cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
			MaxConns: cfg.DBMaxConns,
			MaxIdle:  cfg.DBMaxIdle,
		})
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	default:
		js, err := userstore.NewJSONStore(cfg.UsersDBFile)
		if err != nil {
			return nil, nil, err
		}
		return js, func() {}, nil
	}
}

// buildStateStore подключает Redis для состояний диалогов,
// при недоступности откатывается на память процесса
func buildStateStore(cfg *config.Config) telegram.StateStore {
	if !cfg.RedisEnabled {
		return telegram.NewMemoryStateStore()
	}

	cache := redis.NewCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		logger.Warn("Redis недоступен (%v), состояние диалогов в памяти", err)
		return telegram.NewMemoryStateStore()
	}

	logger.Info("✅ Redis подключен: %s", cfg.RedisAddr)
	return cache
}

// registerConsoleLogger подписывает консольный логгер на все события
func registerConsoleLogger(bus *events.EventBus) {
	sub := events.NewConsoleLoggerSubscriber()
	for _, et := range sub.GetSubscribedEvents() {
		bus.Subscribe(et, sub)
	}
}

func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Получен сигнал %v, завершаемся...", sig)
}

func printHeader(title string) {
	line := strings.Repeat("═", len([]rune(title))+4)
	fmt.Println(line)
	fmt.Printf("  %s\n", title)
	fmt.Println(line)
}
