package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"debtreminder-backend/config"
	"debtreminder-backend/controllers"
	"debtreminder-backend/routes"
	"debtreminder-backend/services"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sendgrid/sendgrid-go"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectDB(cfg.DBURL)
	if err != nil {
		return err
	}
	if err := config.Migrate(db); err != nil {
		return err
	}

	opts := services.Options{Logger: logger, Location: cfg.Location()}

	rdb, err := config.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		opts.Lock = services.NewRedisSweepLock(rdb, cfg.SweepLockTTL, logger)
	} else {
		opts.Lock = services.NewPostgresSweepLock(db, logger)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("telegram bot: %w", err)
	}
	logger.Info("telegram bot authorised", slog.String("username", bot.Self.UserName))

	store := services.NewGormStore(db)
	telegram := services.NewTelegramSender(bot, logger)
	email := services.NewEmailSender(
		sendgrid.NewSendClient(cfg.SendGridAPIKey),
		services.EmailAddress{Name: cfg.FromName, Address: cfg.FromEmail},
		logger,
	)

	reminders := services.NewReminderService(store, telegram, email, opts)
	commands := services.NewCommandProcessor(store, telegram, opts)
	accounts := services.NewAccountService(store, cfg.VerificationCodeTTL, opts)

	scheduler, err := services.StartReminderScheduler(ctx, reminders, cfg.ReminderCron, cfg.OverdueDigestCron, cfg.Location(), logger)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := routes.SetupRouter(cfg, logger, routes.Handlers{
		Functions: controllers.NewFunctionsController(reminders, logger),
		Webhook:   controllers.NewWebhookController(commands, cfg.TelegramWebhookSecret, logger),
		Telegram:  controllers.NewTelegramController(accounts, logger),
		Settings:  controllers.NewSettingsController(accounts, logger),
		Records:   controllers.NewRecordsController(accounts, logger),
	})
	if !cfg.IsProduction() {
		printRoutes(r)
	}

	errc := make(chan error, 1)
	go func() { errc <- r.Run(":" + cfg.Port) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	}
}

func printRoutes(r *gin.Engine) {
	for _, route := range r.Routes() {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
