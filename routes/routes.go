package routes

import (
	"log/slog"
	"time"

	"debtreminder-backend/config"
	"debtreminder-backend/controllers"
	"debtreminder-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups every controller the router mounts.
type Handlers struct {
	Functions *controllers.FunctionsController
	Webhook   *controllers.WebhookController
	Telegram  *controllers.TelegramController
	Settings  *controllers.SettingsController
	Records   *controllers.RecordsController
}

func corsConfig(cfg *config.Config) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", "X-Client-Info", "Apikey"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
		return cc
	}
	cc.AllowOrigins = origins
	cc.AllowCredentials = true
	return cc
}

func SetupRouter(cfg *config.Config, logger *slog.Logger, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg)))
	r.Use(config.PerformanceLogger(logger))

	auth := utils.AuthMiddleware(cfg.JWTSecret)

	functions := r.Group("/functions")
	{
		// Telegram authenticates with the webhook secret, not a JWT.
		functions.POST("/telegram-webhook", h.Webhook.TelegramWebhook)

		functions.POST("/check-overdue-debts", auth, h.Functions.CheckOverdueDebts)
		functions.POST("/send-reminders", auth, h.Functions.SendReminders)
		functions.POST("/telegram-send-message", auth, h.Functions.TelegramSendMessage)
	}

	api := r.Group("/api")
	api.Use(auth)
	{
		telegram := api.Group("/telegram")
		{
			telegram.GET("/verification-code", h.Telegram.GetVerificationCode)
			telegram.POST("/refresh-code", h.Telegram.RefreshVerificationCode)
			telegram.POST("/deactivate", h.Telegram.Deactivate)
			telegram.GET("/status", h.Telegram.Status)
			telegram.GET("/users", h.Telegram.ListUsers)
			telegram.PATCH("/users/:id", h.Telegram.UpdateUser)
			telegram.POST("/users/link", h.Telegram.LinkCustomer)
		}

		api.GET("/reminder-settings", h.Settings.GetReminderSettings)
		api.PUT("/reminder-settings", h.Settings.UpdateReminderSettings)
		api.GET("/notification-preferences", h.Settings.GetNotificationPreference)
		api.PUT("/notification-preferences", h.Settings.UpdateNotificationPreference)

		api.GET("/reminders", h.Records.GetReminders)
		api.PATCH("/debts/:id/status", h.Records.UpdateDebtStatus)
		api.DELETE("/customers/:id", h.Records.DeleteCustomer)
		api.GET("/dashboard", h.Records.GetDashboardOverview)
	}

	return r
}
