package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// TelegramMessenger delivers one message to one chat.
type TelegramMessenger interface {
	SendTelegram(ctx context.Context, chatID int64, msg Message) error
}

// EmailMessenger delivers one message to one mailbox.
type EmailMessenger interface {
	SendEmail(ctx context.Context, to EmailAddress, msg Message) error
}

type EmailAddress struct {
	Name    string
	Address string
}

const telegramMaxChars = 4096

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender sends HTML formatted messages through the Bot API.
// One attempt per call.
type TelegramSender struct {
	bot    botAPI
	logger *slog.Logger
}

func NewTelegramSender(bot botAPI, logger *slog.Logger) *TelegramSender {
	return &TelegramSender{bot: bot, logger: logger}
}

func (s *TelegramSender) SendTelegram(ctx context.Context, chatID int64, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := tgbotapi.NewMessage(chatID, renderTelegramHTML(msg))
	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true
	if utf8.RuneCountInString(out.Text) > telegramMaxChars {
		out.Text = truncateRunes(msg.Plain(), telegramMaxChars)
		out.ParseMode = ""
	}

	if _, err := s.bot.Send(out); err != nil {
		s.logger.Error("telegram send failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return fmt.Errorf("telegram: send to chat %d: %w", chatID, err)
	}
	return nil
}

func renderTelegramHTML(msg Message) string {
	var b strings.Builder
	for i, line := range msg.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, s := range line {
			escaped := html.EscapeString(s.Text)
			if s.Strong && s.Text != "" {
				b.WriteString("<b>" + escaped + "</b>")
				continue
			}
			b.WriteString(escaped)
		}
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailSender sends plain text mail through SendGrid's v3 API.
type EmailSender struct {
	client mailClient
	from   EmailAddress
	logger *slog.Logger
}

func NewEmailSender(client mailClient, from EmailAddress, logger *slog.Logger) *EmailSender {
	return &EmailSender{client: client, from: from, logger: logger}
}

func (s *EmailSender) SendEmail(ctx context.Context, to EmailAddress, msg Message) error {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.from.Name, s.from.Address))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(to.Name, to.Address))
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", strings.ReplaceAll(msg.Plain(), "\n", "\r\n")))

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		s.logger.Error("email send failed", slog.String("to", to.Address), slog.Any("error", err))
		return fmt.Errorf("sendgrid: send to %s: %w", to.Address, err)
	}
	if resp.StatusCode >= 300 {
		s.logger.Error("email rejected", slog.String("to", to.Address), slog.Int("status", resp.StatusCode), slog.String("body", resp.Body))
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
