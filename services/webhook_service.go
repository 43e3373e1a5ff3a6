package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"debtreminder-backend/models"
	"debtreminder-backend/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

// Update is a webhook payload after validation: IncomingMessage or
// UnknownPayload.
type Update interface {
	isUpdate()
}

// IncomingMessage is a text message sent to the bot.
type IncomingMessage struct {
	UpdateID  int
	ChatID    int64
	Username  string
	FirstName string
	Text      string
}

// UnknownPayload is any update the bot does not act on.
type UnknownPayload struct {
	UpdateID int
}

func (IncomingMessage) isUpdate() {}
func (UnknownPayload) isUpdate() {}

// ParseUpdate decodes a Telegram update. Only invalid JSON is an error.
func ParseUpdate(body []byte) (Update, error) {
	var raw tgbotapi.Update
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}

	msg := raw.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return UnknownPayload{UpdateID: raw.UpdateID}, nil
	}

	in := IncomingMessage{
		UpdateID: raw.UpdateID,
		ChatID:   msg.Chat.ID,
		Text:     strings.TrimSpace(msg.Text),
	}
	if msg.From != nil {
		in.Username = msg.From.UserName
		in.FirstName = msg.From.FirstName
	}
	return in, nil
}

// ChatState is derived from every registration row a chat has.
type ChatState int

const (
	ChatUnregistered ChatState = iota
	ChatRegisteredCustomer
	ChatRegisteredOwner
	ChatDeactivated
)

func (s ChatState) String() string {
	switch s {
	case ChatRegisteredCustomer:
		return "registered_customer"
	case ChatRegisteredOwner:
		return "registered_owner"
	case ChatDeactivated:
		return "deactivated"
	}
	return "unregistered"
}

// chatStateOf returns the state and, for owners, the active owner row.
func chatStateOf(regs []models.TelegramUser) (ChatState, *models.TelegramUser) {
	if len(regs) == 0 {
		return ChatUnregistered, nil
	}
	state := ChatDeactivated
	for i := range regs {
		r := regs[i]
		if !r.IsActive {
			continue
		}
		if r.UserType == models.RoleBusinessOwner && r.UserID != nil {
			return ChatRegisteredOwner, &r
		}
		state = ChatRegisteredCustomer
	}
	return state, nil
}

var codePattern = regexp.MustCompile(`^\d{6}$`)

const (
	commandList = "📝 Komutlar:\n" +
		"/register_owner [kod] - İşletme hesabını bu sohbete bağla\n" +
		"/send [telefon] [mesaj] - Müşteriye mesaj gönder\n" +
		"/help - Yardım"

	helpText = "📖 Yardım\n\n" +
		"🔹 /register_owner [kod]\nWeb panelindeki Telegram ayarlarından aldığınız doğrulama kodu ile işletme hesabınızı bağlar.\n\n" +
		"🔹 /send [telefon] [mesaj]\nBelirtilen telefon numarasındaki müşteriye mesaj gönderir.\n\nÖrnek:\n/send 05551234567 Merhaba, borç hatırlatması\n\n" +
		"🔹 /start\nBotu başlatır ve hoş geldiniz mesajı gösterir."

	registerHint = "ℹ️ İşletme hesabınızı bağlamak için:\n/register_owner [doğrulama_kodu]\n\n" +
		"Kodu web panelindeki Telegram ayarlarından alabilirsiniz."

	registerOwnerUsage = "❌ Kullanım: /register_owner [doğrulama_kodu]\n\nÖrnek: /register_owner 123456"
	sendUsage          = "❌ Kullanım: /send [telefon_numarası] [mesaj]\n\nÖrnek: /send 05551234567 Merhaba, borç hatırlatması"

	codeInvalidText = "❌ Geçersiz doğrulama kodu. Lütfen web panelindeki kodu kontrol edin."
	codeUsedText    = "❌ Bu doğrulama kodu daha önce kullanılmış. Web panelinden yeni kod alın."
	codeExpiredText = "❌ Doğrulama kodunun süresi dolmuş. Web panelinden yeni kod alın."
	ownerLinkedText = "✅ İşletme hesabınız bu sohbete başarıyla bağlandı!\n\nGecikmiş borç bildirimleri artık buraya gönderilecek."

	ownerOnlyText   = "❌ Bu komut yalnızca kayıtlı işletme sahipleri içindir.\n\n/register_owner [kod] ile hesabınızı bağlayın."
	internalErrText = "❌ İşlem sırasında bir hata oluştu. Lütfen daha sonra tekrar deneyin."
)

// CommandProcessor handles one incoming bot message per call. Replies go
// back over Telegram; only a failure to record the incoming message is
// returned, so the caller can ask Telegram to redeliver.
type CommandProcessor struct {
	store    Store
	resolver *Resolver
	telegram TelegramMessenger
	logger   *slog.Logger
	now      func() time.Time
}

func NewCommandProcessor(store Store, telegram TelegramMessenger, opts Options) *CommandProcessor {
	opts = opts.withDefaults()
	return &CommandProcessor{
		store:    store,
		resolver: NewResolver(store),
		telegram: telegram,
		logger:   opts.Logger.With(slog.String("component", "telegram-webhook")),
		now:      opts.Now,
	}
}

func (p *CommandProcessor) Handle(ctx context.Context, upd Update) error {
	in, ok := upd.(IncomingMessage)
	if !ok {
		p.logger.Debug("ignoring non-message update")
		return nil
	}

	if err := p.logMessage(ctx, in.ChatID, in.Text, models.DirectionIncoming, nil); err != nil {
		return err
	}

	cmd, args := splitCommand(in.Text)
	p.logger.Info("command received", slog.Int64("chat_id", in.ChatID), slog.String("command", cmd))

	switch cmd {
	case "/start":
		p.start(ctx, in)
	case "/register_owner":
		p.registerOwner(ctx, in, args)
	case "/register":
		p.reply(ctx, in.ChatID, registerHint)
	case "/send":
		p.relay(ctx, in, args)
	case "/help":
		p.reply(ctx, in.ChatID, helpText)
	default:
		p.reply(ctx, in.ChatID, fmt.Sprintf("❓ Bilinmeyen komut: \"%s\"\n\n%s", truncateRunes(in.Text, 64), commandList))
	}
	return nil
}

// splitCommand separates "/cmd@bot rest of text" into "/cmd" and the rest.
func splitCommand(msg string) (string, string) {
	head, rest := cutField(msg)
	if at := strings.IndexByte(head, '@'); at > 0 && strings.HasPrefix(head, "/") {
		head = head[:at]
	}
	return strings.ToLower(head), rest
}

// cutField returns the first whitespace separated word and the trimmed
// remainder, keeping the remainder's inner spacing.
func cutField(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t\n")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func (p *CommandProcessor) start(ctx context.Context, in IncomingMessage) {
	regs, err := p.store.ChatRegistrations(ctx, in.ChatID)
	if err != nil {
		p.fail(ctx, in.ChatID, "load chat registrations", err)
		return
	}

	state, _ := chatStateOf(regs)
	if state == ChatUnregistered {
		reg := &models.TelegramUser{
			TelegramChatID: in.ChatID,
			UserType:       models.RoleCustomer,
			IsActive:       true,
		}
		if in.Username != "" {
			reg.TelegramUsername = &in.Username
		}
		if err := p.store.CreateRegistration(ctx, reg); err != nil {
			p.fail(ctx, in.ChatID, "create registration", err)
			return
		}
		p.logger.Info("chat registered", slog.Int64("chat_id", in.ChatID))
	}

	p.reply(ctx, in.ChatID, welcomeText(in, state))
}

func welcomeText(in IncomingMessage, state ChatState) string {
	var b strings.Builder
	if in.FirstName != "" {
		fmt.Fprintf(&b, "🤖 Merhaba %s!\n\n", in.FirstName)
	} else {
		b.WriteString("🤖 Merhaba!\n\n")
	}
	b.WriteString("Bu bot borç hatırlatmalarını iletir. İşletme sahipleri müşterilerine buradan mesaj gönderebilir.\n\n")

	switch state {
	case ChatRegisteredOwner:
		b.WriteString("✅ Bu sohbet işletme hesabınıza bağlı.\n\n")
	case ChatDeactivated:
		b.WriteString("⚠️ Bu sohbetin kaydı devre dışı. Yeniden etkinleştirmek için işletmenizle iletişime geçin.\n\n")
	default:
		fmt.Fprintf(&b, "🆔 Sohbet kimliğiniz: %d\nHatırlatma almak için bu numarayı işletmenizle paylaşın.\n\n", in.ChatID)
	}
	b.WriteString(commandList)
	return b.String()
}

func (p *CommandProcessor) registerOwner(ctx context.Context, in IncomingMessage, args string) {
	code, _ := cutField(args)
	if code == "" {
		p.reply(ctx, in.ChatID, registerOwnerUsage)
		return
	}
	now := p.now()
	vc, err := p.verifyCode(ctx, code, now)
	switch {
	case errors.Is(err, ErrCodeInvalid), errors.Is(err, ErrCodeUsed), errors.Is(err, ErrCodeExpired):
		p.reply(ctx, in.ChatID, codeRejection(err))
		return
	case err != nil:
		p.fail(ctx, in.ChatID, "find verification code", err)
		return
	}

	claim := OwnerClaim{CodeID: vc.ID, OwnerID: vc.UserID, ChatID: in.ChatID, Now: now}
	if in.Username != "" {
		claim.Username = &in.Username
	}
	if err := p.store.ClaimOwnerRegistration(ctx, claim); err != nil {
		if errors.Is(err, ErrCodeUsed) {
			p.reply(ctx, in.ChatID, codeUsedText)
			return
		}
		p.fail(ctx, in.ChatID, "claim owner registration", err)
		return
	}

	p.logger.Info("owner chat registered", slog.Int64("chat_id", in.ChatID), slog.String("user_id", vc.UserID.String()))
	p.reply(ctx, in.ChatID, ownerLinkedText)
}

// verifyCode returns the live code matching text. Malformed and unknown
// codes are ErrCodeInvalid.
func (p *CommandProcessor) verifyCode(ctx context.Context, text string, now time.Time) (models.VerificationCode, error) {
	if !codePattern.MatchString(text) {
		return models.VerificationCode{}, ErrCodeInvalid
	}
	vc, err := p.store.FindVerificationCode(ctx, text)
	if errors.Is(err, ErrNotFound) {
		return vc, ErrCodeInvalid
	}
	if err != nil {
		return vc, err
	}
	return vc, checkCode(vc, now)
}

// checkCode rejects codes that can no longer authenticate a registration.
func checkCode(vc models.VerificationCode, now time.Time) error {
	if vc.Used {
		return ErrCodeUsed
	}
	if !now.Before(vc.ExpiresAt) {
		return ErrCodeExpired
	}
	return nil
}

func codeRejection(err error) string {
	switch {
	case errors.Is(err, ErrCodeUsed):
		return codeUsedText
	case errors.Is(err, ErrCodeExpired):
		return codeExpiredText
	}
	return codeInvalidText
}

func (p *CommandProcessor) relay(ctx context.Context, in IncomingMessage, args string) {
	regs, err := p.store.ChatRegistrations(ctx, in.ChatID)
	if err != nil {
		p.fail(ctx, in.ChatID, "load chat registrations", err)
		return
	}
	state, owner := chatStateOf(regs)
	if state != ChatRegisteredOwner {
		p.reply(ctx, in.ChatID, ownerOnlyText)
		return
	}

	phone, body := cutField(args)
	if phone == "" || body == "" {
		p.reply(ctx, in.ChatID, sendUsage)
		return
	}
	if !utils.ValidatePhone(phone) {
		p.reply(ctx, in.ChatID, fmt.Sprintf("❌ Geçersiz telefon numarası: %s", phone))
		return
	}

	ownerID := *owner.UserID
	customer, ep, err := p.resolver.PhoneEndpoint(ctx, ownerID, phone)
	switch {
	case err == nil:
	case customer.ID == uuid.Nil && errors.Is(err, ErrNotFound):
		p.reply(ctx, in.ChatID, fmt.Sprintf("❌ %s numarası ile kayıtlı müşteri bulunamadı.", phone))
		return
	case customer.ID == uuid.Nil && errors.Is(err, ErrAmbiguousRegistration):
		p.reply(ctx, in.ChatID, fmt.Sprintf("❌ %s numarası birden fazla müşteriyle eşleşiyor. Lütfen müşteri kayıtlarını kontrol edin.", phone))
		return
	case errors.Is(err, ErrNotFound):
		p.reply(ctx, in.ChatID, fmt.Sprintf("❌ %s (%s) için aktif Telegram hesabı bulunamadı.", customer.Name, phone))
		return
	case errors.Is(err, ErrAmbiguousRegistration):
		p.reply(ctx, in.ChatID, fmt.Sprintf("❌ %s (%s) için birden fazla aktif Telegram hesabı var. Web panelinden birini devre dışı bırakın.", customer.Name, phone))
		return
	default:
		p.fail(ctx, in.ChatID, "resolve customer chat", err)
		return
	}

	if err := p.telegram.SendTelegram(ctx, ep.ChatID, PlainMessage(body)); err != nil {
		p.reply(ctx, in.ChatID, fmt.Sprintf("❌ Mesaj gönderilirken hata oluştu. %s (%s) ulaşılamıyor olabilir.", customer.Name, phone))
		return
	}
	if err := p.logMessage(ctx, ep.ChatID, body, models.DirectionOutgoing, &ownerID); err != nil {
		p.logger.Error("log relayed message", slog.Any("error", err))
	}

	p.logger.Info("message relayed", slog.Int64("from_chat", in.ChatID), slog.String("customer_id", customer.ID.String()))
	p.reply(ctx, in.ChatID, fmt.Sprintf("✅ Mesaj başarıyla gönderildi:\n👤 %s\n📱 %s\n💬 \"%s\"", customer.Name, phone, body))
}

// reply sends text back to the chat and records it. Failures are logged
// and never surface to the webhook caller.
func (p *CommandProcessor) reply(ctx context.Context, chatID int64, body string) {
	if err := p.telegram.SendTelegram(ctx, chatID, PlainMessage(body)); err != nil {
		p.logger.Error("reply failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
	if err := p.logMessage(ctx, chatID, body, models.DirectionOutgoing, nil); err != nil {
		p.logger.Error("log reply", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (p *CommandProcessor) fail(ctx context.Context, chatID int64, op string, err error) {
	p.logger.Error(op, slog.Int64("chat_id", chatID), slog.Any("error", err))
	p.reply(ctx, chatID, internalErrText)
}

func (p *CommandProcessor) logMessage(ctx context.Context, chatID int64, body string, dir models.MessageDirection, owner *uuid.UUID) error {
	return p.store.LogTelegramMessage(ctx, &models.TelegramMessage{
		TelegramChatID: chatID,
		MessageText:    body,
		MessageType:    "text",
		Direction:      dir,
		UserID:         owner,
	})
}
