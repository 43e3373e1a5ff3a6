package services

import (
	"fmt"
	"strings"
	"time"

	"debtreminder-backend/models"
	"debtreminder-backend/utils"

	"github.com/shopspring/decimal"
)

const (
	notSpecified = "Belirtilmemiş"

	// Keeps the digest well under Telegram's 4096 character limit.
	maxDigestEntries = 50
)

// Span is a run of text, optionally emphasised. Senders decide how
// emphasis and escaping look on their channel.
type Span struct {
	Text   string
	Strong bool
}

type Line []Span

// Message is channel-neutral text. The composer never emits markup.
type Message struct {
	Subject string
	Lines   []Line
}

func span(s string) Span { return Span{Text: s} }
func bold(s string) Span { return Span{Text: s, Strong: true} }

// PlainMessage wraps free text, such as an operator's relayed note.
func PlainMessage(body string) Message {
	var m Message
	for _, l := range strings.Split(body, "\n") {
		m.Lines = append(m.Lines, Line{span(l)})
	}
	return m
}

// Plain renders the message without emphasis. It is what the reminder log
// stores and what email carries.
func (m Message) Plain() string {
	var b strings.Builder
	for i, line := range m.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, s := range line {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

type messageBuilder struct {
	m Message
}

func (b *messageBuilder) line(spans ...Span) { b.m.Lines = append(b.m.Lines, Line(spans)) }
func (b *messageBuilder) blank() { b.m.Lines = append(b.m.Lines, Line{}) }

func (b *messageBuilder) field(icon, label, value string) {
	b.line(span(icon+" "), bold(label+":"), span(" "+value))
}

func describe(d models.Debt) string {
	if d.Description == nil || strings.TrimSpace(*d.Description) == "" {
		return notSpecified
	}
	return *d.Description
}

// ComposeOverdueMessage is the reminder a customer receives for one debt.
// daysOverdue <= 0 means the debt is due today.
func ComposeOverdueMessage(debt models.Debt, daysOverdue int) Message {
	var b messageBuilder
	due := utils.FormatDate(debt.DueDate)
	overdue := daysOverdue > 0

	if overdue {
		b.m.Subject = "Gecikmiş Borç Bildirimi - " + due
		b.line(span("🚨 "), bold("GECİKMİŞ BORÇ BİLDİRİMİ"), span(" 🚨"))
	} else {
		b.m.Subject = "Borç Hatırlatması - " + due
		b.line(span("⏰ "), bold("BORÇ HATIRLATMASI"), span(" ⏰"))
	}
	b.blank()
	b.line(span("Sayın "), bold(debt.Customer.Name), span(","))
	b.blank()
	b.field("💰", "Tutar", utils.FormatCurrency(debt.Amount))
	b.field("📅", "Son Ödeme Tarihi", due)
	if overdue {
		b.field("⏱️", "Gecikme Süresi", fmt.Sprintf("%d gün", daysOverdue))
	}
	b.field("📝", "Açıklama", describe(debt))
	b.blank()
	if overdue {
		b.line(span("⚠️ "), bold("Ödeme vadesi geçmiştir!"))
	} else {
		b.line(span("⚠️ "), bold("Son ödeme günü bugündür."))
	}
	b.blank()
	b.line(span("Lütfen en kısa sürede ödemenizi gerçekleştirin."))
	b.blank()
	b.line(span("Teşekkürler! 🙏"))
	return b.m
}

// ComposeOwnerAlert tells a business owner about one customer's debt.
func ComposeOwnerAlert(debt models.Debt, daysOverdue int) Message {
	var b messageBuilder
	due := utils.FormatDate(debt.DueDate)

	if daysOverdue > 0 {
		b.line(span("🚨 "), bold("GECİKMİŞ BORÇ HATIRLATMASI"), span(" 🚨"))
	} else {
		b.line(span("⏰ "), bold("BORÇ HATIRLATMASI"), span(" ⏰"))
	}
	b.m.Subject = "Borç Hatırlatması - " + debt.Customer.Name
	b.blank()

	phone := notSpecified
	if debt.Customer.Phone != nil && strings.TrimSpace(*debt.Customer.Phone) != "" {
		phone = *debt.Customer.Phone
	}
	b.field("👤", "Müşteri", debt.Customer.Name)
	b.field("📱", "Telefon", phone)
	b.field("📧", "Email", debt.Customer.Email)
	b.blank()
	b.field("💰", "Tutar", utils.FormatCurrency(debt.Amount))
	b.field("📅", "Vade Tarihi", due)
	if daysOverdue > 0 {
		b.field("⏱️", "Gecikme", fmt.Sprintf("%d gün", daysOverdue))
	}
	b.field("📝", "Açıklama", describe(debt))
	b.blank()
	b.line(span("⚠️ Bu borç için müşterinizle iletişime geçmeniz önerilir."))
	return b.m
}

// ComposeOwnerDigest lists an owner's overdue debts as of today.
func ComposeOwnerDigest(debts []models.Debt, today time.Time) Message {
	var b messageBuilder
	b.m.Subject = "Gecikmiş Borç Bildirimi - " + utils.FormatDate(today)

	total := decimal.Zero
	for _, d := range debts {
		total = total.Add(d.Amount)
	}

	b.line(span("🚨 "), bold("GECİKMİŞ BORÇ BİLDİRİMİ"))
	b.blank()
	b.line(span(fmt.Sprintf("📋 %d adet gecikmiş borç", len(debts))))
	b.line(span("💰 "), bold("Toplam:"), span(" "+utils.FormatCurrency(total)))
	b.blank()
	b.line(bold("Müşteriler:"))

	for i, d := range debts {
		if i == maxDigestEntries {
			b.line(span(fmt.Sprintf("… ve %d borç daha", len(debts)-maxDigestEntries)))
			break
		}
		days := utils.DaysBetween(d.DueDate, today)
		status := fmt.Sprintf("%d gün gecikme", days)
		if days <= 0 {
			status = "bugün vadesi doluyor"
		}
		b.line(span(fmt.Sprintf("• %s - %s (%s)", d.Customer.Name, utils.FormatCurrency(d.Amount), status)))
	}

	b.blank()
	b.line(span("🌐 Borçları görüntülemek için web paneline giriş yapın."))
	return b.m
}
