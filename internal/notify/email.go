package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"signaldesk/internal/config"
	"signaldesk/pkg/retry"
	"signaldesk/pkg/utils"
)

// email.go - доставка уведомлений по SMTP
//
// Назначение:
// Реализация service.EmailSender поверх net/smtp. Доставка
// best-effort: ошибки после всех попыток логируются, но никогда
// не влияют на обработку событий.

// EmailNotifier отправляет письма через SMTP с повторными попытками
type EmailNotifier struct {
	cfg      config.EmailConfig
	retryCfg retry.Config
	timeout  time.Duration

	// sendMail подменяется в тестах
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier создает SMTP отправитель.
// Возвращает nil при выключенной доставке: вызывающий код
// просто не подключает sender к сервису уведомлений.
func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	if !cfg.Enabled {
		return nil
	}
	return &EmailNotifier{
		cfg:      cfg,
		retryCfg: retry.EmailConfig(),
		timeout:  time.Minute,
		sendMail: smtp.SendMail,
	}
}

// Send отправляет письмо всем получателям из конфигурации.
// EMAIL_TO поддерживает несколько адресов через запятую.
func (n *EmailNotifier) Send(subject, body string) error {
	recipients := splitRecipients(n.cfg.To)
	if len(recipients) == 0 {
		return fmt.Errorf("no email recipients configured")
	}

	from := n.cfg.From
	if from == "" {
		from = n.cfg.User
	}

	msg := buildMessage(from, recipients, subject, body)
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	var auth smtp.Auth
	if n.cfg.User != "" {
		auth = smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	err := retry.Do(ctx, func() error {
		return n.sendMail(addr, auth, from, recipients, msg)
	}, n.retryCfg)
	if err != nil {
		utils.L().Warn("Email delivery failed after retries",
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

func splitRecipients(to string) []string {
	var recipients []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return recipients
}

// buildMessage собирает RFC 5322 сообщение с заголовками
func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
