package service

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/logger"
	"github.com/dukani-next/internal/models"
)

var orderEmailTemplate = template.Must(template.New("order_email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>{{.Heading}}</h2>
  <p>{{.Message}}</p>
  {{- with .Order}}
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td><strong>Order</strong></td><td>{{.OrderNo}}</td></tr>
    <tr><td><strong>Items</strong></td><td>{{.ProductSummary}} (qty {{.TotalQuantity}})</td></tr>
    <tr><td><strong>Delivery</strong></td><td>{{.Town}} {{.County}}, {{.EstimatedDelivery}}</td></tr>
    <tr><td><strong>Total</strong></td><td>{{.Currency}} {{.TotalAmount.String}}</td></tr>
    <tr><td><strong>Payment</strong></td><td>{{.PaymentStatus}}</td></tr>
    <tr><td><strong>Status</strong></td><td>{{.Status}}</td></tr>
  </table>
  {{- end}}
  <p style="color: #666;">{{.SiteName}}{{if .ContactPhone}} &middot; {{.ContactPhone}}{{end}}</p>
</body>
</html>`))

// OrderEmailData values for the order email layout
type OrderEmailData struct {
	SiteName     string
	Heading      string
	Message      string
	ContactPhone string
	Order        *models.Order
}

// RenderOrderEmail renders the HTML body; values are escaped by html/template
func RenderOrderEmail(data OrderEmailData) (string, error) {
	var buf bytes.Buffer
	if err := orderEmailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EmailService SMTP delivery; the smtp_config setting overrides the static config
type EmailService struct {
	settingService *SettingService
	defaults       config.EmailConfig
	transport      func(cfg config.EmailConfig, to string, msg []byte) error
}

// NewEmailService builds the service
func NewEmailService(settingService *SettingService, defaults config.EmailConfig) *EmailService {
	return &EmailService{
		settingService: settingService,
		defaults:       defaults,
		transport:      sendSMTP,
	}
}

// Config runtime mail config
func (s *EmailService) Config() config.EmailConfig {
	if s.settingService == nil {
		return s.defaults
	}
	setting, err := s.settingService.GetSMTPSetting()
	if err != nil {
		logger.Warnw("email_setting_load_failed", "error", err)
	}
	return SMTPSettingToConfig(setting)
}

// emailConfigured reports whether mail can actually be sent
func emailConfigured(cfg config.EmailConfig) bool {
	return cfg.Enabled && cfg.Host != "" && cfg.Port > 0 && cfg.From != ""
}

// SendHTML sends one HTML email. Without SMTP configured the rendered body is logged
// and simulated is true.
func (s *EmailService) SendHTML(toEmail, subject, htmlBody string) (simulated bool, err error) {
	toEmail = strings.TrimSpace(toEmail)
	if _, err := mail.ParseAddress(toEmail); err != nil {
		return false, ErrInvalidEmail
	}
	subject = strings.TrimSpace(subject)
	cfg := s.Config()
	if !emailConfigured(cfg) {
		logger.Infow("email_simulated", "to", toEmail, "subject", subject, "html", htmlBody)
		return true, nil
	}
	msg := buildEmailMessage(buildFromAddress(cfg.From, cfg.FromName), toEmail, subject, htmlBody)
	return false, normalizeEmailSendError(s.transport(cfg, toEmail, []byte(msg)))
}

func sendSMTP(cfg config.EmailConfig, to string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	recipients := []string{to}
	if cfg.UseSSL {
		return sendMailWithSSL(addr, auth, cfg.Host, cfg.From, recipients, msg)
	}
	if cfg.UseTLS {
		return sendMailWithStartTLS(addr, auth, cfg.Host, cfg.From, recipients, msg)
	}
	return sendMailPlain(addr, auth, cfg.Host, cfg.From, recipients, msg)
}

func buildFromAddress(from, name string) string {
	if strings.TrimSpace(name) == "" {
		return from
	}
	encoded := mime.QEncoding.Encode("UTF-8", name)
	return (&mail.Address{Name: encoded, Address: from}).String()
}

func buildEmailMessage(from, to, subject, body string) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.String()
}

func sendMailWithSSL(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := smtpAuth(client, auth); err != nil {
		return err
	}
	return sendSMTPData(client, from, to, msg)
}

func sendMailWithStartTLS(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return err
	}
	if err := smtpAuth(client, auth); err != nil {
		return err
	}
	return sendSMTPData(client, from, to, msg)
}

func sendMailPlain(addr string, auth smtp.Auth, _ string, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := smtpAuth(client, auth); err != nil {
		return err
	}
	return sendSMTPData(client, from, to, msg)
}

func smtpAuth(client *smtp.Client, auth smtp.Auth) error {
	if auth == nil {
		return nil
	}
	if ok, _ := client.Extension("AUTH"); !ok {
		return nil
	}
	return client.Auth(auth)
}

func sendSMTPData(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func normalizeEmailSendError(err error) error {
	if err == nil {
		return nil
	}
	if isEmailRecipientRejected(err) {
		return fmt.Errorf("%w: %v", ErrEmailRecipientRejected, err)
	}
	return err
}

var emailRecipientRejectedKeywords = []string{
	"no such recipient",
	"no such user",
	"recipient not found",
	"recipient address rejected",
	"invalid recipient",
	"user unknown",
	"unknown user",
	"unknown mailbox",
	"mailbox unavailable",
}

func isEmailRecipientRejected(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	for _, keyword := range emailRecipientRejectedKeywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	if strings.Contains(message, "550") {
		for _, hint := range []string{"recipient", "user", "mailbox", "rcpt"} {
			if strings.Contains(message, hint) {
				return true
			}
		}
	}
	return false
}
