package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/dukani-next/internal/config"
	"github.com/dukani-next/internal/constants"
	"github.com/dukani-next/internal/models"
)

func TestRenderOrderEmail(t *testing.T) {
	order := &models.Order{
		OrderNo:           "DK20240101ABC",
		ProductSummary:    "Jiko <script>",
		TotalQuantity:     2,
		Town:              "Parklands",
		County:            "Nairobi",
		EstimatedDelivery: "1-3 business days",
		Currency:          "KES",
		TotalAmount:       models.NewMoneyFromInt(2750),
		PaymentStatus:     constants.PaymentStatusCompleted,
		Status:            constants.OrderStatusConfirmed,
	}
	html, err := RenderOrderEmail(OrderEmailData{
		SiteName:     "Dukani",
		Heading:      "Payment received",
		Message:      "Thanks & welcome",
		ContactPhone: "254712345678",
		Order:        order,
	})
	if err != nil {
		t.Fatalf("RenderOrderEmail error: %v", err)
	}
	for _, want := range []string{"DK20240101ABC", "KES 2750.00", "Jiko &lt;script&gt;", "Thanks &amp; welcome", "254712345678"} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered email missing %q:\n%s", want, html)
		}
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("product summary must be escaped")
	}

	withoutOrder, err := RenderOrderEmail(OrderEmailData{SiteName: "Dukani", Heading: "Test", Message: "hello"})
	if err != nil || strings.Contains(withoutOrder, "<table") {
		t.Fatalf("order table should be omitted without an order: %v", err)
	}
}

func TestSendHTML(t *testing.T) {
	svc := NewEmailService(nil, config.EmailConfig{})
	if _, err := svc.SendHTML("not-an-address", "Hi", "<p>hi</p>"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	simulated, err := svc.SendHTML("buyer@example.com", "Hi", "<p>hi</p>")
	if err != nil || !simulated {
		t.Fatalf("unconfigured smtp should simulate, got simulated=%v err=%v", simulated, err)
	}

	svc = NewEmailService(nil, config.EmailConfig{
		Enabled:  true,
		Host:     "smtp.example.com",
		Port:     587,
		From:     "orders@example.com",
		FromName: "Dukani Orders",
	})
	var captured string
	svc.transport = func(cfg config.EmailConfig, to string, msg []byte) error {
		captured = string(msg)
		if to == "ghost@example.com" {
			return errors.New("550 5.1.1 recipient address rejected")
		}
		return nil
	}
	simulated, err = svc.SendHTML(" buyer@example.com ", "Order DK1 received", "<p>hi</p>")
	if err != nil || simulated {
		t.Fatalf("expected a real send, got simulated=%v err=%v", simulated, err)
	}
	for _, want := range []string{"To: buyer@example.com\r\n", "Subject: Order DK1 received\r\n", "Content-Type: text/html; charset=UTF-8", "<p>hi</p>"} {
		if !strings.Contains(captured, want) {
			t.Fatalf("message missing %q:\n%s", want, captured)
		}
	}
	if !strings.Contains(captured, "From: \"Dukani Orders\" <orders@example.com>") {
		t.Fatalf("unexpected from header:\n%s", captured)
	}

	if _, err := svc.SendHTML("ghost@example.com", "Hi", "<p>hi</p>"); !errors.Is(err, ErrEmailRecipientRejected) {
		t.Fatalf("expected ErrEmailRecipientRejected, got %v", err)
	}
}

func TestIsEmailRecipientRejected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "smtp_550_no_such_recipient",
			err:  errors.New("550 No such recipient here"),
			want: true,
		},
		{
			name: "smtp_user_unknown",
			err:  errors.New("SMTP 5.1.1 user unknown"),
			want: true,
		},
		{
			name: "smtp_550_mailbox_unavailable",
			err:  errors.New("550 mailbox unavailable"),
			want: true,
		},
		{
			name: "network_timeout",
			err:  errors.New("dial tcp timeout"),
			want: false,
		},
		{
			name: "nil_error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isEmailRecipientRejected(tt.err); got != tt.want {
				t.Fatalf("isEmailRecipientRejected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeEmailSendError(t *testing.T) {
	rejected := errors.New("550 No such recipient here")
	if got := normalizeEmailSendError(rejected); !errors.Is(got, ErrEmailRecipientRejected) {
		t.Fatalf("normalizeEmailSendError() expected ErrEmailRecipientRejected, got %v", got)
	}

	networkErr := errors.New("dial tcp timeout")
	if got := normalizeEmailSendError(networkErr); !errors.Is(got, networkErr) {
		t.Fatalf("normalizeEmailSendError() should keep original error, got %v", got)
	}

	if got := normalizeEmailSendError(nil); got != nil {
		t.Fatalf("normalizeEmailSendError(nil) should be nil, got %v", got)
	}
}
