package sms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseSendResponse(t *testing.T) {
	ok := []byte(`{"SMSMessageData":{"Message":"Sent to 1/1 Total Cost: KES 0.8000","Recipients":[{"statusCode":101,"number":"+254711000111","status":"Success","cost":"KES 0.8000","messageId":"ATPid_1"}]}}`)
	res, err := ParseSendResponse(ok)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if res.MessageID != "ATPid_1" || res.StatusCode != 101 {
		t.Fatalf("unexpected result: %+v", res)
	}

	for _, code := range []string{"100", "102"} {
		body := []byte(`{"SMSMessageData":{"Recipients":[{"statusCode":` + code + `,"status":"Queued"}]}}`)
		if _, err := ParseSendResponse(body); err != nil {
			t.Fatalf("status %s should be accepted: %v", code, err)
		}
	}

	rejected := []byte(`{"SMSMessageData":{"Recipients":[{"statusCode":403,"status":"InvalidPhoneNumber"}]}}`)
	if _, err := ParseSendResponse(rejected); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	empty := []byte(`{"SMSMessageData":{"Message":"InvalidSenderId","Recipients":[]}}`)
	if _, err := ParseSendResponse(empty); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejection for empty recipients, got %v", err)
	}
	if _, err := ParseSendResponse([]byte("<html>")); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected invalid response, got %v", err)
	}
}

func TestClientSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/version1/messaging" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("apiKey") != "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("username") != "shop" || r.PostForm.Get("to") != "+254712345678" || r.PostForm.Get("from") != "DUKANI" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Recipients":[{"statusCode":101,"number":"+254712345678","status":"Success","messageId":"ATPid_9"}]}}`))
	}))
	defer srv.Close()

	cfg := &Config{Provider: "AfricasTalking", Username: "shop", APIKey: "key-1", SenderID: "DUKANI", BaseURL: srv.URL}
	cfg.Normalize()
	res, err := NewClient(cfg, nil).Send(context.Background(), Message{To: "0712345678", Body: "Order DK1 confirmed"})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if res.MessageID != "ATPid_9" {
		t.Fatalf("unexpected message id: %s", res.MessageID)
	}
}

func TestClientSendValidation(t *testing.T) {
	if _, err := NewClient(&Config{}, nil).Send(context.Background(), Message{To: "0712345678", Body: "x"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
	cfg := &Config{Provider: ProviderAfricasTalking, Username: "u", APIKey: "k"}
	if _, err := NewClient(cfg, nil).Send(context.Background(), Message{To: "0712345678", Body: "  "}); !errors.Is(err, ErrMessageEmpty) {
		t.Fatalf("expected empty message error, got %v", err)
	}
}

func TestResolveBaseURL(t *testing.T) {
	cfg := &Config{Environment: "Sandbox"}
	cfg.Normalize()
	if ResolveBaseURL(cfg) != SandboxBaseURL {
		t.Fatalf("expected sandbox url")
	}
	cfg = &Config{}
	cfg.Normalize()
	if ResolveBaseURL(cfg) != ProductionBaseURL {
		t.Fatalf("expected production url by default")
	}
}
