package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0712345678":        "254712345678",
		"0112345678":        "254112345678",
		"712345678":         "254712345678",
		"112345678":         "254112345678",
		"+254712345678":     "254712345678",
		"254712345678":      "254712345678",
		" 0712 345-678 ":    "254712345678",
		"+254 (712) 345678": "254712345678",
	}
	for input, want := range cases {
		got, err := NormalizePhone(input)
		if err != nil {
			t.Fatalf("NormalizePhone(%q) error: %v", input, err)
		}
		if got != want {
			t.Fatalf("NormalizePhone(%q)=%q want %q", input, got, want)
		}
	}
	for _, bad := range []string{"", "12345", "0812345678", "25471234567", "07123abc78"} {
		if _, err := NormalizePhone(bad); !errors.Is(err, ErrPhoneInvalid) {
			t.Fatalf("NormalizePhone(%q) expected ErrPhoneInvalid, got %v", bad, err)
		}
	}
}

func TestTimestampAndPassword(t *testing.T) {
	utc := time.Date(2024, 3, 5, 21, 30, 15, 0, time.UTC)
	ts := Timestamp(utc)
	if ts != "20240306003015" {
		t.Fatalf("expected Nairobi timestamp, got %s", ts)
	}
	pw := Password("174379", "passkey", ts)
	decoded, err := base64.StdEncoding.DecodeString(pw)
	if err != nil {
		t.Fatalf("password is not base64: %v", err)
	}
	if string(decoded) != "174379passkey20240306003015" {
		t.Fatalf("unexpected password payload: %s", decoded)
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(&Config{Enabled: false, ConsumerKey: "k"}); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected not enabled, got %v", err)
	}
	if err := ValidateConfig(nil); err == nil || err.Error() != "M-Pesa Express is not enabled" {
		t.Fatalf("unexpected nil config error: %v", err)
	}
	incomplete := &Config{Enabled: true, ConsumerKey: "k", ConsumerSecret: "s", ShortCode: "174379"}
	if err := ValidateConfig(incomplete); err == nil || err.Error() != "M-Pesa credentials are incomplete" {
		t.Fatalf("expected incomplete credentials, got %v", err)
	}
	till := &Config{Enabled: true, ConsumerKey: "k", ConsumerSecret: "s", ShortCode: "174379", PassKey: "p", PaymentMode: ModeTill}
	if err := ValidateConfig(till); !errors.Is(err, ErrCredentialsIncomplete) {
		t.Fatalf("till mode without till number should fail, got %v", err)
	}
	till.TillNumber = "5555"
	if err := ValidateConfig(till); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{
		"enabled":     true,
		"environment": " PRODUCTION ",
		"short_code":  " 600000 ",
		"base_url":    "https://example.test/",
	})
	if err != nil {
		t.Fatalf("ParseConfig error: %v", err)
	}
	if cfg.Environment != EnvProduction || cfg.PaymentMode != ModePaybill || cfg.ShortCode != "600000" {
		t.Fatalf("unexpected normalized config: %+v", cfg)
	}
	if ResolveBaseURL(cfg) != "https://example.test" {
		t.Fatalf("base url override not honoured: %s", ResolveBaseURL(cfg))
	}
	cfg.BaseURL = ""
	if ResolveBaseURL(cfg) != ProductionBaseURL {
		t.Fatalf("expected production host")
	}
	if ResolveBaseURL(&Config{Environment: EnvSandbox}) != SandboxBaseURL {
		t.Fatalf("expected sandbox host")
	}
}

func TestTransactionTypeAndCallbackURL(t *testing.T) {
	if TransactionType("till") != TransactionTypeBuyGoods || TransactionType("paybill") != TransactionTypePaybill {
		t.Fatalf("unexpected transaction type mapping")
	}
	cfg := &Config{ShortCode: "174379", TillNumber: "5555", PaymentMode: ModeTill}
	if PartyB(cfg) != "5555" {
		t.Fatalf("till mode should pay the till")
	}
	cfg.PaymentMode = ModePaybill
	if PartyB(cfg) != "174379" {
		t.Fatalf("paybill mode should pay the shortcode")
	}
	if got := ResolveCallbackURL(cfg, "https://shop.example/"); got != "https://shop.example/api/v1/payments/mpesa/callback" {
		t.Fatalf("unexpected derived callback url: %s", got)
	}
	cfg.CallbackURL = "https://hooks.example/mpesa"
	if got := ResolveCallbackURL(cfg, "https://shop.example"); got != "https://hooks.example/mpesa" {
		t.Fatalf("explicit callback url not used: %s", got)
	}
}

func newTestServer(t *testing.T, stkHandler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":"3599"}`))
	})
	if stkHandler != nil {
		mux.HandleFunc("/mpesa/stkpushrequest/v1/processrequest", stkHandler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func testConfig(baseURL string) *Config {
	cfg := &Config{
		Enabled:        true,
		ShortCode:      "174379",
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		PassKey:        "passkey",
		BaseURL:        baseURL,
	}
	cfg.Normalize()
	return cfg
}

func TestSTKPushSuccess(t *testing.T) {
	var captured map[string]interface{}
	srv, tokenCalls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`))
	})

	fixed := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	client := NewClient(testConfig(srv.URL), WithClock(func() time.Time { return fixed }))
	for i := 0; i < 2; i++ {
		res, err := client.STKPush(context.Background(), STKPushRequest{
			Phone:            "0712345678",
			Amount:           500,
			AccountReference: "DK20240101ABCDEFGH",
			CallbackURL:      "https://shop.example/api/v1/payments/mpesa/callback",
		})
		if err != nil {
			t.Fatalf("STKPush error: %v", err)
		}
		if res.CheckoutRequestID != "ws_CO_1" || res.MerchantRequestID != "m-1" {
			t.Fatalf("unexpected result: %+v", res)
		}
	}
	if atomic.LoadInt32(tokenCalls) != 1 {
		t.Fatalf("expected token to be cached, fetched %d times", *tokenCalls)
	}
	if captured["PartyA"] != "254712345678" || captured["PhoneNumber"] != "254712345678" {
		t.Fatalf("phone not normalized in request: %v", captured)
	}
	if captured["TransactionType"] != TransactionTypePaybill || captured["PartyB"] != "174379" {
		t.Fatalf("unexpected paybill fields: %v", captured)
	}
	if captured["Timestamp"] != "20240101120000" {
		t.Fatalf("unexpected timestamp: %v", captured["Timestamp"])
	}
	if captured["AccountReference"] != "DK20240101AB" {
		t.Fatalf("account reference should be truncated to 12 chars: %v", captured["AccountReference"])
	}
	if amount, _ := captured["Amount"].(float64); amount != 500 {
		t.Fatalf("unexpected amount: %v", captured["Amount"])
	}
}

func TestSTKPushGatewayRejection(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"requestId":"r-1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`))
	})
	client := NewClient(testConfig(srv.URL))
	_, err := client.STKPush(context.Background(), STKPushRequest{
		Phone:       "254712345678",
		Amount:      10,
		CallbackURL: "https://shop.example/cb",
	})
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.Error() != "Bad Request - Invalid PhoneNumber" || gwErr.Code != "400.002.02" {
		t.Fatalf("gateway message should be surfaced verbatim: %+v", gwErr)
	}
}

func TestSTKPushNonZeroResponseCode(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ResponseCode":"1","CustomerMessage":"Unable to lock subscriber"}`))
	})
	client := NewClient(testConfig(srv.URL))
	_, err := client.STKPush(context.Background(), STKPushRequest{Phone: "0712345678", Amount: 1, CallbackURL: "https://x/cb"})
	if err == nil || err.Error() != "Unable to lock subscriber" {
		t.Fatalf("expected customer message, got %v", err)
	}
}

func TestSTKPushValidatesInput(t *testing.T) {
	client := NewClient(testConfig("http://127.0.0.1:1"))
	if _, err := client.STKPush(context.Background(), STKPushRequest{Phone: "123", Amount: 1, CallbackURL: "x"}); !errors.Is(err, ErrPhoneInvalid) {
		t.Fatalf("expected phone error, got %v", err)
	}
	if _, err := client.STKPush(context.Background(), STKPushRequest{Phone: "0712345678", Amount: 0, CallbackURL: "x"}); !errors.Is(err, ErrAmountInvalid) {
		t.Fatalf("expected amount error, got %v", err)
	}
}

type memoryTokenStore struct {
	values map[string]string
	ttl    time.Duration
}

func (m *memoryTokenStore) GetToken(_ context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryTokenStore) SetToken(_ context.Context, key, token string, ttl time.Duration) error {
	m.values[key] = token
	m.ttl = ttl
	return nil
}

func TestAccessTokenUsesStore(t *testing.T) {
	srv, tokenCalls := newTestServer(t, nil)
	store := &memoryTokenStore{values: map[string]string{}}

	first := NewClient(testConfig(srv.URL), WithTokenStore(store))
	if _, err := first.AccessToken(context.Background()); err != nil {
		t.Fatalf("AccessToken error: %v", err)
	}
	if store.ttl != 3539*time.Second {
		t.Fatalf("expected ttl expires_in-60s, got %s", store.ttl)
	}

	second := NewClient(testConfig(srv.URL), WithTokenStore(store))
	token, err := second.AccessToken(context.Background())
	if err != nil || token != "tok-1" {
		t.Fatalf("expected shared token, got %q %v", token, err)
	}
	if atomic.LoadInt32(tokenCalls) != 1 {
		t.Fatalf("second client should reuse stored token")
	}
}

func TestAccessTokenRejectedCredentials(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	cfg := testConfig(srv.URL)
	cfg.ConsumerSecret = "wrong"
	if _, err := NewClient(cfg).AccessToken(context.Background()); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestQuerySTKStatus(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":3599}`))
	})
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ResponseCode":"0","MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`))
	})
	query := httptest.NewServer(mux)
	defer query.Close()

	client := NewClient(testConfig(query.URL))
	res, err := client.QuerySTKStatus(context.Background(), "ws_CO_1")
	if err != nil || !res.Pending {
		t.Fatalf("expected pending result, got %+v %v", res, err)
	}
	res, err = client.QuerySTKStatus(context.Background(), "ws_CO_1")
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	if res.Pending || res.ResultCode != 1032 || res.ResultDesc != "Request cancelled by user" {
		t.Fatalf("unexpected query result: %+v", res)
	}
}
