package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukani-next/internal/phone"
)

var (
	ErrNotEnabled            = errors.New("M-Pesa Express is not enabled")
	ErrCredentialsIncomplete = errors.New("M-Pesa credentials are incomplete")
	ErrConfigInvalid         = errors.New("mpesa config invalid")
	ErrPhoneInvalid          = phone.ErrInvalid
	ErrAmountInvalid         = errors.New("amount must be at least 1")
	ErrRequestFailed         = errors.New("mpesa request failed")
	ErrResponseInvalid       = errors.New("mpesa response invalid")
	ErrAuthFailed            = errors.New("mpesa authentication failed")
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"

	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	ModePaybill = "paybill"
	ModeTill    = "till"

	TransactionTypePaybill  = "CustomerPayBillOnline"
	TransactionTypeBuyGoods = "CustomerBuyGoodsOnline"

	CallbackPath = "/api/v1/payments/mpesa/callback"

	oauthPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpushrequest/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	// returned by the query API while the customer has not answered the prompt
	queryPendingErrorCode = "500.001.1001"

	maxAccountReferenceLen = 12
	maxTransactionDescLen  = 13
	tokenRefreshMargin     = 60 * time.Second
)

// EAT Kenya has no daylight saving, so a fixed zone avoids depending on tzdata.
var EAT = time.FixedZone("EAT", 3*60*60)

// Config M-Pesa Express (Daraja) credentials
type Config struct {
	Enabled          bool   `json:"enabled"`
	Environment      string `json:"environment"`  // sandbox / production
	PaymentMode      string `json:"payment_mode"` // paybill / till
	ShortCode        string `json:"short_code"`
	TillNumber       string `json:"till_number"`
	ConsumerKey      string `json:"consumer_key"`
	ConsumerSecret   string `json:"consumer_secret"`
	PassKey          string `json:"pass_key"`
	CallbackURL      string `json:"callback_url"`
	AccountReference string `json:"account_reference"`
	BaseURL          string `json:"base_url,omitempty"` // overrides the environment host
}

// ParseConfig decodes a settings map
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Normalize trims fields and fills defaults
func (c *Config) Normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment != EnvProduction {
		c.Environment = EnvSandbox
	}
	c.PaymentMode = strings.ToLower(strings.TrimSpace(c.PaymentMode))
	if c.PaymentMode != ModeTill {
		c.PaymentMode = ModePaybill
	}
	c.ShortCode = strings.TrimSpace(c.ShortCode)
	c.TillNumber = strings.TrimSpace(c.TillNumber)
	c.ConsumerKey = strings.TrimSpace(c.ConsumerKey)
	c.ConsumerSecret = strings.TrimSpace(c.ConsumerSecret)
	c.PassKey = strings.TrimSpace(c.PassKey)
	c.CallbackURL = strings.TrimSpace(c.CallbackURL)
	c.AccountReference = strings.TrimSpace(c.AccountReference)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
}

// ValidateConfig checks the gateway can be called
func ValidateConfig(cfg *Config) error {
	if cfg == nil || !cfg.Enabled {
		return ErrNotEnabled
	}
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" || cfg.ShortCode == "" || cfg.PassKey == "" {
		return ErrCredentialsIncomplete
	}
	if cfg.PaymentMode == ModeTill && cfg.TillNumber == "" {
		return ErrCredentialsIncomplete
	}
	return nil
}

// ResolveBaseURL picks the API host for the environment
func ResolveBaseURL(cfg *Config) string {
	if cfg == nil {
		return SandboxBaseURL
	}
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	if cfg.Environment == EnvProduction {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// TransactionType maps the payment mode to the Daraja transaction type
func TransactionType(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), ModeTill) {
		return TransactionTypeBuyGoods
	}
	return TransactionTypePaybill
}

// PartyB is the till for buy-goods and the shortcode for paybill
func PartyB(cfg *Config) string {
	if cfg.PaymentMode == ModeTill && cfg.TillNumber != "" {
		return cfg.TillNumber
	}
	return cfg.ShortCode
}

// ResolveCallbackURL uses the configured URL or derives it from the site base URL
func ResolveCallbackURL(cfg *Config, siteBaseURL string) string {
	if cfg != nil && cfg.CallbackURL != "" {
		return cfg.CallbackURL
	}
	return strings.TrimRight(strings.TrimSpace(siteBaseURL), "/") + CallbackPath
}

// NormalizePhone converts local formats to 2547XXXXXXXX / 2541XXXXXXXX
func NormalizePhone(raw string) (string, error) {
	return phone.Normalize(raw)
}

// Timestamp formats t as YYYYMMDDHHmmss in Nairobi time
func Timestamp(t time.Time) string {
	return t.In(EAT).Format("20060102150405")
}

// Password is base64(shortcode + passkey + timestamp)
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// GatewayError a non-success answer from Daraja; Message is shown to the customer verbatim
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "M-Pesa request was not accepted (code " + e.Code + ")"
}

// TokenStore shared cache for OAuth tokens
type TokenStore interface {
	GetToken(ctx context.Context, key string) (string, bool, error)
	SetToken(ctx context.Context, key, token string, ttl time.Duration) error
}

// Client Daraja API client
type Client struct {
	cfg        *Config
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Option client option
type Option func(*Client)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokenStore shares tokens across processes
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.tokens = store
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a client for a validated config
func NewClient(cfg *Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		baseURL:    ResolveBaseURL(cfg),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) tokenKey() string {
	return fmt.Sprintf("mpesa:token:%s:%s", c.cfg.Environment, c.cfg.ShortCode)
}

// AccessToken returns a cached token or fetches a new one
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	if c.tokens != nil {
		if token, ok, err := c.tokens.GetToken(ctx, c.tokenKey()); err == nil && ok && token != "" {
			return token, nil
		}
	}

	token, ttl, err := c.fetchToken(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = token
	c.tokenExpiry = c.now().Add(ttl)
	c.mu.Unlock()

	if c.tokens != nil {
		_ = c.tokens.SetToken(ctx, c.tokenKey(), token, ttl)
	}
	return token, nil
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+oauthPath, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("%w: http status %d", ErrAuthFailed, resp.StatusCode)
	}

	var payload struct {
		AccessToken string     `json:"access_token"`
		ExpiresIn   flexString `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if payload.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access token", ErrAuthFailed)
	}

	seconds, _ := strconv.Atoi(string(payload.ExpiresIn))
	if seconds <= 0 {
		seconds = 3599
	}
	ttl := time.Duration(seconds)*time.Second - tokenRefreshMargin
	if ttl <= 0 {
		ttl = time.Duration(seconds) * time.Second
	}
	return payload.AccessToken, ttl, nil
}

// STKPushRequest prompt input
type STKPushRequest struct {
	Phone            string
	Amount           int64
	AccountReference string
	TransactionDesc  string
	CallbackURL      string
}

// STKPushResult accepted prompt
type STKPushResult struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
}

type stkPushResponse struct {
	MerchantRequestID   string     `json:"MerchantRequestID"`
	CheckoutRequestID   string     `json:"CheckoutRequestID"`
	ResponseCode        flexString `json:"ResponseCode"`
	ResponseDescription string     `json:"ResponseDescription"`
	CustomerMessage     string     `json:"CustomerMessage"`
	RequestID           string     `json:"requestId"`
	ErrorCode           string     `json:"errorCode"`
	ErrorMessage        string     `json:"errorMessage"`
}

// STKPush sends a payment prompt to the customer's phone
func (c *Client) STKPush(ctx context.Context, in STKPushRequest) (*STKPushResult, error) {
	msisdn, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	if in.Amount < 1 {
		return nil, ErrAmountInvalid
	}
	if strings.TrimSpace(in.CallbackURL) == "" {
		return nil, fmt.Errorf("%w: callback url is required", ErrConfigInvalid)
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(c.now())
	payload := map[string]interface{}{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          Password(c.cfg.ShortCode, c.cfg.PassKey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   TransactionType(c.cfg.PaymentMode),
		"Amount":            in.Amount,
		"PartyA":            msisdn,
		"PartyB":            PartyB(c.cfg),
		"PhoneNumber":       msisdn,
		"CallBackURL":       in.CallbackURL,
		"AccountReference":  truncate(in.AccountReference, maxAccountReferenceLen),
		"TransactionDesc":   truncate(defaultString(in.TransactionDesc, "Payment"), maxTransactionDescLen),
	}

	body, _, err := c.postJSON(ctx, stkPushPath, token, payload)
	if err != nil {
		return nil, err
	}

	var resp stkPushResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if string(resp.ResponseCode) != "0" {
		return nil, &GatewayError{
			Code:    firstNonEmpty(resp.ErrorCode, string(resp.ResponseCode)),
			Message: firstNonEmpty(resp.CustomerMessage, resp.ErrorMessage, resp.ResponseDescription),
		}
	}
	return &STKPushResult{
		MerchantRequestID:   resp.MerchantRequestID,
		CheckoutRequestID:   resp.CheckoutRequestID,
		ResponseCode:        string(resp.ResponseCode),
		ResponseDescription: resp.ResponseDescription,
		CustomerMessage:     resp.CustomerMessage,
	}, nil
}

// QueryResult STK push status
type QueryResult struct {
	Pending           bool
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
}

// QuerySTKStatus asks Daraja for the outcome of a prompt
func (c *Client) QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	checkoutRequestID = strings.TrimSpace(checkoutRequestID)
	if checkoutRequestID == "" {
		return nil, fmt.Errorf("%w: checkout request id is required", ErrConfigInvalid)
	}
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	timestamp := Timestamp(c.now())
	payload := map[string]interface{}{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          Password(c.cfg.ShortCode, c.cfg.PassKey, timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}
	body, _, err := c.postJSON(ctx, stkQueryPath, token, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ResponseCode      flexString `json:"ResponseCode"`
		MerchantRequestID string     `json:"MerchantRequestID"`
		CheckoutRequestID string     `json:"CheckoutRequestID"`
		ResultCode        flexString `json:"ResultCode"`
		ResultDesc        string     `json:"ResultDesc"`
		ErrorCode         string     `json:"errorCode"`
		ErrorMessage      string     `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.ErrorCode == queryPendingErrorCode {
		return &QueryResult{Pending: true, CheckoutRequestID: checkoutRequestID, ResultDesc: resp.ErrorMessage}, nil
	}
	if resp.ErrorCode != "" {
		return nil, &GatewayError{Code: resp.ErrorCode, Message: resp.ErrorMessage}
	}
	code, err := strconv.Atoi(string(resp.ResultCode))
	if err != nil {
		return nil, fmt.Errorf("%w: result code %q", ErrResponseInvalid, resp.ResultCode)
	}
	return &QueryResult{
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: firstNonEmpty(resp.CheckoutRequestID, checkoutRequestID),
		ResultCode:        code,
		ResultDesc:        resp.ResultDesc,
	}, nil
}

// postJSON returns the body for any status that carries a JSON payload; Daraja reports
// business errors as 4xx/5xx with errorCode/errorMessage.
func (c *Client) postJSON(ctx context.Context, path, token string, payload interface{}) ([]byte, int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode >= 300 && !json.Valid(body) {
		return nil, resp.StatusCode, fmt.Errorf("%w: http status %d", ErrRequestFailed, resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
