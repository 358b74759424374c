package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukani-next/internal/phone"
)

var (
	ErrNotConfigured   = errors.New("sms provider not configured")
	ErrMessageEmpty    = errors.New("sms message is empty")
	ErrRequestFailed   = errors.New("sms request failed")
	ErrResponseInvalid = errors.New("sms response invalid")
	ErrRejected        = errors.New("sms rejected by provider")
)

const (
	ProviderAfricasTalking = "africastalking"

	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	SandboxBaseURL    = "https://api.sandbox.africastalking.com"
	ProductionBaseURL = "https://api.africastalking.com"

	messagingPath = "/version1/messaging"
)

// Recipient status codes that mean the message was accepted
var acceptedStatusCodes = map[int]struct{}{
	100: {}, // Processed
	101: {}, // Sent
	102: {}, // Queued
}

// Config Africa's Talking credentials
type Config struct {
	Provider    string `json:"provider"`
	Username    string `json:"username"`
	APIKey      string `json:"api_key"`
	SenderID    string `json:"sender_id"`
	Environment string `json:"environment"`
	BaseURL     string `json:"base_url,omitempty"`
}

// Normalize trims fields and fills defaults
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Username = strings.TrimSpace(c.Username)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.SenderID = strings.TrimSpace(c.SenderID)
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment != EnvSandbox {
		c.Environment = EnvProduction
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
}

// Configured reports whether real delivery is possible
func (c *Config) Configured() bool {
	return c != nil && c.Provider == ProviderAfricasTalking && c.Username != "" && c.APIKey != ""
}

// ResolveBaseURL picks the API host
func ResolveBaseURL(cfg *Config) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	if cfg.Environment == EnvSandbox {
		return SandboxBaseURL
	}
	return ProductionBaseURL
}

// Message outbound SMS
type Message struct {
	To   string
	Body string
}

// Result provider outcome for the first recipient
type Result struct {
	MessageID  string
	Number     string
	Status     string
	StatusCode int
	Cost       string
}

// Client Africa's Talking messaging client
type Client struct {
	cfg        *Config
	httpClient *http.Client
}

// NewClient builds a client; cfg must be Configured
func NewClient(cfg *Config, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{cfg: cfg, httpClient: hc}
}

type sendResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			StatusCode int    `json:"statusCode"`
			Number     string `json:"number"`
			Status     string `json:"status"`
			Cost       string `json:"cost"`
			MessageID  string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// Send posts one message
func (c *Client) Send(ctx context.Context, msg Message) (*Result, error) {
	if !c.cfg.Configured() {
		return nil, ErrNotConfigured
	}
	body := strings.TrimSpace(msg.Body)
	if body == "" {
		return nil, ErrMessageEmpty
	}
	to, err := phone.E164(msg.To)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("to", to)
	form.Set("message", body)
	if c.cfg.SenderID != "" {
		form.Set("from", c.cfg.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ResolveBaseURL(c.cfg)+messagingPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("apiKey", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %d: %s", ErrRequestFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return ParseSendResponse(raw)
}

// ParseSendResponse reads the first recipient's status
func ParseSendResponse(raw []byte) (*Result, error) {
	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if len(parsed.SMSMessageData.Recipients) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRejected, parsed.SMSMessageData.Message)
	}
	first := parsed.SMSMessageData.Recipients[0]
	result := &Result{
		MessageID:  first.MessageID,
		Number:     first.Number,
		Status:     first.Status,
		StatusCode: first.StatusCode,
		Cost:       first.Cost,
	}
	if _, ok := acceptedStatusCodes[first.StatusCode]; !ok {
		return result, fmt.Errorf("%w: %s (%d)", ErrRejected, first.Status, first.StatusCode)
	}
	return result, nil
}
