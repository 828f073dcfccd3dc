package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const whatsAppDefaultBaseURL = "https://graph.facebook.com/v19.0"

// WhatsAppConfig contains the WhatsApp Business Cloud API settings
type WhatsAppConfig struct {
	// BaseURL is the Graph API root including version
	BaseURL string
	// AccessToken is the system user token
	AccessToken string
	// PhoneNumberID identifies the sending business number
	PhoneNumberID string
	// RatePerSecond caps outgoing messages; zero means unlimited
	RatePerSecond float64
	// Burst is the token bucket size
	Burst int
	// Timeout bounds a single HTTP attempt
	Timeout time.Duration
	// MaxRetries bounds retries of transient failures
	MaxRetries int
}

// Errors for configuration validation
var (
	ErrWhatsAppMissingToken         = errors.New("whatsapp: missing access token")
	ErrWhatsAppMissingPhoneNumberID = errors.New("whatsapp: missing phone number ID")
)

// Validate validates the configuration
func (c *WhatsAppConfig) Validate() error {
	if c.AccessToken == "" {
		return ErrWhatsAppMissingToken
	}
	if c.PhoneNumberID == "" {
		return ErrWhatsAppMissingPhoneNumberID
	}
	return nil
}

type whatsAppText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type whatsAppRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// WhatsAppAdapter sends reminder messages through the WhatsApp Cloud API
type WhatsAppAdapter struct {
	config  *WhatsAppConfig
	client  *retryablehttp.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewWhatsAppAdapter creates a new WhatsApp adapter
func NewWhatsAppAdapter(config *WhatsAppConfig, logger *zap.Logger) (*WhatsAppAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if config.RatePerSecond > 0 {
		limit = rate.Limit(config.RatePerSecond)
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	return &WhatsAppAdapter{
		config:  config,
		client:  newRetryableClient(timeout, config.MaxRetries, logger),
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

// SendMessage delivers one text message and returns the WhatsApp message id
func (a *WhatsAppAdapter) SendMessage(ctx context.Context, phone, body string) (string, error) {
	to := normalizePhone(phone)
	if to == "" {
		return "", fmt.Errorf("whatsapp: %w: recipient is empty", ErrDeliveryRejected)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("whatsapp: rate limiter: %w", err)
	}

	baseURL := a.config.BaseURL
	if baseURL == "" {
		baseURL = whatsAppDefaultBaseURL
	}
	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(baseURL, "/"), a.config.PhoneNumberID)

	var resp whatsAppResponse
	err := postJSON(ctx, a.client, url,
		map[string]string{"Authorization": "Bearer " + a.config.AccessToken},
		whatsAppRequest{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               to,
			Type:             "text",
			Text:             whatsAppText{Body: body},
		},
		&resp,
	)
	if err != nil {
		return "", fmt.Errorf("whatsapp: %w", err)
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return "", fmt.Errorf("whatsapp: %w", ErrMissingMessageID)
	}

	a.logger.Debug("Reminder WhatsApp message accepted", zap.String("message_id", resp.Messages[0].ID))
	return resp.Messages[0].ID, nil
}

// normalizePhone keeps digits only; the Cloud API expects E.164 without the plus
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
