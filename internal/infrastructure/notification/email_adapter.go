package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const emailSendPath = "/v1/messages"

// EmailConfig contains the settings of the transactional email provider
type EmailConfig struct {
	// BaseURL is the provider API root, e.g. https://api.mail.example.com
	BaseURL string
	// APIKey is sent as a bearer token
	APIKey string
	// From is the sender address
	From string
	// Timeout bounds a single HTTP attempt
	Timeout time.Duration
	// MaxRetries bounds retries of transient failures
	MaxRetries int
}

// Errors for configuration validation
var (
	ErrEmailMissingBaseURL = errors.New("email: missing base URL")
	ErrEmailMissingAPIKey  = errors.New("email: missing API key")
	ErrEmailMissingFrom    = errors.New("email: missing sender address")
)

// Validate validates the configuration
func (c *EmailConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrEmailMissingBaseURL
	}
	if c.APIKey == "" {
		return ErrEmailMissingAPIKey
	}
	if c.From == "" {
		return ErrEmailMissingFrom
	}
	return nil
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type emailResponse struct {
	ID string `json:"id"`
}

// EmailAdapter sends reminder emails through an HTTP email API
type EmailAdapter struct {
	config *EmailConfig
	client *retryablehttp.Client
	logger *zap.Logger
}

// NewEmailAdapter creates a new email adapter
func NewEmailAdapter(config *EmailConfig, logger *zap.Logger) (*EmailAdapter, error) {
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
	return &EmailAdapter{
		config: config,
		client: newRetryableClient(timeout, config.MaxRetries, logger),
		logger: logger,
	}, nil
}

// SendEmail delivers one plain-text email and returns the provider message id
func (a *EmailAdapter) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("%w: recipient is empty", ErrDeliveryRejected)
	}

	var resp emailResponse
	err := postJSON(ctx, a.client, strings.TrimRight(a.config.BaseURL, "/")+emailSendPath,
		map[string]string{"Authorization": "Bearer " + a.config.APIKey},
		emailRequest{From: a.config.From, To: []string{to}, Subject: subject, Text: body},
		&resp,
	)
	if err != nil {
		return "", fmt.Errorf("email: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("email: %w", ErrMissingMessageID)
	}

	a.logger.Debug("Reminder email accepted", zap.String("message_id", resp.ID))
	return resp.ID, nil
}
