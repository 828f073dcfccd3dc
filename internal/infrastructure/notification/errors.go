package notification

import "errors"

var (
	// ErrChannelUnavailable means the provider could not be reached after retries
	ErrChannelUnavailable = errors.New("notification: channel unavailable")
	// ErrDeliveryRejected means the provider refused the message
	ErrDeliveryRejected = errors.New("notification: delivery rejected")
	// ErrMissingMessageID means the provider accepted the request but returned no id
	ErrMissingMessageID = errors.New("notification: provider returned no message id")
)
