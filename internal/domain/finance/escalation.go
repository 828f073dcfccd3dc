package finance

import "time"

// EscalationLevel is the tone of a payment reminder
type EscalationLevel string

const (
	EscalationFriendly EscalationLevel = "FRIENDLY"
	EscalationFirm     EscalationLevel = "FIRM"
	EscalationFinal    EscalationLevel = "FINAL"
)

// IsValid checks if the level is known
func (l EscalationLevel) IsValid() bool {
	switch l {
	case EscalationFriendly, EscalationFirm, EscalationFinal:
		return true
	}
	return false
}

// String returns the string representation of EscalationLevel
func (l EscalationLevel) String() string {
	return string(l)
}

const (
	// FriendlyMaxDays is the last day overdue that gets a friendly reminder
	FriendlyMaxDays = 7
	// FirmMaxDays is the last day overdue that gets a firm reminder; later is final
	FirmMaxDays = 14

	// ReminderSuppressionWindow blocks a new reminder while a sent one is this recent
	ReminderSuppressionWindow = 3 * 24 * time.Hour
)

// EscalationLevelForDays returns the reminder tone for an invoice overdue by days.
// ok is false for invoices that are not overdue.
func EscalationLevelForDays(days int) (level EscalationLevel, ok bool) {
	switch {
	case days <= 0:
		return "", false
	case days <= FriendlyMaxDays:
		return EscalationFriendly, true
	case days <= FirmMaxDays:
		return EscalationFirm, true
	default:
		return EscalationFinal, true
	}
}

// SuppressedBy reports whether a reminder sent at lastSent still blocks a new one at now
func SuppressedBy(lastSent, now time.Time) bool {
	return now.Sub(lastSent) < ReminderSuppressionWindow
}
