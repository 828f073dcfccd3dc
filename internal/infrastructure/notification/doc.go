// Package notification delivers payment reminders to parents.
//
// It provides the email and WhatsApp channel adapters used by the reminder service
// and the text templates that word each escalation level. Both adapters retry
// transient HTTP failures (connection errors, 429 and 5xx) a bounded number of times;
// the WhatsApp adapter additionally paces sends with a token bucket.
package notification
