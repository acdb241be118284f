// Package entity defines domain types shared across the application.

package entity

// Log topics tag records forwarded to operators,
// e.g. slog.String("tg_topic", entity.TopicPayment).
const (
	TopicPayment  = "payment"
	TopicSecurity = "security"
)
