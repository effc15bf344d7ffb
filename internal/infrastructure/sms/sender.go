package sms

import (
	"context"
	"log/slog"
)

type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// LogSender writes messages to the log instead of an SMS provider.
type LogSender struct {
	// ShowBody includes the message text, which carries OTP codes. Only
	// enable it outside production.
	ShowBody bool
}

func (s LogSender) Send(_ context.Context, phone, message string) error {
	attrs := []any{"phone", Mask(phone)}
	if s.ShowBody {
		attrs = append(attrs, "message", message)
	}
	slog.Info("sms sent", attrs...)
	return nil
}

// Mask hides all but the last four digits of a phone number.
func Mask(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i < len(phone)-4 {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
