package mail

import (
	"context"
	"time"
)

type Template string

const (
	TemplateSignupOTP        Template = "signup_otp"
	TemplatePasswordResetOTP Template = "password_reset_otp"
	TemplatePasswordChanged  Template = "password_changed"
)

func (t Template) Valid() bool {
	switch t {
	case TemplateSignupOTP, TemplatePasswordResetOTP, TemplatePasswordChanged:
		return true
	}
	return false
}

type Event struct {
	Template Template
	To       string
	Code     string
	At       time.Time
}

type Events interface {
	PublishMail(ctx context.Context, ev Event) error
}

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Delivery is the audit row written after a mail left the notifier. The code
// itself is never recorded.
type Delivery struct {
	ID       int64
	Template Template
	To       string
	SentAt   time.Time
}

type DeliveryLog interface {
	Record(ctx context.Context, d *Delivery) error
	ListByRecipient(ctx context.Context, to string, limit int) ([]*Delivery, error)
}

type Clock interface {
	Now() time.Time
}
