package outbox

import (
	"context"
	"strconv"
	"time"
)

type Status string

// Kind selects the handler for a row. Values are persisted; never renumber.
type Kind int

const (
	KindSignupOTPMail        Kind = 1
	KindPasswordResetOTPMail Kind = 2
	KindPasswordChangedMail  Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindSignupOTPMail:
		return "signup_otp_mail"
	case KindPasswordResetOTPMail:
		return "password_reset_otp_mail"
	case KindPasswordChangedMail:
		return "password_changed_mail"
	}
	return "kind_" + strconv.Itoa(int(k))
}

// A row moves CREATED -> IN_PROGRESS -> SUCCESS. Rows that can never be
// delivered, or that ran out of attempts, park in FAILED.
const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

type MailPayload struct {
	To   string `json:"to"`
	Code string `json:"code,omitempty"`
}

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	Attempts       int
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

// TraceHeaders returns the W3C headers captured when the row was enqueued.
func (m Message) TraceHeaders() map[string]string {
	h := make(map[string]string, 3)
	if m.Traceparent != "" {
		h["traceparent"] = m.Traceparent
	}
	if m.Tracestate != "" {
		h["tracestate"] = m.Tracestate
	}
	if m.Baggage != "" {
		h["baggage"] = m.Baggage
	}
	return h
}

type Repository interface {
	// Enqueue is a no-op when key already exists.
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error

	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error

	// MarkFailed counts a failed attempt. With dead set the row moves to
	// FAILED and is never picked again.
	MarkFailed(ctx context.Context, key, reason string, dead bool) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
