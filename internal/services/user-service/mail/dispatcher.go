package mail

import (
	"context"
	"encoding/json"
	"fmt"

	domainauth "github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/NordCoder/Jobportal/internal/domain/outbox"
	"github.com/google/uuid"
)

var _ domainauth.EmailDispatcher = (*OutboxDispatcher)(nil)

// OutboxDispatcher writes mails to the outbox; the outbox runner publishes
// them to the broker. Inside a transaction the row commits with it.
type OutboxDispatcher struct {
	repo outbox.Repository
	key  func() string
}

func NewOutboxDispatcher(repo outbox.Repository) *OutboxDispatcher {
	return &OutboxDispatcher{repo: repo, key: uuid.NewString}
}

func (d *OutboxDispatcher) SendOTP(ctx context.Context, email, code string) error {
	return d.enqueue(ctx, outbox.KindSignupOTPMail, outbox.MailPayload{To: email, Code: code})
}

func (d *OutboxDispatcher) SendPasswordResetOTP(ctx context.Context, email, code string) error {
	return d.enqueue(ctx, outbox.KindPasswordResetOTPMail, outbox.MailPayload{To: email, Code: code})
}

func (d *OutboxDispatcher) SendPasswordChanged(ctx context.Context, email string) error {
	return d.enqueue(ctx, outbox.KindPasswordChangedMail, outbox.MailPayload{To: email})
}

func (d *OutboxDispatcher) enqueue(ctx context.Context, kind outbox.Kind, p outbox.MailPayload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return domainauth.Infra(domainauth.ErrDispatchFailed, fmt.Errorf("marshal mail payload: %w", err))
	}
	if err := d.repo.Enqueue(ctx, d.key(), kind, data); err != nil {
		return domainauth.Infra(domainauth.ErrDispatchFailed, err)
	}
	return nil
}
