package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Jobportal/internal/domain/mail"
	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/NordCoder/Jobportal/internal/obs/retry"
	"go.uber.org/zap"
)

type Templates struct {
	ProductName string
	SignupTTL   time.Duration
	ResetTTL    time.Duration
}

func (t Templates) Render(ev mail.Event) (subject, body string, err error) {
	product := t.ProductName
	if product == "" {
		product = "Jobportal"
	}
	switch ev.Template {
	case mail.TemplateSignupOTP:
		subject = "Your verification code"
		body = fmt.Sprintf(
			"Hello!\n\nYour %s verification code is %s.\nIt expires in %s.\n\nIf you did not request it, ignore this email.\n\n%s",
			product, ev.Code, minutes(t.SignupTTL), product,
		)
	case mail.TemplatePasswordResetOTP:
		subject = "Password reset code"
		body = fmt.Sprintf(
			"Hello!\n\nUse %s to reset your %s password.\nThe code expires in %s.\n\nIf you did not ask for a reset, your password stays unchanged.\n\n%s",
			ev.Code, product, minutes(t.ResetTTL), product,
		)
	case mail.TemplatePasswordChanged:
		subject = "Your password was changed"
		body = fmt.Sprintf(
			"Hello!\n\nThe password of your %s account was changed at %s and every session was signed out.\n\nIf this was not you, reset your password now.\n\n%s",
			product, ev.At.UTC().Format(time.RFC1123), product,
		)
	default:
		return "", "", fmt.Errorf("unknown template %q", ev.Template)
	}
	return subject, body, nil
}

func minutes(d time.Duration) string {
	if d <= 0 {
		return "a few minutes"
	}
	m := int(d.Round(time.Minute).Minutes())
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

type Handler struct {
	Out        mail.Sender
	Deliveries mail.DeliveryLog
	Clock      mail.Clock
	Templates  Templates
	Policy     retry.Policy
	Log        *zap.Logger
}

func (h *Handler) HandleMail(ctx context.Context, ev mail.Event) error {
	subject, body, err := h.Templates.Render(ev)
	if err != nil {
		return retry.Permanent(err)
	}

	err = retry.Do(ctx, h.Policy, func(ctx context.Context) error { return h.Out.Send(ctx, ev.To, subject, body) })
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	if h.Deliveries != nil {
		d := &mail.Delivery{Template: ev.Template, To: ev.To, SentAt: h.Clock.Now().UTC()}
		if err := h.Deliveries.Record(ctx, d); err != nil && h.Log != nil {
			obs.WithTrace(ctx, h.Log).Warn("record delivery", obs.Email("to", ev.To), zap.Error(err))
		}
	}
	return nil
}
