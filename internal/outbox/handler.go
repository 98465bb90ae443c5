package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Jobportal/internal/domain/mail"
	"github.com/NordCoder/Jobportal/internal/domain/outbox"
	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/NordCoder/Jobportal/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

var mailTemplates = map[outbox.Kind]mail.Template{
	outbox.KindSignupOTPMail:        mail.TemplateSignupOTP,
	outbox.KindPasswordResetOTPMail: mail.TemplatePasswordResetOTP,
	outbox.KindPasswordChangedMail:  mail.TemplatePasswordChanged,
}

func instrument(kind string, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle", trace.WithAttributes(attribute.String("outbox.kind", kind)))
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, pol, func(ctx context.Context) error { return h(ctx, data) })
		outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			outboxHandlerErrors.WithLabelValues(kind).Inc()
		}
		return obs.FailSpan(span, err)
	}
}

func mailHandler(pub mail.Events, tpl mail.Template, now func() time.Time) outbox.KindHandler {
	return func(ctx context.Context, data []byte) error {
		var p outbox.MailPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return retry.Permanent(fmt.Errorf("unmarshal mail payload: %w", err))
		}
		if p.To == "" {
			return retry.Permanent(errors.New("mail payload without recipient"))
		}
		return pub.PublishMail(ctx, mail.Event{Template: tpl, To: p.To, Code: p.Code, At: now()})
	}
}

// MakeGlobalOutboxHandler routes every mail kind to the broker publisher.
func MakeGlobalOutboxHandler(pub mail.Events, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		tpl, ok := mailTemplates[kind]
		if !ok {
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
		return instrument(string(tpl), mailHandler(pub, tpl, time.Now), pol), nil
	}
}
