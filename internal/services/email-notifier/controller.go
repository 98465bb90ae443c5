package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/Jobportal/internal/domain/mail"
	"github.com/NordCoder/Jobportal/internal/obs"
	kafkax "github.com/NordCoder/Jobportal/internal/repository/kafka"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	mConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "email_notifier_messages_consumed_total",
		Help: "Mail events consumed.",
	}, []string{"template"})
	mSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "email_notifier_emails_sent_total",
		Help: "Emails sent.",
	}, []string{"template"})
	mErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "email_notifier_errors_total",
		Help: "Errors.",
	})
)

type MailHandler interface {
	HandleMail(ctx context.Context, ev mail.Event) error
}

type Controller struct {
	Log *zap.Logger
	Sub *kafkax.Consumer
	UC  MailHandler
}

func (c *Controller) Run(ctx context.Context) error {
	err := c.Sub.Consume(ctx, c.Handler())
	if err != nil && !errors.Is(err, context.Canceled) {
		mErrors.Inc()
		c.Log.Warn("kafka consume", zap.Error(err))
		return err
	}
	return ctx.Err()
}

// Handler decodes mail events. Undecodable or invalid events are reported as
// kafkax.ErrMalformed so the consumer skips them.
func (c *Controller) Handler() kafkax.Handler {
	return kafkax.ProtoHandler(
		func() *structpb.Struct { return &structpb.Struct{} },
		func(ctx context.Context, _ []byte, msg *structpb.Struct) error {
			ev, err := kafkax.MailEventFromStruct(msg)
			if err != nil {
				mErrors.Inc()
				obs.WithTrace(ctx, c.Log).Warn("mail event: invalid", zap.Error(err))
				return fmt.Errorf("%w: %v", kafkax.ErrMalformed, err)
			}
			mConsumed.WithLabelValues(string(ev.Template)).Inc()

			if err := c.UC.HandleMail(ctx, ev); err != nil {
				mErrors.Inc()
				return err
			}
			mSent.WithLabelValues(string(ev.Template)).Inc()
			return nil
		},
	)
}
