package main

import (
	"time"

	config "github.com/NordCoder/Jobportal/internal/config/email-notifier"
	"github.com/NordCoder/Jobportal/internal/obs/retry"
	"github.com/NordCoder/Jobportal/internal/repository/kafka"
	pg "github.com/NordCoder/Jobportal/internal/repository/postgres"
	notifier "github.com/NordCoder/Jobportal/internal/services/email-notifier"
	"go.uber.org/zap"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// wiring builds the mail pipeline. db may be nil when delivery recording is off.
func wiring(cfg *config.Config, db *pg.DB, cons *kafka.Consumer, l *zap.Logger) *notifier.Controller {
	pol := retry.DefaultMailPolicy(l)
	if cfg.Mail.SendAttempts > 0 {
		pol.Attempts = cfg.Mail.SendAttempts
	}

	h := &notifier.Handler{
		Out:   notifier.NewMailer(cfg.SMTP).WithLogger(l),
		Clock: systemClock{},
		Templates: notifier.Templates{
			ProductName: cfg.Mail.ProductName,
			SignupTTL:   cfg.Mail.SignupTTL,
			ResetTTL:    cfg.Mail.ResetTTL,
		},
		Policy: pol,
		Log:    l,
	}
	if db != nil {
		h.Deliveries = pg.NewMailDeliveryRepo(db)
	}
	return &notifier.Controller{Log: l, Sub: cons, UC: h}
}
