package notifier

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	config "github.com/NordCoder/Jobportal/internal/config/email-notifier"
	"github.com/NordCoder/Jobportal/internal/domain/mail"
	"github.com/NordCoder/Jobportal/internal/obs"
	"go.uber.org/zap"
)

var _ mail.Sender = (*Mailer)(nil)

type Mailer struct {
	addr       string
	auth       smtp.Auth
	useTLS     bool
	timeout    time.Duration
	from       string
	subjPrefix string

	log *zap.Logger
}

func NewMailer(cfg config.SMTP) *Mailer {
	var auth smtp.Auth
	if cfg.User != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, host(cfg.Addr))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Mailer{
		addr:       cfg.Addr,
		auth:       auth,
		useTLS:     cfg.UseTLS,
		timeout:    timeout,
		from:       cfg.From,
		subjPrefix: cfg.SubjPrefix,
		log:        obs.Component(zap.L(), "email-notifier.mailer"),
	}
}

func (m *Mailer) WithLogger(l *zap.Logger) *Mailer {
	if l == nil {
		return m
	}
	cp := *m
	cp.log = obs.Component(l, "email-notifier.mailer")
	return &cp
}

func (m *Mailer) message(to, subject, body string) []byte {
	subj := strings.TrimSpace(m.subjPrefix + " " + subject)
	return []byte(
		"From: " + m.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subj + "\r\n" +
			"Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"\r\n" + body + "\r\n")
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return errors.New("smtp: header injection in recipient or subject")
	}
	msg := m.message(to, subject, body)

	start := time.Now()
	log := m.log.With(
		zap.String("smtp_addr", m.addr),
		zap.Bool("tls", m.useTLS),
		obs.Email("to", to),
	)

	dctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var conn net.Conn
	var err error
	if m.useTLS {
		d := tls.Dialer{Config: &tls.Config{ServerName: host(m.addr), MinVersion: tls.VersionTLS12}}
		conn, err = d.DialContext(dctx, "tcp", m.addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(dctx, "tcp", m.addr)
	}
	if err != nil {
		log.Error("smtp dial failed", zap.Error(err))
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := dctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, host(m.addr))
	if err != nil {
		_ = conn.Close()
		log.Error("smtp client failed", zap.Error(err))
		return fmt.Errorf("smtp client: %w", err)
	}
	defer func() { _ = c.Close() }()

	if !m.useTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: host(m.addr), MinVersion: tls.VersionTLS12}); err != nil {
				log.Error("smtp STARTTLS failed", zap.Error(err))
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if m.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(m.auth); err != nil {
				log.Error("smtp auth failed", zap.Error(err))
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := c.Mail(m.from); err != nil {
		log.Error("smtp MAIL FROM failed", zap.Error(err))
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		log.Error("smtp RCPT TO failed", zap.Error(err))
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		log.Error("smtp DATA failed", zap.Error(err))
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		log.Error("smtp write failed", zap.Error(err))
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		log.Error("smtp close failed", zap.Error(err))
		return fmt.Errorf("smtp close: %w", err)
	}
	if err := c.Quit(); err != nil {
		log.Debug("smtp quit", zap.Error(err))
	}
	log.Info("email sent", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func host(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	return addr
}
