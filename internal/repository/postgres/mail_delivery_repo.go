package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Jobportal/internal/domain/mail"
)

var _ mail.DeliveryLog = (*MailDeliveryRepo)(nil)

type MailDeliveryRepo struct{ db *DB }

func NewMailDeliveryRepo(db *DB) *MailDeliveryRepo { return &MailDeliveryRepo{db: db} }

const (
	qDeliveryInsert = `
INSERT INTO mail_deliveries (template, recipient, sent_at)
VALUES ($1, $2, COALESCE($3, now()))
RETURNING id, sent_at;
`
	qDeliveryByRecipient = `
SELECT id, template, recipient, sent_at
FROM mail_deliveries
WHERE recipient = $1
ORDER BY sent_at DESC
LIMIT $2;
`
)

func (r *MailDeliveryRepo) Record(ctx context.Context, d *mail.Delivery) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.Pool.QueryRow(ctx, qDeliveryInsert,
		string(d.Template),
		d.To,
		nullTime(d.SentAt),
	).Scan(&d.ID, &d.SentAt); err != nil {
		return fmt.Errorf("insert mail delivery: %w", err)
	}
	return nil
}

func (r *MailDeliveryRepo) ListByRecipient(ctx context.Context, to string, limit int) ([]*mail.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qDeliveryByRecipient, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query mail deliveries: %w", err)
	}
	defer rows.Close()

	out := make([]*mail.Delivery, 0, limit)
	for rows.Next() {
		var d mail.Delivery
		var tpl string
		if err := rows.Scan(&d.ID, &tpl, &d.To, &d.SentAt); err != nil {
			return nil, fmt.Errorf("scan mail delivery: %w", err)
		}
		d.Template = mail.Template(tpl)
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
