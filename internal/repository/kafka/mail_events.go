package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Jobportal/internal/domain/mail"
	"google.golang.org/protobuf/types/known/structpb"
)

type MailEventsKafka struct {
	p *Producer
}

func NewMailEventsKafka(p *Producer) *MailEventsKafka { return &MailEventsKafka{p: p} }

var _ mail.Events = (*MailEventsKafka)(nil)

// PublishMail keys messages by recipient so mails to one address stay ordered.
func (e *MailEventsKafka) PublishMail(ctx context.Context, ev mail.Event) error {
	msg, err := MailEventToStruct(ev)
	if err != nil {
		return err
	}
	return e.p.PublishProto(ctx, []byte(ev.To), msg)
}

func MailEventToStruct(ev mail.Event) (*structpb.Struct, error) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	return structpb.NewStruct(map[string]any{
		"template": string(ev.Template),
		"to":       ev.To,
		"code":     ev.Code,
		"at":       ev.At.UTC().Format(time.RFC3339Nano),
	})
}

func MailEventFromStruct(s *structpb.Struct) (mail.Event, error) {
	f := s.GetFields()
	ev := mail.Event{
		Template: mail.Template(f["template"].GetStringValue()),
		To:       f["to"].GetStringValue(),
		Code:     f["code"].GetStringValue(),
	}
	if !ev.Template.Valid() {
		return mail.Event{}, fmt.Errorf("mail event: unknown template %q", ev.Template)
	}
	if ev.To == "" {
		return mail.Event{}, errors.New("mail event: empty recipient")
	}
	if at := f["at"].GetStringValue(); at != "" {
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return mail.Event{}, fmt.Errorf("mail event: bad timestamp: %w", err)
		}
		ev.At = t
	}
	return ev, nil
}
