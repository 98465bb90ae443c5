package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/NordCoder/Jobportal/internal/domain/mail"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestMailEventStructSurvivesWire(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	in := mail.Event{Template: mail.TemplateSignupOTP, To: "a@b.io", Code: "012345", At: at}

	s, err := MailEventToStruct(in)
	require.NoError(t, err)
	raw, err := proto.Marshal(s)
	require.NoError(t, err)

	h := ProtoHandler(func() *structpb.Struct { return &structpb.Struct{} },
		func(_ context.Context, key []byte, m *structpb.Struct) error {
			out, err := MailEventFromStruct(m)
			require.NoError(t, err)
			assert.Equal(t, in, out)
			assert.Equal(t, "a@b.io", string(key))
			return nil
		})
	require.NoError(t, h(context.Background(), []byte("a@b.io"), raw))
}

func TestMailEventFromStructRejectsGarbage(t *testing.T) {
	s, _ := structpb.NewStruct(map[string]any{"template": "nope", "to": "a@b.io"})
	_, err := MailEventFromStruct(s)
	assert.Error(t, err)

	s, _ = structpb.NewStruct(map[string]any{"template": string(mail.TemplatePasswordChanged)})
	_, err = MailEventFromStruct(s)
	assert.Error(t, err)
}

func TestProtoHandlerFlagsUndecodableValues(t *testing.T) {
	called := false
	h := ProtoHandler(func() *structpb.Struct { return &structpb.Struct{} },
		func(context.Context, []byte, *structpb.Struct) error { called = true; return nil })

	err := h(context.Background(), nil, []byte{0xff, 0x01})
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "google.protobuf.Struct")
	assert.False(t, called)
}

func TestHeaderCarrierRoundTrip(t *testing.T) {
	hdrs := []kafka.Header{{Key: HeaderMessageType, Value: []byte("google.protobuf.Struct")}}
	c := headerCarrier{hs: &hdrs}

	c.Set("traceparent", "00-abc-def-01")
	c.Set("traceparent", "00-abc-fed-01")
	require.Len(t, hdrs, 2)
	assert.Equal(t, "00-abc-fed-01", c.Get("traceparent"))
	assert.Equal(t, "google.protobuf.Struct", c.Get(HeaderMessageType))
	assert.Empty(t, c.Get("baggage"))
	assert.ElementsMatch(t, []string{HeaderMessageType, "traceparent"}, c.Keys())
}
