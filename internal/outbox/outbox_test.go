package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/Jobportal/internal/domain/mail"
	"github.com/NordCoder/Jobportal/internal/domain/outbox"
	"github.com/NordCoder/Jobportal/internal/obs/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failure struct {
	key  string
	dead bool
}

type fakeRepo struct {
	mu      sync.Mutex
	pending []outbox.Message
	done    []string
	failed  []failure
}

func (f *fakeRepo) Enqueue(_ context.Context, key string, kind outbox.Kind, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, outbox.Message{IdempotencyKey: key, Kind: kind, Data: data})
	return nil
}

func (f *fakeRepo) PickBatch(_ context.Context, batch int, _ time.Duration) ([]outbox.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if batch > len(f.pending) {
		batch = len(f.pending)
	}
	out := f.pending[:batch]
	f.pending = f.pending[batch:]
	return out, nil
}

func (f *fakeRepo) MarkSuccess(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done = append(f.done, keys...)
	return nil
}

func (f *fakeRepo) MarkFailed(_ context.Context, key, _ string, dead bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, failure{key: key, dead: dead})
	return nil
}

func (f *fakeRepo) failures() []failure {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]failure(nil), f.failed...)
}

func (f *fakeRepo) doneKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.done...)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []mail.Event
	err    error
}

func (r *recordingEvents) PublishMail(_ context.Context, ev mail.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func noRetry() retry.Policy { return retry.Policy{Name: "test_outbox", Attempts: 1} }

func payload(t *testing.T, to, code string) []byte {
	b, err := json.Marshal(outbox.MailPayload{To: to, Code: code})
	require.NoError(t, err)
	return b
}

func TestGlobalHandlerRoutesMailKinds(t *testing.T) {
	ev := &recordingEvents{}
	h := MakeGlobalOutboxHandler(ev, noRetry())

	for kind, tpl := range mailTemplates {
		kh, err := h(kind)
		require.NoError(t, err)
		require.NoError(t, kh(context.Background(), payload(t, "x@y.io", "123456")))
		last := ev.events[len(ev.events)-1]
		assert.Equal(t, tpl, last.Template)
		assert.Equal(t, "x@y.io", last.To)
		assert.False(t, last.At.IsZero())
	}

	_, err := h(outbox.Kind(99))
	assert.Error(t, err)
}

func TestGlobalHandlerBadPayloadIsPermanent(t *testing.T) {
	h := MakeGlobalOutboxHandler(&recordingEvents{}, retry.Policy{Attempts: 5})
	kh, err := h(outbox.KindSignupOTPMail)
	require.NoError(t, err)

	err = kh(context.Background(), []byte("{"))
	assert.True(t, retry.IsPermanent(err))
}

func TestRunnerMarksOnlyDeliveredRows(t *testing.T) {
	repo := &fakeRepo{}
	ctx := context.Background()
	require.NoError(t, repo.Enqueue(ctx, "ok-1", outbox.KindSignupOTPMail, payload(t, "a@b.io", "111111")))
	require.NoError(t, repo.Enqueue(ctx, "bad-1", outbox.Kind(42), nil))
	require.NoError(t, repo.Enqueue(ctx, "ok-2", outbox.KindPasswordResetOTPMail, payload(t, "c@d.io", "222222")))

	ev := &recordingEvents{}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(ev, noRetry()),
		Config{Workers: 1, BatchSize: 10, WaitTime: 5 * time.Millisecond})

	runCtx, cancel := context.WithCancel(ctx)
	r.Start(runCtx)
	require.Eventually(t, func() bool { return len(repo.doneKeys()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	r.Wait()

	assert.ElementsMatch(t, []string{"ok-1", "ok-2"}, repo.doneKeys())
	assert.Len(t, ev.events, 2)
}

func TestRunnerLeavesFailedPublishUnmarked(t *testing.T) {
	repo := &fakeRepo{}
	ctx := context.Background()
	require.NoError(t, repo.Enqueue(ctx, "k", outbox.KindSignupOTPMail, payload(t, "a@b.io", "111111")))

	ev := &recordingEvents{err: errors.New("broker down")}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(ev, noRetry()),
		Config{Workers: 1, BatchSize: 10, WaitTime: time.Millisecond})

	r.tick(ctx)
	assert.Empty(t, repo.doneKeys())
	assert.Equal(t, []failure{{key: "k", dead: false}}, repo.failures())
}

func TestRunnerParksUndeliverableRows(t *testing.T) {
	repo := &fakeRepo{}
	ctx := context.Background()
	require.NoError(t, repo.Enqueue(ctx, "unknown-kind", outbox.Kind(42), nil))
	require.NoError(t, repo.Enqueue(ctx, "no-recipient", outbox.KindSignupOTPMail, payload(t, "", "111111")))
	repo.pending = append(repo.pending, outbox.Message{
		IdempotencyKey: "worn-out", Kind: outbox.KindPasswordChangedMail, Data: payload(t, "a@b.io", ""), Attempts: 2,
	})

	ev := &recordingEvents{err: errors.New("broker down")}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(ev, noRetry()),
		Config{BatchSize: 10, MaxAttempts: 3})

	r.tick(ctx)
	assert.ElementsMatch(t, []failure{
		{key: "unknown-kind", dead: true},
		{key: "no-recipient", dead: true},
		{key: "worn-out", dead: true},
	}, repo.failures())
}

func TestKindNamesAndTraceHeaders(t *testing.T) {
	assert.Equal(t, "signup_otp_mail", outbox.KindSignupOTPMail.String())
	assert.Equal(t, "kind_42", outbox.Kind(42).String())

	m := outbox.Message{Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}
	assert.Equal(t, map[string]string{"traceparent": m.Traceparent}, m.TraceHeaders())
}
