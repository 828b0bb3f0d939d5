package notifyserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/taskflow/internal/toolerr"
	"github.com/ShayCichocki/taskflow/pkg/models"
)

var testNow = time.Date(2025, 10, 14, 9, 30, 0, 0, time.UTC)

// fakeProvider records every message it is asked to deliver.
type fakeProvider struct {
	mu        sync.Mutex
	sent      []sentMessage
	sendErr   error
	verifyErr error
	messageID string
}

type sentMessage struct {
	cfg models.NotificationConfig
	msg Message
}

func (f *fakeProvider) Send(_ context.Context, cfg models.NotificationConfig, msg Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, sentMessage{cfg, msg})
	return f.messageID, nil
}

func (f *fakeProvider) Verify(context.Context, string, string) error {
	return f.verifyErr
}

func (f *fakeProvider) Inbox(_ context.Context, cfg models.NotificationConfig, tag string, limit int) ([]InboxEmail, error) {
	return []InboxEmail{{To: cfg.InboxAddress(tag), Subject: fmt.Sprintf("limit=%d", limit)}}, nil
}

func (f *fakeProvider) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func newTestService(t *testing.T, p Provider, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	svc, err := NewService(NewMemoryStore(), p, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return svc
}

func TestSend_NotConfigured(t *testing.T) {
	svc := newTestService(t, &fakeProvider{})

	_, err := svc.Send(context.Background(), "me", "Reminder", "task 3", "")
	assert.ErrorIs(t, err, toolerr.NotConfigured)

	_, err = svc.Inbox(context.Background(), "", 0)
	assert.ErrorIs(t, err, toolerr.NotConfigured)

	_, err = svc.GenerateTestEmail("x")
	assert.ErrorIs(t, err, toolerr.NotConfigured)
}

func TestConfigure_VersionsAndPersists(t *testing.T) {
	store := NewMemoryStore()
	svc, err := NewService(store, &fakeProvider{}, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	first, verified, err := svc.Configure(ctx, " key-1 ", "ns1", "")
	require.NoError(t, err)
	assert.False(t, verified)
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, "key-1", first.APIKey)
	assert.Equal(t, "noreply@ns1.testmail.app", first.DefaultFrom)

	second, _, err := svc.Configure(ctx, "key-2", "ns2", "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Version)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, second, *stored)

	reloaded, err := NewService(store, &fakeProvider{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "ns2", reloaded.Current().Namespace)
}

func TestConfigure_Errors(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(t, &fakeProvider{})
	_, _, err := svc.Configure(ctx, "", "ns", "")
	assert.ErrorIs(t, err, toolerr.MissingParameter)
	assert.Equal(t, "api_key", toolerr.FieldOf(err))

	rejecting := newTestService(t, &fakeProvider{verifyErr: ErrUnauthorized}, WithVerify(true))
	_, _, err = rejecting.Configure(ctx, "bad", "ns", "")
	assert.ErrorIs(t, err, toolerr.ValidationError)
	assert.Nil(t, rejecting.Current())

	down := newTestService(t, &fakeProvider{verifyErr: errors.New("connection refused")}, WithVerify(true))
	_, _, err = down.Configure(ctx, "k", "ns", "")
	assert.ErrorIs(t, err, toolerr.CapabilityUnavailable)

	ok := newTestService(t, &fakeProvider{}, WithVerify(true))
	_, verified, err := ok.Configure(ctx, "k", "ns", "")
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestBootstrap_DoesNotReplace(t *testing.T) {
	svc := newTestService(t, &fakeProvider{})

	require.NoError(t, svc.Bootstrap("env-key", "envns"))
	assert.Equal(t, "envns", svc.Current().Namespace)

	_, _, err := svc.Configure(context.Background(), "k", "chosen", "")
	require.NoError(t, err)
	require.NoError(t, svc.Bootstrap("env-key", "envns"))
	assert.Equal(t, "chosen", svc.Current().Namespace)
}

func TestSend_ResolvesMeAndDefaults(t *testing.T) {
	p := &fakeProvider{}
	svc := newTestService(t, p)
	ctx := context.Background()
	_, _, err := svc.Configure(ctx, "k", "ns", "")
	require.NoError(t, err)

	receipt, err := svc.Send(ctx, "me", "Reminder", "task 3 is due", "")
	require.NoError(t, err)
	assert.Equal(t, "me.ns@inbox.testmail.app", receipt.To)
	assert.Equal(t, "noreply@ns.testmail.app", receipt.From)
	assert.NotEmpty(t, receipt.MessageID)
	assert.Equal(t, testNow, receipt.SentAt)

	sent := p.messages()
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].msg.HTML)
	assert.Equal(t, "task 3 is due", sent[0].msg.Text)

	owner := newTestService(t, p, WithOwnerEmail("boss@example.com"))
	_, _, err = owner.Configure(ctx, "k", "ns", "")
	require.NoError(t, err)
	receipt, err = owner.Send(ctx, "ME", "s", "b", "")
	require.NoError(t, err)
	assert.Equal(t, "boss@example.com", receipt.To)
}

func TestSend_HTMLGetsTextAlternative(t *testing.T) {
	p := &fakeProvider{messageID: "abc"}
	svc := newTestService(t, p)
	ctx := context.Background()
	_, _, err := svc.Configure(ctx, "k", "ns", "")
	require.NoError(t, err)

	receipt, err := svc.Send(ctx, "a@example.com", "s", "<p>Hello<br>World</p>", "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "abc", receipt.MessageID)

	sent := p.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "<p>Hello<br>World</p>", sent[0].msg.HTML)
	assert.Equal(t, "Hello\nWorld", sent[0].msg.Text)
	assert.Equal(t, "me@example.com", sent[0].msg.From)
}

func TestSend_DeliveryFailed(t *testing.T) {
	svc := newTestService(t, &fakeProvider{sendErr: ErrRejected})
	_, _, err := svc.Configure(context.Background(), "k", "ns", "")
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), "a@example.com", "s", "b", "")
	assert.ErrorIs(t, err, toolerr.DeliveryFailed)
}

func TestSendNotification(t *testing.T) {
	p := &fakeProvider{}
	svc := newTestService(t, p)
	ctx := context.Background()
	_, _, err := svc.Configure(ctx, "k", "ns", "")
	require.NoError(t, err)

	receipt, err := svc.SendNotification(ctx, "a@example.com", "Deploy", "shipped", NotificationSuccess)
	require.NoError(t, err)
	assert.Equal(t, "[SUCCESS] Deploy", receipt.Subject)

	sent := p.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].msg.HTML, "#10b981")
	assert.Equal(t, "shipped", sent[0].msg.Text)

	receipt, err = svc.SendNotification(ctx, "a@example.com", "Note", "fyi", "")
	require.NoError(t, err)
	assert.Equal(t, "[INFO] Note", receipt.Subject)

	_, err = svc.SendNotification(ctx, "a@example.com", "x", "y", "urgent")
	assert.ErrorIs(t, err, toolerr.ValidationError)
}

func TestInboxAndTestAddress(t *testing.T) {
	svc := newTestService(t, &fakeProvider{})
	ctx := context.Background()
	_, _, err := svc.Configure(ctx, "k", "ns", "")
	require.NoError(t, err)

	res, err := svc.Inbox(ctx, "alerts", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "limit=10", res.Emails[0].Subject)
	assert.Equal(t, "https://testmail.app/inbox/ns/alerts", res.InboxURL)

	res, err = svc.Inbox(ctx, "", 80)
	require.NoError(t, err)
	assert.Equal(t, "limit=50", res.Emails[0].Subject)

	addr, err := svc.GenerateTestEmail("")
	require.NoError(t, err)
	assert.Equal(t, "test.ns@inbox.testmail.app", addr.Email)
	assert.Equal(t, "test", addr.Tag)
}

func TestConcurrentConfigureNeverTearsSend(t *testing.T) {
	p := &fakeProvider{}
	svc := newTestService(t, p)
	ctx := context.Background()
	_, _, err := svc.Configure(ctx, "key-0", "ns0", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := svc.Configure(ctx, fmt.Sprintf("key-%d", i), fmt.Sprintf("ns%d", i), "")
			assert.NoError(t, err)
		}(i)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Send(ctx, "me", "s", "b", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, m := range p.messages() {
		suffix := strings.TrimPrefix(m.cfg.APIKey, "key-")
		assert.Equal(t, "ns"+suffix, m.cfg.Namespace)
		assert.Equal(t, "noreply@ns"+suffix+".testmail.app", m.msg.From)
		assert.Equal(t, "me.ns"+suffix+"@inbox.testmail.app", m.msg.To)
	}
	assert.Equal(t, uint64(21), svc.Current().Version)
}
