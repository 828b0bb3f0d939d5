package notifyserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/taskflow/pkg/models"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *TestmailProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewTestmailProvider(TestmailOptions{
		BaseURL:  srv.URL,
		Timeout:  2 * time.Second,
		RetryMax: 2,
		Logger:   zerolog.Nop(),
	})
}

func TestTestmailProvider_Send(t *testing.T) {
	var got sendPayload
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/send", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"message_id":"msg-42"}`)
	})

	cfg := models.NewNotificationConfig("key-1", "ns", "")
	id, err := p.Send(context.Background(), cfg, Message{
		From: cfg.DefaultFrom, To: "a@example.com", Subject: "hi", Text: "hello", HTML: "<p>hello</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-42", id)
	assert.Equal(t, "a@example.com", got.To)
	assert.Equal(t, "<p>hello</p>", got.HTML)
	assert.Equal(t, "hello", got.Text)
}

func TestTestmailProvider_SendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"message_id":"second-try"}`)
	})

	id, err := p.Send(context.Background(), models.NewNotificationConfig("k", "ns", ""), Message{To: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "second-try", id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTestmailProvider_SendErrors(t *testing.T) {
	unauthorized := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := unauthorized.Send(context.Background(), models.NewNotificationConfig("bad", "ns", ""), Message{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	rejected := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "bad recipient")
	})
	_, err = rejected.Send(context.Background(), models.NewNotificationConfig("k", "ns", ""), Message{})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "bad recipient")
}

func TestTestmailProvider_Verify(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/json", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("livequery"))
		if r.URL.Query().Get("apikey") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"result":"success"}`)
	})

	assert.NoError(t, p.Verify(context.Background(), "good", "ns"))
	assert.ErrorIs(t, p.Verify(context.Background(), "bad", "ns"), ErrUnauthorized)
}

func TestTestmailProvider_Inbox(t *testing.T) {
	long := strings.Repeat("x", 250)
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "ns", q.Get("namespace"))
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "alerts", q.Get("tag"))
		fmt.Fprintf(w, `{"emails":[
			{"from":"a@x.com","to":"alerts.ns@inbox.testmail.app","subject":"s1","timestamp":1700000000000,"text":%q},
			{"from":"b@x.com","subject":"s2","html":"<p>hi <b>there</b></p>"}
		]}`, long)
	})

	emails, err := p.Inbox(context.Background(), models.NewNotificationConfig("k", "ns", ""), "alerts", 500)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, strings.Repeat("x", 200)+"...", emails[0].Preview)
	assert.Equal(t, int64(1700000000000), emails[0].Timestamp)
	assert.Equal(t, "hi there", emails[1].Preview)
}
