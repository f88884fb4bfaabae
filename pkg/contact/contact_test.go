package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exportmap/pkg/db"
	"exportmap/pkg/request"
	"exportmap/pkg/store"
	"exportmap/pkg/tracker"
)

func valid() Submission {
	return Submission{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.org",
		Reason:    "research",
		Message:   "I would like to cite the Vietnam case study.",
	}
}

func TestValidate(t *testing.T) {
	svc := NewService(nil, nil, nil)

	tests := []struct {
		name      string
		mutate    func(s *Submission)
		wantField string
	}{
		{"Valid", func(s *Submission) {}, ""},
		{"Blank first name", func(s *Submission) { s.FirstName = "   " }, "firstName"},
		{"Long last name", func(s *Submission) { s.LastName = strings.Repeat("x", 101) }, "lastName"},
		{"Name at limit", func(s *Submission) { s.LastName = strings.Repeat("é", 100) }, ""},
		{"Bad email", func(s *Submission) { s.Email = "not-an-email" }, "email"},
		{"Long email", func(s *Submission) { s.Email = strings.Repeat("a", 250) + "@x.org" }, "email"},
		{"Empty message", func(s *Submission) { s.Message = "" }, "message"},
		{"Long message", func(s *Submission) { s.Message = strings.Repeat("m", 1001) }, "message"},
		{"Message at limit", func(s *Submission) { s.Message = strings.Repeat("m", 1000) }, ""},
		{"Unknown reason", func(s *Submission) { s.Reason = "spam" }, "reason"},
		{"Blank reason defaults", func(s *Submission) { s.Reason = "" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := valid()
			tt.mutate(&sub)
			err := svc.Validate(sub.Normalize())
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			assert.Contains(t, verrs, tt.wantField)
			assert.Len(t, verrs, 1)
		})
	}
}

func TestSubmit_InvalidIsNotStored(t *testing.T) {
	outbox := newOutbox(t)
	svc := NewService(outbox, nil, nil)

	sub := valid()
	sub.Email = ""
	_, err := svc.Submit(context.Background(), sub)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "This field is required.", verrs["email"])

	all, err := outbox.ListSubmissions(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubmit_DeliversToWebhook(t *testing.T) {
	payloads := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		var p webhookPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		payloads <- p
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	outbox := newOutbox(t)
	tr := tracker.New()
	client := request.New(nil, tr, request.WithRetries(1, time.Millisecond))
	svc := NewService(outbox, NewWebhookSink(client, srv.URL+"/hook", map[string]string{"X-Token": "secret"}), tr)

	sub := valid()
	sub.FirstName = "  Ada "
	rec, err := svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.True(t, rec.Delivered)
	got := <-payloads
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, rec.ID, got.ID)

	pending, err := outbox.ListSubmissions(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmit_TransportFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	outbox := newOutbox(t)
	client := request.New(nil, nil, request.WithRetries(1, time.Millisecond))
	svc := NewService(outbox, NewWebhookSink(client, srv.URL, nil), nil)

	rec, err := svc.Submit(context.Background(), valid())
	assert.ErrorIs(t, err, ErrDelivery)
	require.NotNil(t, rec)
	assert.False(t, rec.Delivered)
	assert.Equal(t, int32(1), calls.Load(), "no automatic retry")

	pending, err := outbox.ListSubmissions(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotEmpty(t, pending[0].DeliveryError)
}

func TestLogSink(t *testing.T) {
	svc := NewService(nil, nil, nil)
	rec, err := svc.Submit(context.Background(), valid())
	require.NoError(t, err)
	assert.True(t, rec.Delivered)
	assert.Equal(t, "research", rec.Reason)
}

func newOutbox(t *testing.T) *store.SQLiteStore {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "contact.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return store.NewSQLiteStore(d)
}
