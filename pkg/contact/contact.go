// Package contact validates and delivers contact-form submissions.
package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"exportmap/pkg/request"
	"exportmap/pkg/store"
	"exportmap/pkg/tracker"
)

// ErrDelivery is returned when a valid submission could not reach the sink.
// The submission is kept in the outbox; the user may retry.
var ErrDelivery = errors.New("contact submission could not be delivered")

// Reasons accepted by the form. An empty reason means ReasonGeneral.
var Reasons = []string{"general", "partnership", "media", "research", "data", "other"}

// ReasonGeneral is the default reason.
const ReasonGeneral = "general"

// Submission is the form payload.
type Submission struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Reason    string `json:"reason" validate:"required,oneof=general partnership media research data other"`
	Message   string `json:"message" validate:"required,min=1,max=1000"`
}

// ValidationErrors maps a JSON field name to a user-facing message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid contact submission: " + strings.Join(fields, ", ")
}

// Sink receives validated submissions.
type Sink interface {
	Deliver(ctx context.Context, rec *store.ContactRecord) error
}

// Service validates, records and delivers submissions.
type Service struct {
	validate *validator.Validate
	outbox   store.ContactStore
	sink     Sink
	tracker  *tracker.Tracker
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a service. outbox and t may be nil; a nil sink logs
// submissions instead of delivering them.
func NewService(outbox store.ContactStore, sink Sink, t *tracker.Tracker) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if sink == nil {
		sink = LogSink{}
	}
	return &Service{
		validate: v,
		outbox:   outbox,
		sink:     sink,
		tracker:  t,
		logger:   slog.With("component", "contact"),
		now:      time.Now,
	}
}

// Normalize trims every field and defaults the reason.
func (s Submission) Normalize() Submission {
	s.FirstName = strings.TrimSpace(s.FirstName)
	s.LastName = strings.TrimSpace(s.LastName)
	s.Email = strings.TrimSpace(s.Email)
	s.Reason = strings.ToLower(strings.TrimSpace(s.Reason))
	if s.Reason == "" {
		s.Reason = ReasonGeneral
	}
	s.Message = strings.TrimSpace(s.Message)
	return s
}

// Validate checks a normalized submission. It returns ValidationErrors or nil.
func (s *Service) Validate(sub Submission) error {
	err := s.validate.Struct(sub)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(ValidationErrors, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "oneof":
		return "Choose one of: " + strings.ReplaceAll(fe.Param(), " ", ", ") + "."
	}
	return "Invalid value."
}

// Submit validates sub, writes it to the outbox and hands it to the sink.
// Invalid input yields ValidationErrors and nothing is stored. A sink
// failure yields ErrDelivery; there is no automatic retry.
func (s *Service) Submit(ctx context.Context, sub Submission) (*store.ContactRecord, error) {
	sub = sub.Normalize()
	if err := s.Validate(sub); err != nil {
		s.track("invalid")
		return nil, err
	}

	rec := &store.ContactRecord{
		ID:        uuid.NewString(),
		FirstName: sub.FirstName,
		LastName:  sub.LastName,
		Email:     sub.Email,
		Reason:    sub.Reason,
		Message:   sub.Message,
		CreatedAt: s.now().UTC(),
	}
	if s.outbox != nil {
		if err := s.outbox.SaveSubmission(ctx, rec); err != nil {
			s.logger.Error("Failed to record contact submission", "error", err)
			s.track("failed")
			return nil, fmt.Errorf("%w: %v", ErrDelivery, err)
		}
	}

	derr := s.sink.Deliver(ctx, rec)
	if s.outbox != nil {
		if err := s.outbox.MarkDelivered(ctx, rec.ID, derr); err != nil {
			s.logger.Warn("Failed to update contact outbox", "id", rec.ID, "error", err)
		}
	}
	if derr != nil {
		s.logger.Warn("Contact delivery failed", "id", rec.ID, "error", derr)
		s.track("failed")
		rec.DeliveryError = derr.Error()
		return rec, fmt.Errorf("%w: %v", ErrDelivery, derr)
	}
	rec.Delivered = true
	s.track("delivered")
	return rec, nil
}

func (s *Service) track(outcome string) {
	if s.tracker != nil {
		s.tracker.TrackContact(outcome)
	}
}

// WebhookSink posts submissions as JSON to a URL.
type WebhookSink struct {
	client  *request.Client
	url     string
	headers map[string]string
}

// NewWebhookSink creates a sink. The client should not retry: a failed
// submission is reported to the user instead.
func NewWebhookSink(client *request.Client, url string, headers map[string]string) *WebhookSink {
	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return &WebhookSink{client: client, url: url, headers: h}
}

type webhookPayload struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Reason    string    `json:"reason"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Deliver posts rec to the webhook.
func (w *WebhookSink) Deliver(ctx context.Context, rec *store.ContactRecord) error {
	body, err := json.Marshal(webhookPayload{
		ID:        rec.ID,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		Email:     rec.Email,
		Reason:    rec.Reason,
		Message:   rec.Message,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return err
	}
	if _, err := w.client.PostWithHeaders(ctx, w.url, body, w.headers); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

// LogSink only logs submissions. Used when no webhook is configured.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, rec *store.ContactRecord) error {
	slog.Info("Contact submission received", "id", rec.ID, "reason", rec.Reason, "email", rec.Email)
	return nil
}
