package store

import (
	"context"
	"time"
)

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// StateStore handles durable string-keyed application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// RowStore holds a local copy of the hosted export table, one JSON document
// per (country, sector) row.
type RowStore interface {
	ReplaceRows(ctx context.Context, rows []ExportRow) error
	ListRows(ctx context.Context) ([]ExportRow, error)
	CountRows(ctx context.Context) (int, error)
}

// ExportRow is one stored source row.
type ExportRow struct {
	Country string
	Sector  string
	Data    string // JSON object in the hosted table's column layout
}

// ContactStore is the outbox for contact-form submissions.
type ContactStore interface {
	SaveSubmission(ctx context.Context, s *ContactRecord) error
	MarkDelivered(ctx context.Context, id string, deliveryErr error) error
	ListSubmissions(ctx context.Context, undeliveredOnly bool) ([]ContactRecord, error)
}

// ContactRecord is a persisted contact-form submission.
type ContactRecord struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	Reason        string
	Message       string
	Delivered     bool
	DeliveryError string
	CreatedAt     time.Time
}
