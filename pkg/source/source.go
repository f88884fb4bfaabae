// Package source fetches raw export rows from the hosted table or one of its
// local stand-ins.
package source

import (
	"context"

	"exportmap/pkg/model"
)

// RowSource yields every (country, sector) row, ordered by country name.
type RowSource interface {
	FetchAll(ctx context.Context) ([]model.RawRecord, error)
	Name() string
}

// StaticSource serves a fixed slice of rows.
type StaticSource struct {
	rows []model.RawRecord
	err  error
}

// NewStatic returns a source that always yields rows.
func NewStatic(rows []model.RawRecord) *StaticSource {
	return &StaticSource{rows: rows}
}

// NewFailing returns a source that always fails with err.
func NewFailing(err error) *StaticSource {
	return &StaticSource{err: err}
}

func (s *StaticSource) FetchAll(ctx context.Context) ([]model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return append([]model.RawRecord(nil), s.rows...), nil
}

func (s *StaticSource) Name() string { return "static" }
