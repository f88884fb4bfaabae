package source

import (
	"context"
	"encoding/json"
	"fmt"

	"exportmap/pkg/model"
	"exportmap/pkg/normalize"
	"exportmap/pkg/store"
)

// SQLiteSource reads the local export_rows mirror.
type SQLiteSource struct {
	rows store.RowStore
}

// NewSQLite creates a source over a RowStore.
func NewSQLite(rows store.RowStore) *SQLiteSource {
	return &SQLiteSource{rows: rows}
}

func (s *SQLiteSource) Name() string { return "sqlite" }

func (s *SQLiteSource) FetchAll(ctx context.Context) ([]model.RawRecord, error) {
	stored, err := s.rows.ListRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list export rows: %w", err)
	}
	out := make([]model.RawRecord, 0, len(stored))
	for _, r := range stored {
		rec := normalize.DecodeRowJSON(r.Data)
		// The indexed columns are authoritative when the document omits them.
		if rec.Country == "" {
			rec.Country = r.Country
		}
		if rec.Sector == "" {
			rec.Sector = r.Sector
		}
		out = append(out, rec)
	}
	return out, nil
}

// ToExportRows serializes records for storage in the mirror.
func ToExportRows(recs []model.RawRecord) ([]store.ExportRow, error) {
	out := make([]store.ExportRow, 0, len(recs))
	for i := range recs {
		data, err := json.Marshal(&recs[i])
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		out = append(out, store.ExportRow{Country: recs[i].Country, Sector: recs[i].Sector, Data: string(data)})
	}
	return out, nil
}

// Mirror copies every row from src into the local store, replacing its
// contents. It returns the number of rows written.
func Mirror(ctx context.Context, src RowSource, dst store.RowStore) (int, error) {
	recs, err := src.FetchAll(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := ToExportRows(recs)
	if err != nil {
		return 0, err
	}
	if err := dst.ReplaceRows(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
