package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"exportmap/pkg/model"
	"exportmap/pkg/normalize"
)

// PostgresSource reads the table directly from Postgres. Each row is
// serialized with row_to_json so column naming stays the decoder's problem.
type PostgresSource struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres opens a pool for dsn and verifies it.
func NewPostgres(ctx context.Context, dsn, table string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PostgresSource{pool: pool, table: table}, nil
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) query() string {
	return selectQuery(s.table)
}

func selectQuery(table string) string {
	ident := pgx.Identifier{table}.Sanitize()
	return fmt.Sprintf("SELECT row_to_json(t)::text FROM %s t ORDER BY t.country", ident)
}

func (s *PostgresSource) FetchAll(ctx context.Context) ([]model.RawRecord, error) {
	rows, err := s.pool.Query(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.table, err)
	}

	out := make([]model.RawRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, normalize.DecodeRowJSON(d))
	}
	return out, nil
}

// Close releases the pool.
func (s *PostgresSource) Close() {
	s.pool.Close()
}
