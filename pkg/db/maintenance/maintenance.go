package maintenance

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"exportmap/pkg/db"
	"exportmap/pkg/normalize"
	"exportmap/pkg/source"
	"exportmap/pkg/store"
)

// importStateKey records the mtime of the last imported rows file.
const importStateKey = "import.rows_mtime"

// ImportStore is what the import needs from the SQLite store.
type ImportStore interface {
	store.StateStore
	store.RowStore
}

// Options controls a maintenance pass.
type Options struct {
	ImportFile  string        // CSV or JSON rows file; empty skips the import
	CacheMaxAge time.Duration // cache rows older than this are deleted
	StatePrefix string        // persisted state keys with this prefix expire
	StateMaxAge time.Duration
}

// Run executes all maintenance tasks: Import and Pruning.
// Failures are logged, never returned, so startup continues on a stale mirror.
func Run(ctx context.Context, s ImportStore, d *db.DB, opts Options) {
	slog.Info("Starting database maintenance...")

	if opts.ImportFile != "" {
		n, err := ImportRows(ctx, s, opts.ImportFile)
		switch {
		case err != nil:
			slog.Error("Rows import failed", "path", opts.ImportFile, "error", err)
		case n >= 0:
			slog.Info("Imported export rows", "path", opts.ImportFile, "count", n)
		default:
			slog.Debug("Rows import up to date", "path", opts.ImportFile)
		}
	}

	cacheRows, stateRows, err := Prune(d, opts)
	if err != nil {
		slog.Error("Pruning failed", "error", err)
		return
	}
	slog.Info("Pruning completed", "cache_rows", cacheRows, "state_rows", stateRows)
}

// Prune deletes expired cache entries and persisted state.
// A zero max age skips that table.
func Prune(d *db.DB, opts Options) (cacheRows, stateRows int64, err error) {
	if opts.CacheMaxAge > 0 {
		if cacheRows, err = d.PruneCache(opts.CacheMaxAge); err != nil {
			return 0, 0, fmt.Errorf("prune cache: %w", err)
		}
	}
	if opts.StateMaxAge > 0 && opts.StatePrefix != "" {
		if stateRows, err = d.PruneState(opts.StatePrefix, opts.StateMaxAge); err != nil {
			return cacheRows, 0, fmt.Errorf("prune state: %w", err)
		}
	}
	return cacheRows, stateRows, nil
}

// ImportRows replaces export_rows with the contents of path when the file
// changed since the last import. It returns -1 when nothing was done.
func ImportRows(ctx context.Context, s ImportStore, path string) (int, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return -1, nil // File doesn't exist, nothing to import
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat rows file: %w", err)
	}

	fileMTime := info.ModTime().UTC().Format(time.RFC3339Nano)
	if stored, found := s.GetState(ctx, importStateKey); found && stored == fileMTime {
		return -1, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open rows file: %w", err)
	}
	defer f.Close()

	var rows []store.ExportRow
	if strings.EqualFold(filepath.Ext(path), ".json") {
		rows, err = readJSONRows(f)
	} else {
		rows, err = readCSVRows(f)
	}
	if err != nil {
		return 0, err
	}

	if err := s.ReplaceRows(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to store rows: %w", err)
	}
	if err := s.SetState(ctx, importStateKey, fileMTime); err != nil {
		return 0, fmt.Errorf("failed to update state: %w", err)
	}
	return len(rows), nil
}

func readJSONRows(r io.Reader) ([]store.ExportRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows file: %w", err)
	}
	recs := normalize.DecodeRows(data)
	if len(recs) == 0 {
		return nil, fmt.Errorf("no rows decoded")
	}
	return source.ToExportRows(recs)
}

// readCSVRows keeps each row in the hosted table's column layout, so the
// normalizer's column aliases apply to imported rows as well.
func readCSVRows(r io.Reader) ([]store.ExportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	// Spreadsheet exports often start with a UTF-8 BOM.
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var rows []store.ExportRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read error: %w", err)
		}

		obj := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(record) {
				continue
			}
			if v := strings.TrimSpace(record[i]); v != "" {
				obj[h] = v
			}
		}
		data, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("encode line %d: %w", line, err)
		}
		rec := normalize.DecodeRowJSON(string(data))
		if rec.Country == "" {
			slog.Debug("Skipping row without country", "line", line)
			continue
		}
		rows = append(rows, store.ExportRow{Country: rec.Country, Sector: rec.Sector, Data: string(data)})
	}
	return rows, nil
}
