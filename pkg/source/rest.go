package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"exportmap/pkg/model"
	"exportmap/pkg/normalize"
	"exportmap/pkg/request"
)

// RESTSource reads the hosted table through its PostgREST endpoint.
type RESTSource struct {
	client   *request.Client
	baseURL  string
	table    string
	apiKey   string
	pageSize int
}

// NewREST creates a REST source. pageSize <= 0 fetches everything in one call.
func NewREST(client *request.Client, baseURL, table, apiKey string, pageSize int) *RESTSource {
	return &RESTSource{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		table:    table,
		apiKey:   apiKey,
		pageSize: pageSize,
	}
}

func (s *RESTSource) Name() string { return "rest" }

func (s *RESTSource) pageURL(offset int) string {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "country.asc")
	if s.pageSize > 0 {
		q.Set("limit", strconv.Itoa(s.pageSize))
		q.Set("offset", strconv.Itoa(offset))
	}
	return fmt.Sprintf("%s/rest/v1/%s?%s", s.baseURL, url.PathEscape(s.table), q.Encode())
}

func (s *RESTSource) headers() map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if s.apiKey != "" {
		h["apikey"] = s.apiKey
		h["Authorization"] = "Bearer " + s.apiKey
	}
	return h
}

// FetchAll pages through the table until a short page comes back.
func (s *RESTSource) FetchAll(ctx context.Context) ([]model.RawRecord, error) {
	var out []model.RawRecord
	for offset := 0; ; {
		body, err := s.client.GetWithHeaders(ctx, s.pageURL(offset), s.headers(), "")
		if err != nil {
			return nil, fmt.Errorf("fetch %s offset %d: %w", s.table, offset, err)
		}
		if !gjson.ValidBytes(body) {
			return nil, fmt.Errorf("fetch %s: response is not JSON", s.table)
		}
		page := normalize.DecodeRows(body)
		out = append(out, page...)

		n := int(gjson.GetBytes(body, "#").Int())
		if s.pageSize <= 0 || n < s.pageSize {
			break
		}
		offset += n
	}
	slog.Debug("Fetched rows", "source", s.Name(), "table", s.table, "rows", len(out))
	return out, nil
}
