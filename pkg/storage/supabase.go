// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maskbid/maskbid/pkg/faults"
)

// SupabaseBackend talks to PostgREST tables shaped as
// (id text primary key, version bigint, data jsonb).
type SupabaseBackend struct {
	baseURL string
	key     string
	client  *http.Client
}

type supabaseRow struct {
	ID      string          `json:"id"`
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// NewSupabaseBackend targets the project at baseURL using a service-role key.
func NewSupabaseBackend(baseURL, serviceKey string, timeout time.Duration) (*SupabaseBackend, error) {
	if baseURL == "" || serviceKey == "" {
		return nil, faults.New(faults.KindMisconfigured, "supabase", "url and service key are required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SupabaseBackend{
		baseURL: strings.TrimRight(baseURL, "/") + "/rest/v1/",
		key:     serviceKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (s *SupabaseBackend) Get(ctx context.Context, table, key string) (Record, error) {
	q := url.Values{}
	q.Set("id", "eq."+key)
	q.Set("select", "id,version,data")
	rows, err := s.do(ctx, http.MethodGet, table, q, nil, "")
	if err != nil {
		return Record{}, err
	}
	if len(rows) == 0 {
		return Record{}, ErrNotFound
	}
	return rows[0].record(), nil
}

func (s *SupabaseBackend) Insert(ctx context.Context, table, key string, data []byte) (Record, error) {
	body, err := json.Marshal(supabaseRow{ID: key, Version: 1, Data: data})
	if err != nil {
		return Record{}, err
	}
	rows, err := s.do(ctx, http.MethodPost, table, nil, body,
		"return=representation,resolution=ignore-duplicates")
	if err != nil {
		return Record{}, err
	}
	// Ignored duplicates come back as an empty representation.
	if len(rows) == 0 {
		return Record{}, ErrConflict
	}
	return rows[0].record(), nil
}

func (s *SupabaseBackend) Swap(ctx context.Context, table, key string, version int64, data []byte) (Record, error) {
	body, err := json.Marshal(map[string]any{
		"version": version + 1,
		"data":    json.RawMessage(data),
	})
	if err != nil {
		return Record{}, err
	}
	q := url.Values{}
	q.Set("id", "eq."+key)
	q.Set("version", "eq."+strconv.FormatInt(version, 10))
	rows, err := s.do(ctx, http.MethodPatch, table, q, body, "return=representation")
	if err != nil {
		return Record{}, err
	}
	if len(rows) > 0 {
		return rows[0].record(), nil
	}
	if _, err := s.Get(ctx, table, key); err != nil {
		return Record{}, err
	}
	return Record{}, ErrConflict
}

func (s *SupabaseBackend) Find(ctx context.Context, table string, where Filter) ([]Record, error) {
	q := url.Values{}
	q.Set("select", "id,version,data")
	q.Set("order", "id.asc")
	for field, value := range where {
		q.Set("data->>"+field, "eq."+value)
	}
	rows, err := s.do(ctx, http.MethodGet, table, q, nil, "")
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func (s *SupabaseBackend) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *SupabaseBackend) do(ctx context.Context, method, table string, q url.Values, body []byte, prefer string) ([]supabaseRow, error) {
	op := "supabase " + strings.ToLower(method) + " " + table
	target := s.baseURL + table
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, faults.Wrap(faults.KindTransport, op, err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, faults.Wrap(faults.KindTransport, op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, faults.Wrap(faults.KindTransport, op, err)
	}
	if resp.StatusCode == http.StatusConflict {
		return nil, ErrConflict
	}
	if resp.StatusCode >= 300 {
		return nil, faults.Wrap(faults.KindTransport, op,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(payload, 256)))
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}

	var rows []supabaseRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, faults.Wrap(faults.KindTransport, op, fmt.Errorf("decode response: %w", err))
	}
	return rows, nil
}

func (r supabaseRow) record() Record {
	return Record{Key: r.ID, Version: r.Version, Data: []byte(r.Data)}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
