package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Upserter is the slice of the store the feed loader needs.
type Upserter interface {
	Upsert(ctx context.Context, p Product) error
}

// Feed fetches the remote product catalog and loads it into the store.
// Loading is best effort and idempotent: each entry is upserted
// independently, and a failed entry does not abort the rest.
type Feed struct {
	url    string
	client *http.Client
}

func NewFeed(url string) *Feed {
	return &Feed{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch downloads and decodes the feed.
func (f *Feed) Fetch(ctx context.Context) ([]Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build feed request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch feed %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: feed %s returned status %d", f.url, resp.StatusCode)
	}

	var payload struct {
		Products []Product `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("catalog: decode feed: %w", err)
	}

	for i := range payload.Products {
		sanitizeProduct(&payload.Products[i])
	}

	return payload.Products, nil
}

// Load fetches the feed and upserts every entry.
func (f *Feed) Load(ctx context.Context, store Upserter) (int, error) {
	products, err := f.Fetch(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, p := range products {
		if err := store.Upsert(ctx, p); err != nil {
			slog.WarnContext(ctx, "skipping catalog entry", "product_id", p.ID, "error", err)
			continue
		}
		loaded++
	}

	return loaded, nil
}

// sanitizeProduct strips NUL bytes from text fields. The upstream feed has
// shipped entries containing \x00, which Postgres TEXT columns reject.
func sanitizeProduct(p *Product) {
	p.Name = strings.ReplaceAll(p.Name, "\x00", "")
	p.Description = strings.ReplaceAll(p.Description, "\x00", "")
	p.Image = strings.ReplaceAll(p.Image, "\x00", "")
}
