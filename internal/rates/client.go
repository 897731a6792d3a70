// Package rates fetches exchange-rate snapshots from an external JSON API.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"subtrack/internal/currency"
)

// Client talks to a rates API that returns a single JSON document with the
// base currency and a map of rates relative to it.
type Client struct {
	baseURL    string
	base       string
	httpClient *http.Client
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

func NewClient(baseURL, baseCurrency string) *Client {
	return &Client{
		baseURL: baseURL,
		base:    baseCurrency,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch retrieves the current snapshot. The caller decides what to do when
// it fails; conversions keep working on the last table either way.
func (c *Client) Fetch(ctx context.Context) (currency.RateTable, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return currency.RateTable{}, fmt.Errorf("parse rates url: %w", err)
	}
	q := u.Query()
	q.Set("base", c.base)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return currency.RateTable{}, fmt.Errorf("build rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return currency.RateTable{}, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return currency.RateTable{}, fmt.Errorf("rates API returned %d: %s", resp.StatusCode, body)
	}

	var parsed ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return currency.RateTable{}, fmt.Errorf("decode rates response: %w", err)
	}
	if len(parsed.Rates) == 0 {
		return currency.RateTable{}, fmt.Errorf("rates API returned no rates for base %s", c.base)
	}

	asOf := time.Now().UTC()
	if parsed.Date != "" {
		if d, err := time.Parse("2006-01-02", parsed.Date); err == nil {
			asOf = d
		}
	}

	base := parsed.Base
	if base == "" {
		base = c.base
	}

	table := currency.RateTable{
		Base:  base,
		AsOf:  asOf,
		Rates: parsed.Rates,
	}
	// The base always converts to itself.
	table.Rates[base] = 1.0
	return table, nil
}
