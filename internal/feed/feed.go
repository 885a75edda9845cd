// Package feed fetches raw player records from the external roster feed.
//
// The feed is a single unauthenticated GET endpoint returning a JSON array of
// loosely typed records with inconsistent key casing and spacing. Keys are
// normalized here (lowercased, spaces replaced with underscores) so the rest
// of the application only ever sees snake_case keys.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// HTTPClient is the narrow outbound client contract, satisfied by
// *http.Client and easily faked in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Source provides batches of normalized player records.
type Source interface {
	FetchPlayers(ctx context.Context) ([]map[string]any, error)
}

// Client is the HTTP implementation of Source.
type Client struct {
	http HTTPClient
	url  string
}

// NewClient constructs a Client for the given feed URL.
func NewClient(httpClient HTTPClient, url string) *Client {
	return &Client{http: httpClient, url: url}
}

// FetchPlayers retrieves the full feed and returns it with normalized keys.
// Any transport, status, or decode failure is returned as an error; the
// caller decides whether a failed populate sweep is fatal for its request.
func (c *Client) FetchPlayers(ctx context.Context) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch players: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch players: unexpected status %d", resp.StatusCode)
	}

	var players []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&players); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	return StandardizeKeys(players), nil
}

// StandardizeKeys lowercases every key and replaces spaces with underscores,
// e.g. "On-base Percentage" becomes "on-base_percentage". Values are not
// touched. The input slice is not modified.
func StandardizeKeys(players []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(players))
	for _, p := range players {
		rec := make(map[string]any, len(p))
		for k, v := range p {
			rec[strings.ReplaceAll(strings.ToLower(k), " ", "_")] = v
		}
		out = append(out, rec)
	}
	return out
}
