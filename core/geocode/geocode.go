// Package geocode resolves coordinates to place names via a Nominatim
// compatible reverse geocoding endpoint. Lookups are best effort: the
// pipeline never fails because a place name could not be resolved.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gpxvault/logger"
)

// Result carries either a resolved place name or an explicit unavailable
// marker with the coordinate fallback in Name. Callers can always display
// Name; Available tells them whether it is a real place name.
type Result struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Cache stores resolved names keyed by coordinate. Implementations are
// expected to be shared across processes (Redis); a nil Cache disables
// caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// Client is a reverse geocoding client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	userAgent  string

	retryAttempts int
	retryDelay    time.Duration
}

// NewClient creates a geocoding client for the given Nominatim base URL.
func NewClient(baseURL string, timeout time.Duration, cache Cache) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:         cache,
		userAgent:     "gpxvault/1.0",
		retryAttempts: 3,
		retryDelay:    500 * time.Millisecond,
	}
}

// nominatimResponse is the subset of the Nominatim reverse response we read.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Road    string `json:"road"`
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
	} `json:"address"`
}

// Reverse resolves a start coordinate to a readable place name. On any
// failure it returns the coordinate string as the name with Available set
// to false; it never returns an error upward.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) Result {
	key := fmt.Sprintf("%.5f,%.5f", lat, lon)
	if c.cache != nil {
		if name, ok := c.cache.Get(ctx, key); ok {
			return Result{Name: name, Available: true}
		}
	}

	name, err := c.lookup(ctx, lat, lon)
	if err != nil || name == "" {
		if err != nil {
			logger.Warn("reverse geocoding unavailable",
				logger.Float64("lat", lat),
				logger.Float64("lon", lon),
				logger.ErrorField(err))
		}
		return Fallback(lat, lon)
	}

	if c.cache != nil {
		c.cache.Set(ctx, key, name)
	}
	return Result{Name: name, Available: true}
}

// Fallback returns the unavailable result for a coordinate.
func Fallback(lat, lon float64) Result {
	return Result{Name: fmt.Sprintf("%.4f, %.4f", lat, lon), Available: false}
}

func (c *Client) lookup(ctx context.Context, lat, lon float64) (string, error) {
	endpoint := fmt.Sprintf("%s/reverse?lat=%s&lon=%s&format=json",
		c.baseURL,
		url.QueryEscape(fmt.Sprintf("%v", lat)),
		url.QueryEscape(fmt.Sprintf("%v", lon)))

	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		name, retryable, err := c.doLookup(ctx, endpoint)
		if err == nil {
			return name, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return "", lastErr
}

func (c *Client) doLookup(ctx context.Context, endpoint string) (name string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, err
	}
	// Nominatim's usage policy requires an identifying user agent.
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode >= 500, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("failed to decode geocoder response: %w", err)
	}

	return formatName(&body), false, nil
}

// formatName builds a short readable name: road, city (or town/village),
// state. Falls back to the full display name.
func formatName(r *nominatimResponse) string {
	var parts []string
	if r.Address.Road != "" {
		parts = append(parts, r.Address.Road)
	}
	switch {
	case r.Address.City != "":
		parts = append(parts, r.Address.City)
	case r.Address.Town != "":
		parts = append(parts, r.Address.Town)
	case r.Address.Village != "":
		parts = append(parts, r.Address.Village)
	}
	if r.Address.State != "" {
		parts = append(parts, r.Address.State)
	}
	if len(parts) == 0 {
		return r.DisplayName
	}
	return strings.Join(parts, ", ")
}
