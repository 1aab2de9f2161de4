// Package geo provides one-shot, permission-gated device geolocation.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrPermissionDenied is returned when the user has not granted location
// access. The dispatcher reports it to the remote side verbatim; whether
// to ask again is the model's decision.
var ErrPermissionDenied = errors.New("Location access denied")

// Position is a device location fix.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator resolves the device's current position once per call. There is
// no retry loop at this layer.
type Locator interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// HTTPLocator resolves position via a lookup service returning
// {"latitude": ..., "longitude": ...}.
type HTTPLocator struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPLocator builds a locator for the given endpoint.
func NewHTTPLocator(endpoint string) *HTTPLocator {
	return &HTTPLocator{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// CurrentPosition performs the one-shot lookup.
func (l *HTTPLocator) CurrentPosition(ctx context.Context) (Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Endpoint, nil)
	if err != nil {
		return Position{}, fmt.Errorf("build location request: %w", err)
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return Position{}, fmt.Errorf("location lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return Position{}, ErrPermissionDenied
	}
	if resp.StatusCode != http.StatusOK {
		return Position{}, fmt.Errorf("location lookup: status %d", resp.StatusCode)
	}

	var pos Position
	if err := json.NewDecoder(resp.Body).Decode(&pos); err != nil {
		return Position{}, fmt.Errorf("decode location response: %w", err)
	}
	return pos, nil
}

// Denied is a locator for sessions where the user declined location
// sharing; every call reports permission denied.
type Denied struct{}

// CurrentPosition always returns ErrPermissionDenied.
func (Denied) CurrentPosition(context.Context) (Position, error) {
	return Position{}, ErrPermissionDenied
}
