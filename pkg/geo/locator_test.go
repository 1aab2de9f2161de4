package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPLocatorReturnsPosition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"latitude": 37.4419, "longitude": -122.143}`))
	}))
	defer srv.Close()

	pos, err := NewHTTPLocator(srv.URL).CurrentPosition(context.Background())
	if err != nil {
		t.Fatalf("CurrentPosition: %v", err)
	}
	if pos.Latitude != 37.4419 || pos.Longitude != -122.143 {
		t.Errorf("position = %+v", pos)
	}
}

func TestHTTPLocatorPermissionDenied(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusUnauthorized} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		_, err := NewHTTPLocator(srv.URL).CurrentPosition(context.Background())
		srv.Close()
		if !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("status %d: err = %v, want ErrPermissionDenied", status, err)
		}
	}
}

func TestHTTPLocatorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPLocator(srv.URL).CurrentPosition(context.Background())
	if err == nil {
		t.Fatal("CurrentPosition = nil error, want status error")
	}
	if errors.Is(err, ErrPermissionDenied) {
		t.Error("5xx mapped to permission denied, want generic error")
	}
}

func TestDenied(t *testing.T) {
	_, err := Denied{}.CurrentPosition(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
	if err.Error() != "Location access denied" {
		t.Errorf("message = %q, want %q", err.Error(), "Location access denied")
	}
}
