package schedule

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestQueryOrderedAscending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Inserted out of order; Query must sort by departure time.
	entries := []Entry{
		{Origin: "Palo Alto", Destination: "San Francisco", DepartureTime: "08:35 AM", DayType: Weekday},
		{Origin: "Palo Alto", Destination: "San Francisco", DepartureTime: "08:05 AM", DayType: Weekday, TrainNumber: "309"},
	}
	for _, e := range entries {
		if err := s.Insert(ctx, e); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	times, err := s.Query(ctx, "Palo Alto", "San Francisco", Weekday)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(times) != 2 || times[0] != "08:05 AM" || times[1] != "08:35 AM" {
		t.Errorf("times = %v, want [08:05 AM 08:35 AM]", times)
	}
}

func TestQueryCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, Entry{
		Origin: "Palo Alto", Destination: "San Francisco",
		DepartureTime: "08:05 AM", DayType: Weekday,
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	times, err := s.Query(ctx, "palo alto", "SAN FRANCISCO", Weekday)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(times) != 1 {
		t.Errorf("times = %v, want one row", times)
	}
}

func TestQueryFiltersDayType(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, Entry{
		Origin: "Palo Alto", Destination: "San Francisco",
		DepartureTime: "10:00 AM", DayType: Saturday,
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	times, err := s.Query(ctx, "Palo Alto", "San Francisco", Weekday)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(times) != 0 {
		t.Errorf("times = %v, want none for a different day type", times)
	}
}

func TestQueryEmptyStore(t *testing.T) {
	s := openTestStore(t)

	times, err := s.Query(context.Background(), "Palo Alto", "San Francisco", Weekday)
	if err != nil {
		t.Fatalf("Query on empty store: %v", err)
	}
	if len(times) != 0 {
		t.Errorf("times = %v, want empty", times)
	}
}

func TestParseDayType(t *testing.T) {
	cases := []struct {
		in      string
		want    DayType
		wantErr bool
	}{
		{"Weekday", Weekday, false},
		{"Weekend", Weekend, false},
		{"Saturday", Saturday, false},
		{"Sunday", Sunday, false},
		{" Weekday ", Weekday, false},
		{"weekday", "", true},
		{"Holiday", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseDayType(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDayType(%q) = %v, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDayType(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDayType(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
