package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/railvoice/conductor/pkg/schedule"
)

// Tool names the model invokes, matched exactly.
const (
	NameCheckScheduleCache = "check_schedule_cache"
	NameCacheScheduleEntry = "cache_schedule_entry"
	NameGetUserLocation    = "get_user_location"
)

// ScheduleStore is the external keyed insert/query service the schedule
// tools delegate persistence to.
type ScheduleStore interface {
	Query(ctx context.Context, origin, destination string, day schedule.DayType) ([]string, error)
	Insert(ctx context.Context, e schedule.Entry) error
}

// LookupResult is the payload for a cache query.
type LookupResult struct {
	Found bool     `json:"found"`
	Times []string `json:"times,omitempty"`
}

// RecordResult is the payload for a cache insert.
type RecordResult struct {
	Success bool `json:"success"`
}

// LookupHandler answers check_schedule_cache against the store.
type LookupHandler struct {
	Store ScheduleStore
}

// Name implements Handler.
func (LookupHandler) Name() string { return NameCheckScheduleCache }

// Call queries stored departure times for a route. Matching is
// case-insensitive and results arrive ordered ascending; an empty cache is
// an explicit not-found result, not a fault.
func (h LookupHandler) Call(ctx context.Context, args map[string]any) (any, error) {
	origin, err := stringArg(args, "origin")
	if err != nil {
		return nil, err
	}
	destination, err := stringArg(args, "destination")
	if err != nil {
		return nil, err
	}
	dayRaw, err := stringArg(args, "day_type")
	if err != nil {
		return nil, err
	}
	day, err := schedule.ParseDayType(dayRaw)
	if err != nil {
		return nil, err
	}

	times, err := h.Store.Query(ctx, origin, destination, day)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return LookupResult{Found: false}, nil
	}
	return LookupResult{Found: true, Times: times}, nil
}

// RecordHandler answers cache_schedule_entry against the store.
type RecordHandler struct {
	Store ScheduleStore
}

// Name implements Handler.
func (RecordHandler) Name() string { return NameCacheScheduleEntry }

// Call inserts one learned schedule entry. The store does not deduplicate;
// that is an external-store concern.
func (h RecordHandler) Call(ctx context.Context, args map[string]any) (any, error) {
	origin, err := stringArg(args, "origin")
	if err != nil {
		return nil, err
	}
	destination, err := stringArg(args, "destination")
	if err != nil {
		return nil, err
	}
	departure, err := stringArg(args, "departure_time")
	if err != nil {
		return nil, err
	}
	dayRaw, err := stringArg(args, "day_type")
	if err != nil {
		return nil, err
	}
	day, err := schedule.ParseDayType(dayRaw)
	if err != nil {
		return nil, err
	}
	trainNumber, _ := optionalStringArg(args, "train_number")

	entry := schedule.Entry{
		Origin:        origin,
		Destination:   destination,
		DepartureTime: departure,
		DayType:       day,
		TrainNumber:   trainNumber,
	}
	if err := h.Store.Insert(ctx, entry); err != nil {
		return nil, err
	}
	return RecordResult{Success: true}, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

func optionalStringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
