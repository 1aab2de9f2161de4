package tools

import "github.com/railvoice/conductor/pkg/core/protocol"

var dayTypeEnum = []string{"Weekday", "Weekend", "Saturday", "Sunday"}

// Declarations is the static tool list sent in the configuration envelope:
// the three function tools plus the opaque built-in web-search capability.
func Declarations() []protocol.Tool {
	return []protocol.Tool{
		{
			FunctionDeclarations: []protocol.FunctionDeclaration{
				{
					Name:        NameCheckScheduleCache,
					Description: "Checks the database for existing train times.",
					Parameters: &protocol.Schema{
						Type: "OBJECT",
						Properties: map[string]protocol.Schema{
							"origin":      {Type: "STRING", Desc: "Starting station (e.g. 'Palo Alto')"},
							"destination": {Type: "STRING", Desc: "Destination station (e.g. 'San Francisco')"},
							"day_type":    {Type: "STRING", Enum: dayTypeEnum, Desc: "Type of day"},
						},
						Required: []string{"origin", "destination", "day_type"},
					},
				},
				{
					Name:        NameCacheScheduleEntry,
					Description: "Saves a specific train route and time to the database.",
					Parameters: &protocol.Schema{
						Type: "OBJECT",
						Properties: map[string]protocol.Schema{
							"origin":         {Type: "STRING"},
							"destination":    {Type: "STRING"},
							"departure_time": {Type: "STRING", Desc: "Standardized HH:MM AM/PM format"},
							"day_type":       {Type: "STRING", Enum: dayTypeEnum},
							"train_number":   {Type: "STRING", Desc: "Train number if available"},
						},
						Required: []string{"origin", "destination", "departure_time", "day_type"},
					},
				},
				{
					Name:        NameGetUserLocation,
					Description: "Gets the user's current location (latitude and longitude). Use this when the user asks about routes from their current location.",
					Parameters:  &protocol.Schema{Type: "OBJECT"},
				},
			},
		},
		{GoogleSearch: &struct{}{}},
	}
}
