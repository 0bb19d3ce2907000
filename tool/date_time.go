package tool

import (
	"context"
	"time"
)

const (
	DateTimeToolName = "get_date_and_time"

	dateTimeLayout = "Monday, January 02, 2006, 03:04 PM"
)

// NewDateTimeTool reports the current time in loc. now defaults to time.Now.
func NewDateTimeTool(loc *time.Location, now func() time.Time) Tool {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}

	return New(DateTimeToolName, `Returns the current date and time in a human-readable format.
Useful when you need to know the current date or time, e.g. whether the store is open now.
No input is required.`, nil, func(context.Context, string) (string, error) {
		return now().In(loc).Format(dateTimeLayout), nil
	})
}
