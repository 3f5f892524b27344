package model

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// APITime is a time that marshals to ISO-8601 in UTC with millisecond
// precision.
type APITime time.Time

const apiTimeFormat = "\"2006-01-02T15:04:05.000Z\""

// NewTime creates a new APITime from an existing time.Time. It handles
// changing the timezone to UTC.
func NewTime(t time.Time) APITime {
	utc := t.In(time.UTC)
	return APITime(time.Date(utc.Year(), utc.Month(), utc.Day(), utc.Hour(),
		utc.Minute(), utc.Second(), utc.Nanosecond()/int(time.Millisecond)*int(time.Millisecond), time.UTC))
}

// MarshalJSON writes zero times as null.
func (at APITime) MarshalJSON() ([]byte, error) {
	t := time.Time(at)
	if t.IsZero() {
		return json.Marshal(nil)
	}
	return []byte(t.Format(apiTimeFormat)), nil
}

func (at *APITime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*at = APITime(time.Time{})
		return nil
	}

	t, err := time.ParseInLocation(apiTimeFormat, string(data), time.UTC)
	if err != nil {
		return errors.Wrap(err, "parsing time")
	}
	*at = NewTime(t)
	return nil
}
