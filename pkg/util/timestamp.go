package util

import (
	"encoding/json"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Layouts of timestamps that carry no time zone, in the order in which
// they are attempted. Such timestamps are written by tools that store
// the local time of the host, and are interpreted as such.
var localTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp is a time.Time that is stored in JSON documents. It is
// always written in RFC 3339 format. When read, RFC 3339 and ISO 8601
// timestamps without a time zone are both accepted, as are null
// values, which yield the zero time.
type Timestamp struct {
	time.Time
}

// MarshalJSON writes the timestamp in RFC 3339 format.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return t.Time.MarshalJSON()
}

// UnmarshalJSON parses a timestamp, with or without a time zone.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return status.Errorf(codes.InvalidArgument, "Timestamp must be a string, not %s", data)
	}
	return t.parse(s)
}

func (t *Timestamp) parse(s string) error {
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range localTimestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return status.Errorf(codes.InvalidArgument, "Invalid timestamp %#v", s)
}
