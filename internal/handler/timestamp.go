package handler

import (
	"bytes"
	"fmt"
	"time"
)

// localLayout is the zone-less wire format of showtime timestamps.
const localLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a time.Time on the wire. It accepts RFC 3339 as well as the
// zone-less form, which is read as UTC, and always renders zone-less UTC.
type Timestamp struct{ time.Time }

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("timestamp must be a string, got %s", b)
	}
	s := string(b[1 : len(b)-1])
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = v.UTC()
		return nil
	}
	v, err := time.ParseInLocation(localLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q, want %s", s, "yyyy-MM-ddTHH:mm:ss")
	}
	t.Time = v
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(localLayout) + `"`), nil
}
