package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrBadCursor marks a continuation token the store did not mint. Callers
// treat it as a validation error, not a backing-store failure.
var ErrBadCursor = errors.New("malformed continuation token")

// cursor is the page boundary behind an opaque continuation token. For
// status-index queries both fields are set; plain scans carry only the id.
type cursor struct {
	CreatedAt *time.Time `json:"c,omitempty"`
	ID        string     `json:"id"`
}

func encodeCursor(c cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(token string) (cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, ErrBadCursor
	}
	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return cursor{}, ErrBadCursor
	}
	if c.ID == "" {
		return cursor{}, ErrBadCursor
	}
	return c, nil
}
