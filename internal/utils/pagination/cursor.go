package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Cursor is the opaque pagination state we encode/decode.
// ID + UnixMilli establish a stable position in a (time DESC, id DESC) list.
type Cursor struct {
	ID        string `json:"id"`
	UnixMilli int64  `json:"ts,omitempty"`
}

// At builds the cursor for the last row of a page.
func At(id string, ts time.Time) Cursor {
	return Cursor{ID: id, UnixMilli: ts.UnixMilli()}
}

// Empty reports whether this is the first page.
func (c Cursor) Empty() bool { return c.ID == "" || c.UnixMilli <= 0 }

// Time returns the cursor timestamp.
func (c Cursor) Time() time.Time { return time.UnixMilli(c.UnixMilli).UTC() }

// Encode converts a Cursor into a Base64 string.
func Encode(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Decode parses a Base64 string into a Cursor.
// Empty token → empty cursor (first page).
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token")
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token")
	}
	return c, nil
}

// Limit clamps a requested page size.
func Limit(requested, def, max int) int {
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}
