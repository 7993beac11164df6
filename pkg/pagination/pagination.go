package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Cursors are URL-safe base64 of "<kind>|<fields...>" so they survive a
// query string without escaping.
const (
	kindTime     = "t"
	kindSequence = "s"
)

var encoding = base64.RawURLEncoding

var ErrInvalidCursor = errors.New("invalid cursor")

// Params are the paging inputs a list endpoint accepts.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is a keyset position for rows ordered by (created_at, id) descending.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit maps a non-positive limit to DefaultLimit and caps at MaxLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Trim takes rows fetched with limit+1 and returns the page plus the cursor
// of its last row, or "" when there is no further page.
func Trim[T any](rows []T, limit int, cursorOf func(T) string) ([]T, string) {
	if limit <= 0 || len(rows) <= limit {
		return rows, ""
	}
	page := rows[:limit]
	return page, cursorOf(page[limit-1])
}

func EncodeCursor(c Cursor) string {
	return encode(kindTime, strconv.FormatInt(c.CreatedAt.UnixNano(), 10), c.ID.String())
}

// ParseCursor returns nil for a blank value.
func ParseCursor(value string) (*Cursor, error) {
	fields, err := decode(value, kindTime, 2)
	if err != nil || fields == nil {
		return nil, err
	}
	nanos, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp", ErrInvalidCursor)
	}
	id, err := uuid.Parse(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: id", ErrInvalidCursor)
	}
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// EncodeSequenceCursor positions a page before sequence in a table paged by a
// monotonic sequence.
func EncodeSequenceCursor(sequence int64) string {
	return encode(kindSequence, strconv.FormatInt(sequence, 10))
}

// ParseSequenceCursor returns 0 for a blank value.
func ParseSequenceCursor(value string) (int64, error) {
	fields, err := decode(value, kindSequence, 1)
	if err != nil || fields == nil {
		return 0, err
	}
	seq, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("%w: sequence", ErrInvalidCursor)
	}
	return seq, nil
}

func encode(kind string, fields ...string) string {
	return encoding.EncodeToString([]byte(kind + "|" + strings.Join(fields, "|")))
}

func decode(value, kind string, n int) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := encoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64", ErrInvalidCursor)
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != n+1 || parts[0] != kind {
		return nil, fmt.Errorf("%w: wrong cursor kind", ErrInvalidCursor)
	}
	return parts[1:], nil
}
