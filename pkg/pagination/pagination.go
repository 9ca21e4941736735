package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the page size when a caller does not ask for one.
	DefaultLimit = 25
	// MaxLimit caps any single page.
	MaxLimit = 100
)

// Cursors are opaque to clients: a kind tag and its fields, joined with '|'
// and base64url encoded.
const (
	kindTime = "t"
	kindKey  = "k"
	sep      = "|"
)

var encoding = base64.RawURLEncoding

// Cursor positions a (created_at DESC, id DESC) listing such as import history.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer asks for one extra row so callers can tell whether another
// page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(cursor Cursor) string {
	return encode(kindTime, cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID.String())
}

// ParseCursor returns nil for an empty value.
func ParseCursor(value string) (*Cursor, error) {
	fields, err := decode(value, kindTime, 2)
	if err != nil || fields == nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields[0])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	id, err := uuid.Parse(fields[1])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}

// EncodeKeyCursor positions a listing ordered by a single string key, such as
// designs by design number.
func EncodeKeyCursor(key string) string {
	if key == "" {
		return ""
	}
	return encode(kindKey, key)
}

func ParseKeyCursor(value string) (string, error) {
	fields, err := decode(value, kindKey, 1)
	if err != nil || fields == nil {
		return "", err
	}
	if fields[0] == "" {
		return "", fmt.Errorf("invalid cursor format")
	}
	return fields[0], nil
}

func encode(kind string, fields ...string) string {
	return encoding.EncodeToString([]byte(kind + sep + strings.Join(fields, sep)))
}

// decode checks the kind tag and splits the payload into exactly n fields. The
// last field keeps any separators it contains.
func decode(value, kind string, n int) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := encoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	payload, ok := strings.CutPrefix(string(raw), kind+sep)
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}
	fields := strings.SplitN(payload, sep, n)
	if len(fields) != n {
		return nil, fmt.Errorf("invalid cursor format")
	}
	return fields, nil
}
