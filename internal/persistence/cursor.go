// Package persistence holds what the session stores share.
package persistence

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scottdixon-github/App-Garden/internal/domain"
)

// ErrInvalidCursor wraps every failure to read a page token.
var ErrInvalidCursor = errors.New("invalid cursor")

// cursorToken is the JSON body of a page token.
type cursorToken struct {
	At time.Time `json:"at"`
	ID string    `json:"id"`
}

// EncodeCursor returns the opaque page token for c, or "" for nil.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw, err := json.Marshal(cursorToken{At: c.CompletedAt.UTC(), ID: c.ID})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor reverses EncodeCursor. A blank token means the first page.
func DecodeCursor(token string) (*domain.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var tok cursorToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if tok.ID == "" || tok.At.IsZero() {
		return nil, fmt.Errorf("%w: missing position", ErrInvalidCursor)
	}
	return &domain.Cursor{CompletedAt: tok.At, ID: tok.ID}, nil
}
