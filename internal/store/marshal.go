package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/ir"
)

// ErrInvalidCursor is returned for a listing cursor the store did not issue.
var ErrInvalidCursor = errors.New("invalid cursor")

// marshalComposite converts a composite query to canonical JSON TEXT for
// storage, so equal queries are stored byte-identically.
func marshalComposite(cq envelope.CompositeQuery) (string, error) {
	data, err := ir.MarshalCanonical(cq)
	if err != nil {
		return "", fmt.Errorf("marshal composite query: %w", err)
	}
	return string(data), nil
}

func unmarshalComposite(data string) (envelope.CompositeQuery, error) {
	var cq envelope.CompositeQuery
	if err := json.Unmarshal([]byte(data), &cq); err != nil {
		return envelope.CompositeQuery{}, fmt.Errorf("unmarshal composite query: %w", err)
	}
	if cq.Queries == nil {
		cq.Queries = []envelope.QueryEnvelope{}
	}
	return cq, nil
}

// cursor is the keyset position after the last row of a page.
type cursor struct {
	createdAt int64
	id        string
}

// encodeCursor renders c as an opaque URL-safe token.
func encodeCursor(c cursor) string {
	raw := strconv.FormatInt(c.createdAt, 10) + ":" + c.id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(token string) (cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	ts, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return cursor{}, ErrInvalidCursor
	}
	createdAt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return cursor{createdAt: createdAt, id: id}, nil
}
