// Package store provides access to the remote entity store that holds meetings and guests.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by every call when the store base URL, app id or API key is missing.
var ErrNotConfigured = errors.New("entity store not configured: missing base URL, app id or API key")

// Fields are the values written to an entity.
type Fields map[string]any

// Record is an entity as returned by the store.
type Record map[string]any

// ID returns the store-assigned identifier of r, or "" if it has none.
func (r Record) ID() string {
	for _, key := range []string{"id", "_id"} {
		switch v := r[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// String returns the string value of field, or "" if absent.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Store is the find/create/update capability the reconciler needs.
// Find returns a nil Record and nil error when nothing matches.
type Store interface {
	Find(ctx context.Context, entity, field, value string) (Record, error)
	Create(ctx context.Context, entity string, fields Fields) (Record, error)
	Update(ctx context.Context, entity, id string, fields Fields) (Record, error)
}

// StatusError reports a non-success response from the store.
type StatusError struct {
	Entity string
	Method string
	Status int
	Body   string // truncated
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Entity, e.Status, e.Body)
}
