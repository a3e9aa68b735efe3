// Package sync reconciles local reading records with a remote record store.
package sync

import (
	"context"
	"time"

	"github.com/islabooks/isla/internal/domain"
)

// Record is the wire representation of one syncable entity.
type Record struct {
	Kind       domain.RecordKind `json:"kind"`
	RemoteID   string            `json:"remote_id,omitempty"`
	NaturalKey string            `json:"natural_key"`
	Fields     map[string]any    `json:"fields"`
	ModifiedAt time.Time         `json:"modified_at"`
}

// RecordStore is the remote side of the sync engine.
//
// Save creates or updates by natural key and returns the record with its
// remote ID filled in, so repeated pushes of the same record are safe.
// Query returns records newest-first.
type RecordStore interface {
	Save(ctx context.Context, rec Record) (Record, error)
	Query(ctx context.Context, kind domain.RecordKind) ([]Record, error)
	DeleteAll(ctx context.Context, kind domain.RecordKind) error
}

// AccountStatus reports whether a sync account is usable.
type AccountStatus int

const (
	// AccountAvailable means sync can proceed.
	AccountAvailable AccountStatus = iota
	// AccountMissing means no account is signed in.
	AccountMissing
	// AccountRestricted means the account exists but cannot sync
	// (parental controls, enterprise policy).
	AccountRestricted
)

// AccountProvider reports the current sync account status. Injected so the
// engine never talks to platform account APIs directly.
type AccountProvider interface {
	Status(ctx context.Context) (AccountStatus, error)
}

// StaticAccountProvider always reports a fixed status. Useful for tests and
// for deployments without account gating.
type StaticAccountProvider struct {
	AccountStatus AccountStatus
}

// Status implements AccountProvider.
func (p StaticAccountProvider) Status(context.Context) (AccountStatus, error) {
	return p.AccountStatus, nil
}

// Field accessors tolerate the numeric widening JSON round-trips cause.

func fieldString(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func fieldFloat(fields map[string]any, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func fieldInt(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func fieldBool(fields map[string]any, key string) bool {
	if v, ok := fields[key].(bool); ok {
		return v
	}
	return false
}
