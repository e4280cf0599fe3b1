// Package store defines the session record store and its two backends
// (TOML file and SQLite). Records are created by external tooling; claimd
// only reads them and transitions their status.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates no session with the given ID exists.
	ErrNotFound = errors.New("store: session not found")

	// ErrUnknownBackend indicates an unrecognized backend name in config.
	ErrUnknownBackend = errors.New("store: unknown backend")
)

// Status is the lifecycle state of a session record.
type Status string

const (
	// StatusActive marks a session eligible for pickup.
	StatusActive Status = "active"

	// StatusInProgress marks a session claimed by a running processor.
	StatusInProgress Status = "in_progress"

	// StatusError marks a session that failed terminally and needs an
	// external reset before it is picked up again.
	StatusError Status = "error"
)

// Session is one automatable account and its processing state.
// AccountID and Credential are opaque and must never appear in logs.
type Session struct {
	ID              string
	AccountID       string
	Credential      string
	LastSuccessAt   *time.Time
	Status          Status
	InProgressSince *time.Time
	ErrorReason     string
}

// Fields describes a partial update to a session record. Nil members are
// left untouched; the Clear flags reset their nullable counterparts.
type Fields struct {
	Status          *Status
	LastSuccessAt   *time.Time
	InProgressSince *time.Time
	ClearInProgress bool
	ErrorReason     *string
	ClearError      bool
}

// Store is the uniform interface both backends implement. ListByStatus
// returns sessions ordered by ID ascending; the orchestrator relies on
// that ordering.
type Store interface {
	ListByStatus(ctx context.Context, status Status) ([]Session, error)
	Put(ctx context.Context, s Session) error
	UpdateFields(ctx context.Context, id string, fields Fields) error
	CountByStatus(ctx context.Context) (map[Status]int, error)
	Close() error
}
