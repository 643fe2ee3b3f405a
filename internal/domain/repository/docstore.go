// Package repository defines the persistence contracts the application
// layer depends on. The concrete document store lives in
// internal/infrastructure and is injected at startup.
package repository

import (
	"context"
	"errors"
)

// Collection names used by the account domain. Active users and
// tombstones live in disjoint collections so active queries never see
// deleted records.
const (
	CollectionUsers        = "users"
	CollectionDeletedUsers = "deletedUsers"
	CollectionAddresses    = "addresses"
	CollectionProfiles     = "profiles"
	CollectionDevices      = "devices"
	CollectionActivityLogs = "activityLogs"
)

// ErrDocNotFound is returned by Get, Update and Delete when no document
// exists under the given id.
var ErrDocNotFound = errors.New("document not found")

// Filter is a single equality predicate. A query applies all of its
// filters ANDed together.
type Filter struct {
	Field string
	Value any
}

// Write is one element of an atomic batch: a full document set, or a
// delete when Delete is true.
type Write struct {
	Collection string
	ID         string
	Data       any
	Delete     bool
}

// Document is a read snapshot. DataTo decodes the stored fields into
// dest, which must be a pointer to a struct or map.
type Document interface {
	ID() string
	DataTo(dest any) error
}

// Txn is the view of the store inside RunAtomic. Reads observe the
// state at transaction start; Set and Delete are staged and applied
// together when the callback returns nil.
type Txn interface {
	Get(collection, id string) (Document, error)
	Query(collection string, filters ...Filter) ([]Document, error)
	Set(collection, id string, data any)
	Delete(collection, id string)
}

// DocumentStore is the contract over the schemaless document database.
// A write is durable once the call returns nil, and the writes of
// ApplyBatch or a RunAtomic callback become visible together or not at
// all.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Set(ctx context.Context, collection, id string, data any) error
	// Update merges the given fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	// ApplyBatch applies all writes atomically.
	ApplyBatch(ctx context.Context, writes []Write) error
	// RunAtomic executes fn inside a transaction so a read-then-write
	// sequence (such as a uniqueness check followed by a create) cannot
	// interleave with a concurrent writer.
	RunAtomic(ctx context.Context, fn func(tx Txn) error) error
}
