package domain

import "context"

// RecordSink is the document store harvested records land in.
type RecordSink interface {
	// UpsertByIdentity stores the record under its identity, replacing any
	// document already stored with the same identity.
	UpsertByIdentity(ctx context.Context, rec Record) error

	// InsertPlain stores a record that has no identity under a fresh key.
	// Repeated inserts of the same content produce duplicates.
	InsertPlain(ctx context.Context, rec Record) error

	Close() error
}
