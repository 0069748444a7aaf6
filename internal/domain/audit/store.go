package audit

import "context"

// Trail persists authorization decision records.
// Interface owned by domain per hexagonal architecture.
type Trail interface {
	// Append stores one record. Failures must not block enforcement;
	// callers log and continue.
	Append(ctx context.Context, rec Record) error

	// Recent returns up to n of the latest records, newest first.
	Recent(n int) []Record

	// Flush forces pending records to storage. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close() error
}
