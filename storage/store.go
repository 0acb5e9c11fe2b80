package storage

import (
	"time"

	"github.com/Markiayn/Parser/models"
)

// Store is the partition-table contract consumed by the acquisition pipeline
// and the publication selector. Partitions are per-city tables; every write is
// idempotent (insert-if-absent, flag update) so callers need no locking beyond
// what the implementation provides.
type Store interface {
	EnsurePartition(table string) error
	ClearPartition(table string) error

	// InsertIfAbsent inserts the apartment unless its ID already exists in the
	// partition. Returns true when a row was actually written.
	InsertIfAbsent(table string, apt *models.Apartment) (bool, error)

	// ListUnpublished returns unpublished apartments ordered by creation
	// timestamp descending, unknown timestamps last. A non-nil since restricts
	// the result to rows created at or after it.
	ListUnpublished(table string, limit int, since *time.Time) ([]models.Apartment, error)

	FindByID(table string, id int) (*models.Apartment, error)
	MarkPublished(table string, id int) error

	Close() error
}

const timeLayout = "2006-01-02 15:04:05"
