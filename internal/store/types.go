// Package store defines how bill records are persisted and queried.
package store

import (
	"context"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

// Default query limits.
const (
	DefaultListLimit     = 50
	ForecastHistoryLimit = 100
	TrendHistoryLimit    = 50
	StatsHistoryLimit    = 1000
)

// BillStore saves bill records and lists them newest first.
type BillStore interface {
	// SaveBill persists a new record.
	SaveBill(ctx context.Context, bill *domain.BillRecord) error

	// ListBillsByUser returns up to limit records of a user ordered by
	// upload time, newest first.
	ListBillsByUser(ctx context.Context, userID string, limit int) ([]*domain.BillRecord, error)

	// ListBillsByUserAndType is ListBillsByUser restricted to one bill type.
	ListBillsByUserAndType(ctx context.Context, userID string, billType domain.BillType, limit int) ([]*domain.BillRecord, error)
}

// ChecksumFinder looks up a previously stored document by content checksum.
type ChecksumFinder interface {
	// FindBillByChecksum returns nil and no error when no record matches.
	FindBillByChecksum(ctx context.Context, userID, checksum string) (*domain.BillRecord, error)
}

// Store is implemented by every persistent backend.
type Store interface {
	BillStore
	ChecksumFinder
	Close() error
}

// NormalizeLimit falls back to DefaultListLimit for non-positive limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
