package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/bill-intelligence/internal/domain"
	"github.com/dvloznov/bill-intelligence/internal/store"
)

// Store keeps bill records in memory and is safe for concurrent use.
// Data is lost on restart; use a database-backed store for persistence.
type Store struct {
	mu    sync.RWMutex
	bills []*domain.BillRecord
	ids   map[string]struct{}
}

// NewStore creates an empty in-memory bill store.
func NewStore() *Store {
	return &Store{ids: make(map[string]struct{})}
}

// SaveBill implements store.BillStore.
func (s *Store) SaveBill(ctx context.Context, bill *domain.BillRecord) error {
	if bill.ID == "" {
		return fmt.Errorf("bill ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[bill.ID]; exists {
		return fmt.Errorf("bill already exists: %s", bill.ID)
	}

	billCopy := *bill
	s.bills = append(s.bills, &billCopy)
	s.ids[bill.ID] = struct{}{}
	return nil
}

// ListBillsByUser implements store.BillStore.
func (s *Store) ListBillsByUser(ctx context.Context, userID string, limit int) ([]*domain.BillRecord, error) {
	return s.list(userID, "", limit), nil
}

// ListBillsByUserAndType implements store.BillStore.
func (s *Store) ListBillsByUserAndType(ctx context.Context, userID string, billType domain.BillType, limit int) ([]*domain.BillRecord, error) {
	return s.list(userID, billType, limit), nil
}

// FindBillByChecksum implements store.ChecksumFinder.
func (s *Store) FindBillByChecksum(ctx context.Context, userID, checksum string) (*domain.BillRecord, error) {
	if checksum == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bills {
		if b.UserID == userID && b.Checksum == checksum {
			billCopy := *b
			return &billCopy, nil
		}
	}
	return nil, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) list(userID string, billType domain.BillType, limit int) []*domain.BillRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.BillRecord{}
	// Walk backwards so later inserts come first among equal timestamps.
	for i := len(s.bills) - 1; i >= 0; i-- {
		b := s.bills[i]
		if b.UserID != userID {
			continue
		}
		if billType != "" && b.BillType != billType {
			continue
		}
		billCopy := *b
		result = append(result, &billCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UploadTimestamp.After(result[j].UploadTimestamp)
	})

	if limit = store.NormalizeLimit(limit); limit < len(result) {
		result = result[:limit]
	}
	return result
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)
