package memory

import (
	"context"
	"testing"

	"bankroll/internal/core"
	"bankroll/internal/storage"
	"bankroll/internal/storage/storagetest"

	"github.com/shopspring/decimal"
)

func TestMemoryStore(t *testing.T) {
	storagetest.RunStoreContract(t, func(t *testing.T) storage.Store {
		return New()
	})
}

func TestNewWithRecordsAssignsIDs(t *testing.T) {
	s := NewWithRecords([]core.BetRecord{
		{UserID: "u1", Amount: decimal.NewFromInt(1)},
		{ID: 7, UserID: "u1", Amount: decimal.NewFromInt(2)},
	})
	created, err := s.InsertRecord(context.Background(), core.BetRecord{UserID: "u1", Amount: decimal.NewFromInt(3)})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.ID != 8 {
		t.Fatalf("expected id 8 after seeded id 7, got %d", created.ID)
	}
	list, _ := s.ListRecords(context.Background(), "u1")
	if len(list) != 3 || list[0].ID != 1 {
		t.Fatalf("unexpected seeded list %+v", list)
	}
}
