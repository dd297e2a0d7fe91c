package metadata

import (
	"context"
	"errors"
	"testing"

	"praxos/internal/model"
)

func TestMemoryStoreCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	meta := model.VaultMetadata{
		VaultAddress: "0xAbCdEf0000000000000000000000000000000001",
		Description:  "Bond ladder",
		APR:          6.5,
		IsNew:        true,
		Assets:       []model.AssetEntry{{Name: "Corporate Bond Alpha", Type: "bond"}},
	}
	if err := store.Put(ctx, meta); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "0xabcdef0000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != "Bond ladder" || got.APR != 6.5 || len(got.Assets) != 1 {
		t.Fatalf("metadata mismatch: %+v", got)
	}

	if _, err := store.Get(ctx, "0x0000000000000000000000000000000000000002"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreBatchKeepsRequestedKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Put(ctx, model.VaultMetadata{VaultAddress: "0xAA", Description: "a"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.GetBatch(ctx, []string{"0xaA", "0xbb"})
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got["0xaA"].Description != "a" {
		t.Fatalf("batch should key by requested address: %+v", got)
	}
}

func TestMemoryStoreRequiresAddress(t *testing.T) {
	if err := NewMemoryStore().Put(context.Background(), model.VaultMetadata{}); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
