package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	t.Run("store and retrieve string", func(t *testing.T) {
		if err := cache.Set(ctx, "test-key-1", "test-value", time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		var got string
		if err := cache.Get(ctx, "test-key-1", &got); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != "test-value" {
			t.Errorf("Get() = %v, want test-value", got)
		}
	})

	t.Run("store and retrieve price record", func(t *testing.T) {
		baseline := 207.2
		record := domain.PriceRecord{
			ProductName:   "Tumbling Mat, Ivory",
			Identifier:    "734126195622",
			BaselinePrice: &baseline,
			Prices:        map[string]float64{"maisonette": 207.2, "target": 255.99},
			Source:        domain.SourceLive,
		}
		if err := cache.Set(ctx, "prices:734126195622", record, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		var got domain.PriceRecord
		if err := cache.Get(ctx, "prices:734126195622", &got); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.ProductName != record.ProductName {
			t.Errorf("ProductName = %q, want %q", got.ProductName, record.ProductName)
		}
		if got.Prices["target"] != 255.99 {
			t.Errorf("target price = %v, want 255.99", got.Prices["target"])
		}
		if got.BaselinePrice == nil || *got.BaselinePrice != 207.2 {
			t.Errorf("BaselinePrice = %v, want 207.2", got.BaselinePrice)
		}
	})

	t.Run("store with short TTL", func(t *testing.T) {
		if err := cache.Set(ctx, "test-key-3", "expires-soon", time.Millisecond); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		time.Sleep(10 * time.Millisecond)

		var got string
		if err := cache.Get(ctx, "test-key-3", &got); !errors.Is(err, domain.ErrCacheMiss) {
			t.Errorf("Expected cache miss after expiration, got error = %v", err)
		}
	})

	t.Run("stored value is a snapshot", func(t *testing.T) {
		prices := map[string]float64{"target": 1}
		if err := cache.Set(ctx, "snapshot", prices, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		prices["target"] = 2

		var got map[string]float64
		if err := cache.Get(ctx, "snapshot", &got); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got["target"] != 1 {
			t.Errorf("cached value changed with caller map: %v", got["target"])
		}
	})

	t.Run("unencodable value", func(t *testing.T) {
		if err := cache.Set(ctx, "bad", make(chan int), time.Minute); err == nil {
			t.Error("Set() error = nil, want encode error")
		}
	})
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()

	var got string
	err := cache.Get(context.Background(), "non-existent-key", &got)
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	key := "delete-test"
	if err := cache.Set(ctx, key, "value", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	var got string
	if err := cache.Get(ctx, key, &got); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() after delete error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Exists(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	exists, err := cache.Exists(ctx, "exists-test")
	if err != nil || exists {
		t.Errorf("Exists() = %v, %v, want false, nil for non-existent key", exists, err)
	}

	if err := cache.Set(ctx, "exists-test", "value", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	exists, err = cache.Exists(ctx, "exists-test")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v, want true, nil after setting value", exists, err)
	}

	if err := cache.Set(ctx, "short-ttl", "value", time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	exists, err = cache.Exists(ctx, "short-ttl")
	if err != nil || exists {
		t.Errorf("Exists() = %v, %v, want false, nil after expiration", exists, err)
	}
}

func TestMemoryCache_RemoveExpired(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	_ = cache.Set(ctx, "live", "value", time.Hour)
	_ = cache.Set(ctx, "stale", "value", time.Millisecond)

	cache.removeExpired(time.Now().Add(time.Minute))

	if size := cache.Size(); size != 1 {
		t.Errorf("Size() = %d, want 1 after removing expired entries", size)
	}
}

func TestMemoryCache_SizeAndClear(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 for empty cache", size)
	}

	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		if err := cache.Set(ctx, key, i, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if size := cache.Size(); size != 5 {
		t.Errorf("Size() = %d, want 5", size)
	}

	cache.Clear()
	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 after clear", size)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := string(rune('a' + id))
			if err := cache.Set(ctx, key, id, time.Minute); err != nil {
				t.Errorf("Concurrent Set() error = %v", err)
			}
			var got int
			if err := cache.Get(ctx, key, &got); err != nil {
				t.Errorf("Concurrent Get() error = %v", err)
			}
		}(i)
	}
	wg.Wait()
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	cache := NewMemoryCache()
	if err := cache.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNew(t *testing.T) {
	store, err := New(context.Background(), TypeMemory, "")
	if err != nil {
		t.Fatalf("New(memory) error = %v", err)
	}
	defer store.Close()
	if _, ok := store.(*MemoryCache); !ok {
		t.Errorf("New(memory) = %T, want *MemoryCache", store)
	}

	if _, err := New(context.Background(), "memcached", ""); err == nil {
		t.Error("New(memcached) error = nil, want error")
	}
}
