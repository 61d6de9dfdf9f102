package processor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/phambaophuc/image-optimizer/internal/models"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) GetFromCache(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[key], nil
}

func (c *memoryCache) SetCache(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

type countingProcessor struct {
	inner ItemProcessor
	calls int
}

func (c *countingProcessor) Optimize(ctx context.Context, in models.ImageInput, q int) (*models.OptimizationResult, error) {
	c.calls++
	return c.inner.Optimize(ctx, in, q)
}

func TestCachedProcessor_HitSkipsWork(t *testing.T) {
	inner := &countingProcessor{inner: NewImageProcessor(MaxFileSize, nil)}
	cache := newMemoryCache()
	p := NewCachedProcessor(inner, cache, nil)

	data := pngBytes(t, 20, 20)
	first, err := p.Optimize(context.Background(), models.NewImageInput("a.png", "image/png", data), 80)
	if err != nil {
		t.Fatal(err)
	}

	second, err := p.Optimize(context.Background(), models.NewImageInput("renamed.png", "image/png", data), 80)
	if err != nil {
		t.Fatal(err)
	}

	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if second.OriginalName != "renamed.png" {
		t.Errorf("cached result should carry the new name, got %q", second.OriginalName)
	}
	if second.OptimizedSize != first.OptimizedSize || second.OutputMimeType != first.OutputMimeType {
		t.Errorf("cached result differs: %+v vs %+v", second, first)
	}
}

func TestCachedProcessor_QualityIsPartOfKey(t *testing.T) {
	data := jpegBytes(t, 16, 16)
	in := models.NewImageInput("a.jpg", "image/jpeg", data)

	if GenerateCacheKey(in, 50) == GenerateCacheKey(in, 60) {
		t.Error("different qualities must not share a key")
	}
	if GenerateCacheKey(in, 150) != GenerateCacheKey(in, 100) {
		t.Error("clamped qualities should share a key")
	}
}

func TestCachedProcessor_CacheErrorFallsThrough(t *testing.T) {
	inner := &countingProcessor{inner: NewImageProcessor(MaxFileSize, nil)}
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	p := NewCachedProcessor(inner, cache, nil)

	if _, err := p.Optimize(context.Background(), models.NewImageInput("a.png", "image/png", pngBytes(t, 4, 4)), 80); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestCachedProcessor_FailuresNotCached(t *testing.T) {
	cache := newMemoryCache()
	p := NewCachedProcessor(NewImageProcessor(MaxFileSize, nil), cache, nil)

	_, err := p.Optimize(context.Background(), models.NewImageInput("bad.jpg", "image/jpeg", []byte("nope")), 80)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(cache.entries) != 0 {
		t.Errorf("cache has %d entries after failure", len(cache.entries))
	}
}

func TestCachedProcessor_CanceledContextOnWarmCache(t *testing.T) {
	inner := &countingProcessor{inner: NewImageProcessor(MaxFileSize, nil)}
	p := NewCachedProcessor(inner, newMemoryCache(), nil)
	input := models.NewImageInput("a.png", "image/png", pngBytes(t, 4, 4))

	if _, err := p.Optimize(context.Background(), input, 80); err != nil {
		t.Fatalf("warm: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := p.Optimize(ctx, input, 80)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result != nil {
		t.Error("canceled call returned a result")
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}
