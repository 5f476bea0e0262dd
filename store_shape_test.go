package dashcache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestShapingStorePassThroughWhenUnconfigured(t *testing.T) {
	inner := newLRUStore(10, time.Minute, 0)
	if got := newShapingStore(inner, CompressionNone, 0); got != Store(inner) {
		t.Fatalf("expected unshaped store returned unchanged")
	}
}

func TestShapingStoreGzipRoundtrip(t *testing.T) {
	inner := newLRUStore(10, time.Minute, 0)
	store := newShapingStore(inner, CompressionGzip, 0)
	ctx := context.Background()

	value := []byte(strings.Repeat("dashboard metrics payload ", 100))
	if err := store.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	// The stored representation must be framed and smaller than the input.
	raw, ok, _ := inner.Get(ctx, "k")
	if !ok {
		t.Fatalf("expected entry in inner store")
	}
	if !bytes.HasPrefix(raw, []byte("CMP1g")) {
		t.Fatalf("expected compressed frame, got %q", raw[:min(len(raw), 8)])
	}
	if len(raw) >= len(value) {
		t.Fatalf("expected compression to shrink payload: %d >= %d", len(raw), len(value))
	}
	body, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || !bytes.Equal(body, value) {
		t.Fatalf("roundtrip mismatch: ok=%v err=%v", ok, err)
	}
}

func TestShapingStoreMaxSize(t *testing.T) {
	store := newShapingStore(newLRUStore(10, time.Minute, 0), CompressionNone, 16)
	ctx := context.Background()

	if err := store.Set(ctx, "small", []byte("fits"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	err := store.Set(ctx, "big", bytes.Repeat([]byte("x"), 17), time.Minute)
	if !errors.Is(err, ErrValueTooLarge) {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}
	if _, err := store.Add(ctx, "big", bytes.Repeat([]byte("x"), 17), time.Minute); !errors.Is(err, ErrValueTooLarge) {
		t.Fatalf("expected ErrValueTooLarge from add, got %v", err)
	}
}

func TestShapingStoreMaxSizeAppliesAfterCompression(t *testing.T) {
	// Incompressible input exceeds the cap even after gzip.
	store := newShapingStore(newLRUStore(10, time.Minute, 0), CompressionGzip, 64)
	ctx := context.Background()

	noise := make([]byte, 256)
	for i := range noise {
		noise[i] = byte(i*31 + 7)
	}
	if err := store.Set(ctx, "noise", noise, time.Minute); !errors.Is(err, ErrValueTooLarge) {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}

	// Highly repetitive input larger than the cap compresses under it.
	text := bytes.Repeat([]byte("a"), 4096)
	if err := store.Set(ctx, "text", text, time.Minute); err != nil {
		t.Fatalf("expected compressible value to fit: %v", err)
	}
}

func TestShapingStoreReadsUnframedValues(t *testing.T) {
	inner := newLRUStore(10, time.Minute, 0)
	store := newShapingStore(inner, CompressionGzip, 0)
	ctx := context.Background()

	// A value written before compression was enabled reads back verbatim.
	if err := inner.Set(ctx, "legacy", []byte("plain"), time.Minute); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	body, ok, err := store.Get(ctx, "legacy")
	if err != nil || !ok || string(body) != "plain" {
		t.Fatalf("unexpected read: ok=%v body=%q err=%v", ok, body, err)
	}
}

func TestShapingStoreCorruptPayload(t *testing.T) {
	inner := newLRUStore(10, time.Minute, 0)
	store := newShapingStore(inner, CompressionGzip, 0)
	ctx := context.Background()

	if err := inner.Set(ctx, "bad", []byte("CMP1gnot-gzip"), time.Minute); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, _, err := store.Get(ctx, "bad"); !errors.Is(err, ErrCorruptCompression) {
		t.Fatalf("expected ErrCorruptCompression, got %v", err)
	}
}

func TestShapingStoreCountersBypassShaping(t *testing.T) {
	inner := newLRUStore(10, time.Minute, 0)
	store := newShapingStore(inner, CompressionGzip, 8)
	ctx := context.Background()

	if _, err := store.Increment(ctx, "c", 5, time.Minute); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	n, err := store.Decrement(ctx, "c", 2, time.Minute)
	if err != nil || n != 3 {
		t.Fatalf("unexpected counter: n=%d err=%v", n, err)
	}
	// Counter bytes stay uncompressed in the backend.
	raw, ok, _ := inner.Get(ctx, "c")
	if !ok || string(raw) != "3" {
		t.Fatalf("unexpected raw counter: ok=%v raw=%q", ok, raw)
	}
}

func TestEncodeValueUnknownCodec(t *testing.T) {
	if _, err := encodeValue(CompressionCodec("zstd"), 0, []byte("v")); !errors.Is(err, ErrUnsupportedCodec) {
		t.Fatalf("expected ErrUnsupportedCodec, got %v", err)
	}
}
