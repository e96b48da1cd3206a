package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stemsi/labquiz/internal/model"
)

func TestJSONTokenStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "retake_tokens.json")
	store := NewJSONTokenStore(path)

	if _, err := store.Get(ctx, "S1"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("Get on missing file: err = %v, want ErrTokenNotFound", err)
	}

	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local)
	if err := store.Put(ctx, model.RetakeToken{StudentID: "S1", Token: "RT-S1-1", CreatedAt: created}); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, model.RetakeToken{StudentID: "S1", Token: "RT-S1-2", CreatedAt: created}); err != nil {
		t.Fatal(err)
	}

	tok, err := store.Get(ctx, "S1")
	if err != nil {
		t.Fatal(err)
	}
	if tok.Token != "RT-S1-2" || !tok.CreatedAt.Equal(created) {
		t.Fatalf("Get = %+v, want last issued token", tok)
	}

	raw, _ := os.ReadFile(path)
	var onDisk map[string]map[string]string
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatal(err)
	}
	if onDisk["S1"]["created_at"] != "2026-03-14 10:00:00" {
		t.Fatalf("persisted shape = %s", raw)
	}

	ok, err := store.Delete(ctx, "S1")
	if err != nil || !ok {
		t.Fatalf("first Delete = %v, %v", ok, err)
	}
	ok, err = store.Delete(ctx, "S1")
	if err != nil || ok {
		t.Fatalf("second Delete = %v, %v; want false", ok, err)
	}
}

func TestJSONTokenStoreConcurrentDelete(t *testing.T) {
	ctx := context.Background()
	store := NewJSONTokenStore(filepath.Join(t.TempDir(), "retake_tokens.json"))
	store.Put(ctx, model.RetakeToken{StudentID: "S1", Token: "RT-S1-1", CreatedAt: time.Now()})

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.Delete(ctx, "S1"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("%d deletes reported a token, want 1", wins.Load())
	}
}

func TestJSONTokenStoreCorrupt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "retake_tokens.json")
	os.WriteFile(path, []byte("{not json"), 0o644)
	store := NewJSONTokenStore(path)

	if _, err := store.Get(ctx, "S1"); !errors.Is(err, ErrStoreCorrupt) {
		t.Fatalf("err = %v, want ErrStoreCorrupt", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "S1"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("after Reset: err = %v, want ErrTokenNotFound", err)
	}
}
