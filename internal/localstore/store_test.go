package localstore

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func TestStore_SetGetRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := store.Set("profile:avatar:user-1", "data:image/png;base64,abc"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, ok, err := store.Get("profile:avatar:user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("expected key to exist")
	}
	if value != "data:image/png;base64,abc" {
		t.Errorf("value = %q, want stored value", value)
	}
}

func TestStore_MissingKey(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, ok, err := store.Get("auth:isLoggedIn")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("expected key to be missing")
	}
}

func TestStore_LastWriteWins(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Set("auth:isLoggedIn", "false"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("auth:isLoggedIn", "true"); err != nil {
		t.Fatal(err)
	}

	value, _, err := store.Get("auth:isLoggedIn")
	if err != nil {
		t.Fatal(err)
	}
	if value != "true" {
		t.Errorf("value = %q, want %q", value, "true")
	}
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Set("key", "value"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("key"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete("key"); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}

	if _, ok, _ := store.Get("key"); ok {
		t.Error("expected key to be gone")
	}
}

func TestStore_KeysWithSpecialCharacters(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	keys := []string{"profile:avatar:user/1", "auth:isLoggedIn", "a b c"}
	for _, k := range keys {
		if err := store.Set(k, "v"); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}

	got, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	sort.Strings(got)
	sort.Strings(keys)
	if len(got) != len(keys) {
		t.Fatalf("len(keys) = %d, want %d", len(got), len(keys))
	}
	for i := range keys {
		if got[i] != keys[i] {
			t.Errorf("keys[%d] = %q, want %q", i, got[i], keys[i])
		}
	}
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Set("key", "durable"); err != nil {
		t.Fatal(err)
	}

	second, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	value, ok, err := second.Get("key")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || value != "durable" {
		t.Errorf("value = %q (ok=%v), want durable", value, ok)
	}
}

func TestWatcher_ReportsExternalChange(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	watcher := NewWatcher(store, 10*time.Millisecond)
	defer watcher.Close()

	// 外部プロセスの書き込みを直接ファイル操作で再現する
	external := encodeKey("profile:avatar:user-9") + itemExt
	if err := os.WriteFile(filepath.Join(dir, external), []byte("data:image/png;base64,xyz"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-watcher.Events():
		if ev.Key != "profile:avatar:user-9" {
			t.Errorf("key = %q, want profile:avatar:user-9", ev.Key)
		}
		if ev.Value == nil || *ev.Value != "data:image/png;base64,xyz" {
			t.Errorf("value = %v, want stored value", ev.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestWatcher_ReportsExternalDeletion(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set("key", "value"); err != nil {
		t.Fatal(err)
	}

	watcher := NewWatcher(store, 10*time.Millisecond)
	defer watcher.Close()

	if err := os.Remove(filepath.Join(dir, encodeKey("key")+itemExt)); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-watcher.Events():
		if ev.Key != "key" {
			t.Errorf("key = %q, want key", ev.Key)
		}
		if ev.Value != nil {
			t.Errorf("value = %v, want nil for deletion", *ev.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deletion event")
	}
}

func TestWatcher_IgnoresOwnWrites(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	watcher := NewWatcher(store, 10*time.Millisecond)
	defer watcher.Close()

	if err := store.Set("key", "own write"); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-watcher.Events():
		t.Errorf("unexpected event for own write: %+v", ev)
	case <-time.After(100 * time.Millisecond):
		// 自分の書き込みはイベントにならない
	}
}
