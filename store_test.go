package taskboard

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewTaskStore(t *testing.T) {
	if _, err := NewTaskStore(" "); err == nil {
		t.Error("expected an error for an empty path")
	}
}

func TestTaskStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	store, err := NewTaskStore(path)
	if err != nil {
		t.Fatal(err)
	}

	if got := string(store.Load()); got != "[]" {
		t.Errorf("missing file: expected [], got %q", got)
	}

	writeFile(t, path, "")
	if got := string(store.Load()); got != "[]" {
		t.Errorf("empty file: expected [], got %q", got)
	}

	long := `[{"id":1,"title":"a rather long task title","done":false}]`
	if err := store.Save([]byte(long)); err != nil {
		t.Fatal(err)
	}
	if got := string(store.Load()); got != long {
		t.Errorf("expected %q, got %q", long, got)
	}

	// the file is truncated, not appended to
	if err := store.Save([]byte("[]")); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[]" {
		t.Errorf("expected the file to be replaced, got %q", b)
	}

	// not JSON, still stored verbatim
	if err := store.Save([]byte("not json \x00\xff")); err != nil {
		t.Fatal(err)
	}
	if got := string(store.Load()); got != "not json \x00\xff" {
		t.Errorf("expected the raw blob, got %q", got)
	}
}

func TestTaskStoreLoadCopiesFallback(t *testing.T) {
	store, err := NewTaskStore(filepath.Join(t.TempDir(), "tasks.json"))
	if err != nil {
		t.Fatal(err)
	}

	b := store.Load()
	b[0] = '{'
	if string(EmptyTasks) != "[]" {
		t.Errorf("EmptyTasks was modified through Load: %q", EmptyTasks)
	}
}
