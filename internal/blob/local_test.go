package blob

import (
	"context"
	"errors"
	"testing"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := context.Background()

	key := "contracts/doc-1/0_scan.png"
	if err := s.Put(ctx, key, []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("Get = %q", data)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestLocalStore_DeleteMissingIsNoop(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if err := s.Delete(context.Background(), "contracts/doc-1/0_gone.png"); err != nil {
		t.Errorf("Delete missing = %v", err)
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{
		"../outside",
		"contracts/../../outside",
		"/etc/passwd",
		".",
	} {
		t.Run(key, func(t *testing.T) {
			if err := s.Put(ctx, key, []byte("x")); err == nil {
				t.Errorf("Put(%q) accepted a key outside the root", key)
			}
		})
	}
}
