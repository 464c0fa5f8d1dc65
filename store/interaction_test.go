package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/rushteam/estaterec/core"
)

func newTestInteractionStore(t *testing.T) *InteractionStore {
	t.Helper()
	mem := NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })
	return NewInteractionStore(mem, "")
}

func TestInteractionStore_CreateRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestInteractionStore(t)

	ok, err := s.Create(ctx, "u1", "p1")
	if err != nil || !ok {
		t.Fatalf("first Create() = %v, %v; want true, nil", ok, err)
	}
	ok, err = s.Create(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("second Create() error = %v", err)
	}
	if ok {
		t.Fatalf("second Create() = true, want false for duplicate")
	}

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	want := []core.Interaction{{UserID: "u1", PropertyID: "p1"}}
	if !reflect.DeepEqual(all, want) {
		t.Errorf("All() = %v, want %v", all, want)
	}
}

func TestInteractionStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestInteractionStore(t)

	ok, err := s.Delete(ctx, "u1", "missing")
	if err != nil || !ok {
		t.Fatalf("Delete() on absent pair = %v, %v; want true, nil", ok, err)
	}

	_, _ = s.Create(ctx, "u1", "p1")
	if ok, _ := s.Delete(ctx, "u1", "p1"); !ok {
		t.Fatalf("Delete() = false, want true")
	}
	has, err := s.HasAny(ctx, "u1")
	if err != nil {
		t.Fatalf("HasAny() error = %v", err)
	}
	if has {
		t.Errorf("HasAny() = true after deleting the only like")
	}

	all, _ := s.All(ctx)
	if len(all) != 0 {
		t.Errorf("All() = %v, want empty", all)
	}
}

func TestInteractionStore_ListAndAllAreSorted(t *testing.T) {
	ctx := context.Background()
	s := newTestInteractionStore(t)

	for _, in := range []core.Interaction{
		{UserID: "u2", PropertyID: "p3"},
		{UserID: "u1", PropertyID: "p2"},
		{UserID: "u2", PropertyID: "p1"},
		{UserID: "u1", PropertyID: "p1"},
	} {
		if _, err := s.Create(ctx, in.UserID, in.PropertyID); err != nil {
			t.Fatalf("Create(%v) error = %v", in, err)
		}
	}

	ids, err := s.ListByUser(ctx, "u2")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if want := []string{"p1", "p3"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ListByUser() = %v, want %v", ids, want)
	}

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	want := []core.Interaction{
		{UserID: "u1", PropertyID: "p1"},
		{UserID: "u1", PropertyID: "p2"},
		{UserID: "u2", PropertyID: "p1"},
		{UserID: "u2", PropertyID: "p3"},
	}
	if !reflect.DeepEqual(all, want) {
		t.Errorf("All() = %v, want %v", all, want)
	}

	if has, _ := s.HasAny(ctx, "nobody"); has {
		t.Errorf("HasAny(nobody) = true, want false")
	}
}

// flakyKV 在 failOnce 为 true 时让一次匹配 key 后缀的 SAdd 失败
type flakyKV struct {
	core.KeyValueStore
	suffix   string
	failOnce bool
}

func (f *flakyKV) SAdd(ctx context.Context, key, member string) (bool, error) {
	if f.failOnce && strings.HasSuffix(key, f.suffix) {
		f.failOnce = false
		return false, errors.New("connection reset")
	}
	return f.KeyValueStore.SAdd(ctx, key, member)
}

func TestInteractionStore_CreateRetryAfterBackendFailure(t *testing.T) {
	for _, suffix := range []string{":users", ":user:u1"} {
		t.Run(suffix, func(t *testing.T) {
			ctx := context.Background()
			mem := NewMemoryStore()
			t.Cleanup(func() { _ = mem.Close() })
			kv := &flakyKV{KeyValueStore: mem, suffix: suffix, failOnce: true}
			s := NewInteractionStore(kv, "")

			if _, err := s.Create(ctx, "u1", "p1"); err == nil {
				t.Fatal("first Create() error = nil, want backend error")
			}
			ok, err := s.Create(ctx, "u1", "p1")
			if err != nil || !ok {
				t.Fatalf("retry Create() = %v, %v; want true, nil", ok, err)
			}

			has, _ := s.HasAny(ctx, "u1")
			all, err := s.All(ctx)
			if err != nil {
				t.Fatalf("All() error = %v", err)
			}
			want := []core.Interaction{{UserID: "u1", PropertyID: "p1"}}
			if !has || !reflect.DeepEqual(all, want) {
				t.Errorf("HasAny() = %v, All() = %v; want true, %v", has, all, want)
			}
		})
	}
}
