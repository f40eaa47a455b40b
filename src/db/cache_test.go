package db

import (
	"testing"
	"time"
)

func TestCacheSetGetDel(t *testing.T) {
	cache, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	cache.Set("k1", "v1", time.Minute)
	got, ok := cache.Get("k1")
	if !ok || got != "v1" {
		t.Fatalf("got (%v, %v), want (v1, true)", got, ok)
	}

	cache.Del("k1")
	if _, ok := cache.Get("k1"); ok {
		t.Error("key survived Del")
	}
}

func TestCacheDelPrefix(t *testing.T) {
	cache, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	cache.Set("txns:1:a", 1, time.Minute)
	cache.Set("txns:1:b", 2, time.Minute)
	cache.Set("txns:2:a", 3, time.Minute)

	cache.DelPrefix("txns:1:")

	if _, ok := cache.Get("txns:1:a"); ok {
		t.Error("txns:1:a survived DelPrefix")
	}
	if _, ok := cache.Get("txns:1:b"); ok {
		t.Error("txns:1:b survived DelPrefix")
	}
	if _, ok := cache.Get("txns:2:a"); !ok {
		t.Error("txns:2:a was dropped by an unrelated prefix")
	}
}

func TestPrefixIndexTake(t *testing.T) {
	idx := newPrefixIndex()
	idx.add("a:1")
	idx.add("a:2")
	idx.add("b:1")
	idx.remove("a:2")

	matched := idx.take("a:")
	if len(matched) != 1 || matched[0] != "a:1" {
		t.Errorf("got %v, want [a:1]", matched)
	}
	// take forgets the keys it returns.
	if again := idx.take("a:"); len(again) != 0 {
		t.Errorf("got %v on second take, want none", again)
	}
	if left := idx.take("b:"); len(left) != 1 {
		t.Errorf("got %v, want [b:1]", left)
	}
}
