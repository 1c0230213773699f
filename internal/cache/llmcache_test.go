package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestLLMCache_SaveGet(t *testing.T) {
	c := &LLMCache{Dir: t.TempDir()}
	key := KeyFrom("model", "prompt")
	data := []byte(`{"summary":"- a\n- b"}`)
	if err := c.Save(context.Background(), key, data); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := c.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if string(got) != string(data) {
		t.Fatalf("mismatch")
	}
}

func TestKeyFrom_PartsMatter(t *testing.T) {
	if KeyFrom("m", "a", "b") == KeyFrom("m", "a") {
		t.Fatal("extra part should change the key")
	}
	if KeyFrom("m1", "p") == KeyFrom("m2", "p") {
		t.Fatal("model should change the key")
	}
}

func TestLLMCache_JSON(t *testing.T) {
	c := &LLMCache{Dir: t.TempDir()}
	type bundle struct{ Headline string }
	ctx := context.Background()
	if err := c.SaveJSON(ctx, "k", bundle{Headline: "h"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	var got bundle
	if !c.GetJSON(ctx, "k", &got) || got.Headline != "h" {
		t.Fatalf("GetJSON = %+v", got)
	}
	if err := c.Save(ctx, "bad", []byte("{")); err != nil {
		t.Fatal(err)
	}
	if c.GetJSON(ctx, "bad", &got) {
		t.Fatal("undecodable entry should miss")
	}
	var nilCache *LLMCache
	if nilCache.GetJSON(ctx, "k", &got) {
		t.Fatal("nil cache should miss")
	}
}

func TestLLMCache_LRUEnforcement(t *testing.T) {
	tmp := t.TempDir()
	c := &LLMCache{Dir: tmp}
	keys := []string{KeyFrom("m", "p1"), KeyFrom("m", "p2"), KeyFrom("m", "p3")}
	for i, k := range keys {
		if err := c.Save(context.Background(), k, []byte(fmt.Sprintf("%d", i))); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	// touch p2 so p1 is the least recently used
	if _, ok, _ := c.Get(context.Background(), keys[1]); !ok {
		t.Fatal("expected hit")
	}
	removed, err := EnforceLLMCacheLimits(tmp, 0, 2)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok, _ := c.Get(context.Background(), keys[0]); ok {
		t.Fatal("expected oldest evicted")
	}
}

func TestPurgeLLMCacheByAge(t *testing.T) {
	tmp := t.TempDir()
	c := &LLMCache{Dir: tmp}
	ctx := context.Background()
	if err := c.Save(ctx, "old", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(ctx, "new", []byte("2")); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(c.pathFor("old"), past, past); err != nil {
		t.Fatal(err)
	}
	removed, err := PurgeLLMCacheByAge(tmp, time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
	if _, ok, _ := c.Get(ctx, "new"); !ok {
		t.Fatal("fresh entry should survive")
	}
}

func TestEnforceOnMissingDir(t *testing.T) {
	removed, err := EnforceLLMCacheLimits(t.TempDir()+"/nope", 1, 1)
	if err != nil || removed != 0 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
}
