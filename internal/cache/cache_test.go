// internal/cache/cache_test.go
package cache

import (
	"sync"
	"testing"
)

func TestCacheBasicOps(t *testing.T) {
	c := NewCache[string, int]()

	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; 期望 1, true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("不存在的键不应命中")
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("删除后的键不应命中")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, 期望 1", c.Len())
	}
}

// SetTo 是全量替换：旧条目必须整体消失
func TestCacheSetToReplacesWholesale(t *testing.T) {
	c := NewCache[string, string]()
	c.Set("old", "value")

	c.SetTo(map[string]string{"new1": "a", "new2": "b"})

	if _, ok := c.Get("old"); ok {
		t.Error("SetTo后旧条目应消失")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, 期望 2", c.Len())
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache[int, int]()
	c.Set(1, 1)
	c.Set(2, 2)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Clear后Len() = %d, 期望 0", c.Len())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Set(n, n*2)
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(n)
		}(i)
	}
	wg.Wait()
	if c.Len() != 50 {
		t.Errorf("Len() = %d, 期望 50", c.Len())
	}
}

func TestCacheRange(t *testing.T) {
	c := NewCache[string, int]()
	c.Set("a", 1)
	c.Set("b", 2)

	sum := 0
	c.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	if sum != 3 {
		t.Errorf("Range累加 = %d, 期望 3", sum)
	}
}
