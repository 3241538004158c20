// internal/metrics/metrics.go
package metrics

import (
	"sync"
	"sync/atomic"
)

// Counter 单调递增计数器，更新用原子操作
type Counter struct {
	value int64
}

// Inc 计数加一
func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

// Add 计数增加指定值
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Value 读取当前计数
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Collector 按名称管理计数器
type Collector struct {
	counters map[string]*Counter
	mu       sync.RWMutex
}

// NewCollector 创建空的指标收集器
func NewCollector() *Collector {
	return &Collector{
		counters: make(map[string]*Counter),
	}
}

// Counter 按名称取计数器，不存在则创建
func (c *Collector) Counter(name string) *Counter {
	c.mu.RLock()
	counter, ok := c.counters[name]
	c.mu.RUnlock()
	if ok {
		return counter
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if counter, ok = c.counters[name]; ok {
		return counter
	}
	counter = &Counter{}
	c.counters[name] = counter
	return counter
}

// Snapshot 返回所有计数器的当前值
func (c *Collector) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]int64, len(c.counters))
	for name, counter := range c.counters {
		snapshot[name] = counter.Value()
	}
	return snapshot
}

var (
	defaultCollector *Collector
	defaultOnce      sync.Once
)

// Default 全局指标收集器
func Default() *Collector {
	defaultOnce.Do(func() {
		defaultCollector = NewCollector()
	})
	return defaultCollector
}
