package stats

import (
	"sync"

	"repfinds.local/internal/platform/metrics"
)

// Collector 收集器接口，请求路径上调用，不能阻塞
type Collector interface {
	Collect(event Event)
	Close()
}

// ChannelCollector 基于 channel 的收集器，满了直接丢
type ChannelCollector struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

func NewChannelCollector(bufferSize int) *ChannelCollector {
	return &ChannelCollector{
		ch: make(chan Event, bufferSize),
	}
}

func (c *ChannelCollector) Collect(event Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- event:
	default:
		metrics.EventsDropped.Inc()
	}
}

func (c *ChannelCollector) Events() <-chan Event {
	return c.ch
}

// Close 可以重复调用
func (c *ChannelCollector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Discard 不收集任何事件，统计关闭时使用
type Discard struct{}

func (Discard) Collect(Event) {}
func (Discard) Close()        {}
