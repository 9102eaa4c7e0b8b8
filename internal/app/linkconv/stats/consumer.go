package stats

import (
	"context"
	"log/slog"
	"time"
)

// Sink 批量落库，由 repo.EventsRepo 实现
type Sink interface {
	InsertBatch(ctx context.Context, events []Event) error
}

const (
	defaultBatchSize = 100
	defaultInterval  = time.Second
	flushTimeout     = 5 * time.Second
)

// Consumer 消费 ChannelCollector 里的事件
type Consumer struct {
	sink      Sink
	collector *ChannelCollector
	batchSize int
	interval  time.Duration
}

func NewConsumer(sink Sink, collector *ChannelCollector) *Consumer {
	return &Consumer{
		sink:      sink,
		collector: collector,
		batchSize: defaultBatchSize,
		interval:  defaultInterval,
	}
}

// Run 阻塞，直到 ctx 结束或 collector 关闭；退出前会写完剩余事件
func (c *Consumer) Run(ctx context.Context) {
	runBatches(ctx, c.collector.Events(), c.sink, c.batchSize, c.interval, "channel")
}

// runBatches 攒够 batchSize 条或者每隔 interval 写一次
func runBatches(ctx context.Context, events <-chan Event, sink Sink, batchSize int, interval time.Duration, source string) {
	batch := make([]Event, 0, batchSize)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// 关停时 ctx 已经取消，落库用独立的超时
		fctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := sink.InsertBatch(fctx, batch); err != nil {
			slog.Error("link stats: flush failed", "source", source, "count", len(batch), "err", err)
		} else {
			slog.Debug("link stats: flushed", "source", source, "count", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case event, ok := <-events:
			if !ok {
				flush()
				return
			}
			if !event.Valid() {
				continue
			}
			batch = append(batch, event)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
