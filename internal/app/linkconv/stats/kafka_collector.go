package stats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

type KafkaCollector struct {
	writer *kafka.Writer
}

func NewKafkaCollector(brokers []string, topic string) *KafkaCollector {
	return &KafkaCollector{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
			Async:    true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					slog.Error("kafka write failed", "count", len(messages), "err", err)
				}
			},
		},
	}
}

func (k *KafkaCollector) Collect(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal event failed", "kind", event.Kind, "err", err)
		return
	}
	// Async 模式下只有参数错误才会立即返回错误
	if err := k.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(event.Kind),
		Value: data,
	}); err != nil {
		slog.Error("kafka write failed", "err", err)
	}
}

func (k *KafkaCollector) Close() {
	if err := k.writer.Close(); err != nil {
		slog.Error("kafka writer close failed", "err", err)
	}
}
