// Package events publishes engine milestones for out-of-scope consumers
// (notification fan-out, analytics).
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/carpool-matching/internal/models"
)

// KafkaPublisher writes match-found events to a Kafka topic, keyed by
// reservation id so one reservation's events stay ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaPublisher{writer: w}
}

func (k *KafkaPublisher) PublishMatchFound(ctx context.Context, ev models.MatchFoundEvent) error {
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(wctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.ReservationID, 10)),
		Value: b,
	})
}

func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
