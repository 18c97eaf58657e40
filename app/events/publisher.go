// Package events publishes flow transitions to Kafka.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/config"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes flow events keyed by flow id, so all events of one flow
// land on the same partition in transition order.
type Publisher struct {
	writer messageWriter
}

func NewPublisher(cfg config.KafkaConfig) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, events []*entity.FlowEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.FlowID),
			Value: []byte(event.PayloadJSON),
			Time:  event.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(event.EventType)},
				{Key: "event-seq", Value: []byte(strconv.FormatUint(event.ID, 10))},
				{Key: "merchant-id", Value: []byte(event.MerchantID)},
			},
		})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
