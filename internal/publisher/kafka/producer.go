// Package kafka publishes discovered listings to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ListingMessage is the value of every record written by Producer.
type ListingMessage struct {
	RunID   string             `json:"run_id"`
	Listing crawler.JobListing `json:"listing"`
}

// Producer writes one record per listing, keyed by company so a company's
// listings land on the same partition.
type Producer struct {
	writer messageWriter
}

// NewProducer creates a Kafka producer for the given brokers and topic.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: false,
		},
	}
}

// NewProducerWithWriter builds a producer using a custom writer (tests).
func NewProducerWithWriter(writer messageWriter) *Producer {
	return &Producer{writer: writer}
}

// Close shuts down the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Notify writes the run's listings as a single batch.
func (p *Producer) Notify(ctx context.Context, result crawler.RunResult) error {
	if len(result.Listings) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(result.Listings))
	for _, listing := range result.Listings {
		payload, err := json.Marshal(ListingMessage{RunID: result.RunID, Listing: listing})
		if err != nil {
			return fmt.Errorf("marshal listing: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(listing.Company),
			Value: payload,
			Time:  result.FinishedAt,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write listings: %w", err)
	}
	return nil
}
