// Package pubsub implements a Google Cloud Pub/Sub run notifier.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// messagePublisher is the slice of *pubsub.Publisher the notifier needs.
type messagePublisher interface {
	publish(ctx context.Context, msg *pubsub.Message) (string, error)
}

type topicPublisher struct {
	publisher *pubsub.Publisher
}

func (t topicPublisher) publish(ctx context.Context, msg *pubsub.Message) (string, error) {
	id, err := t.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Publisher sends one JSON message per run.
type Publisher struct {
	publisher messagePublisher
}

// New creates a Publisher for the provided topic publisher.
func New(publisher *pubsub.Publisher) *Publisher {
	if publisher == nil {
		return &Publisher{}
	}
	return &Publisher{publisher: topicPublisher{publisher: publisher}}
}

// Notify marshals the run result to JSON and publishes it to the topic.
func (p *Publisher) Notify(ctx context.Context, result crawler.RunResult) error {
	if p.publisher == nil {
		return fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id":      result.RunID,
			"stop_reason": string(result.Stop),
			"listings":    strconv.Itoa(len(result.Listings)),
		},
	}
	if _, err := p.publisher.publish(ctx, msg); err != nil {
		return err
	}
	return nil
}
