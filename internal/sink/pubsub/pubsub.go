// Package pubsub publishes page records to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

// Attribute keys set on every message besides the trace context.
const (
	AttrURL   = "url"
	AttrTitle = "title"
)

// Sink publishes one message per record and waits for the server ack.
type Sink struct {
	client    *pubsub.Client
	topic     *pubsub.Topic
	ownClient bool
}

// New opens a client for project and publishes to topicID.
func New(ctx context.Context, project, topicID string) (*Sink, error) {
	if project == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	s := NewWithTopic(client.Topic(topicID))
	s.client = client
	s.ownClient = true
	return s, nil
}

// NewWithTopic publishes to an existing topic handle.
func NewWithTopic(topic *pubsub.Topic) *Sink {
	return &Sink{topic: topic}
}

// Append marshals the record to JSON and publishes it, injecting the current
// trace context into the message attributes.
func (s *Sink) Append(ctx context.Context, record crawler.PageRecord) error {
	if s.topic == nil {
		return fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			AttrURL:   record.URL,
			AttrTitle: record.Title,
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, attributeCarrier(msg.Attributes))

	if _, err := s.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish record: %w", err)
	}
	return nil
}

// Close flushes pending publishes and closes the client when the sink owns it.
func (s *Sink) Close(context.Context) error {
	if s.topic != nil {
		s.topic.Stop()
	}
	if s.ownClient && s.client != nil {
		if err := s.client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
	}
	return nil
}

// attributeCarrier adapts message attributes to propagation.TextMapCarrier.
type attributeCarrier map[string]string

func (c attributeCarrier) Get(key string) string { return c[key] }

func (c attributeCarrier) Set(key, value string) { c[key] = value }

func (c attributeCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
