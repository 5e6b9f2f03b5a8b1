// Package jobs publishes conversion events for downstream consumers.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/tamil-braille/api/internal/services"
)

// PubSubConversionPublisher publishes saved conversions to a Pub/Sub topic.
type PubSubConversionPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubConversionPublisher constructs a publisher for topic.
func NewPubSubConversionPublisher(topic *pubsub.Topic) (*PubSubConversionPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub conversion publisher: topic is required")
	}
	return &PubSubConversionPublisher{topic: topic, marshal: json.Marshal}, nil
}

// PublishConversion sends event and waits for the server-assigned message id.
func (p *PubSubConversionPublisher) PublishConversion(ctx context.Context, event services.ConversionEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub conversion publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal conversion event: %w", err)
	}

	attrs := make(map[string]string, 2)
	setAttr(attrs, "recordId", event.RecordID)
	setAttr(attrs, "ownerId", event.OwnerID)

	id, err := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish conversion event: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *PubSubConversionPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
