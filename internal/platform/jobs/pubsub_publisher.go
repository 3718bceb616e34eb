package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/atlas-voyages/api/internal/domain"
)

// PubSubQuoteEventPublisher publishes quote lifecycle events to a Pub/Sub topic.
type PubSubQuoteEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubQuoteEventPublisher constructs a Pub/Sub backed quote event publisher.
func NewPubSubQuoteEventPublisher(topic *pubsub.Topic) (*PubSubQuoteEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub quote event publisher: topic is required")
	}
	return &PubSubQuoteEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishQuoteEvent enqueues a quote event message on the configured topic.
// Messages carry routing attributes so subscribers can filter without
// decoding the payload.
func (p *PubSubQuoteEventPublisher) PublishQuoteEvent(ctx context.Context, event domain.QuoteEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub quote event publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal quote event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "kind", string(event.Kind))
	setAttr(attrs, "quoteId", event.QuoteID)
	setAttr(attrs, "dossierId", event.DossierID)
	setAttr(attrs, "tenantId", event.TenantID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish quote event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
