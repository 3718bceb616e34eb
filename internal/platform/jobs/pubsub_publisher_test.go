package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/atlas-voyages/api/internal/domain"
)

func TestPubSubQuoteEventPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "quote-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubQuoteEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubQuoteEventPublisher: %v", err)
	}

	occurredAt := time.Date(2026, 5, 6, 9, 0, 0, 0, time.UTC)
	event := domain.QuoteEvent{
		Kind:       domain.QuoteEventSaved,
		QuoteID:    "quote-1",
		DossierID:  "dossier-1",
		TenantID:   "agency-1",
		OccurredAt: occurredAt,
		Payload:    map[string]any{"total": int64(125000)},
	}

	if _, err := publisher.PublishQuoteEvent(ctx, event); err != nil {
		t.Fatalf("PublishQuoteEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload domain.QuoteEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.QuoteID != event.QuoteID || payload.Kind != event.Kind {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["kind"]; attr != string(domain.QuoteEventSaved) {
		t.Fatalf("expected kind attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["tenantId"]; attr != "agency-1" {
		t.Fatalf("expected tenant attribute, got %q", attr)
	}
}
