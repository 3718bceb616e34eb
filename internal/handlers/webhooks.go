package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/atlas-voyages/api/internal/platform/httpx"
	"github.com/atlas-voyages/api/internal/services"
)

const maxWebhookBodySize = 256 * 1024

// StripeWebhookHandlers ingests signed Stripe event deliveries. Completed
// checkout sessions settle the installment they were opened for; everything
// else is acknowledged and dropped so Stripe stops retrying.
type StripeWebhookHandlers struct {
	secret string
	quotes services.QuoteService
}

// NewStripeWebhookHandlers constructs handlers verifying deliveries against
// the endpoint signing secret.
func NewStripeWebhookHandlers(secret string, quotes services.QuoteService) *StripeWebhookHandlers {
	return &StripeWebhookHandlers{
		secret: secret,
		quotes: quotes,
	}
}

// Routes wires the /webhooks endpoints onto the provided router.
func (h *StripeWebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

func (h *StripeWebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read webhook body", http.StatusBadRequest))
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		writeJSONResponse(w, http.StatusOK, map[string]any{"received": true, "ignored": true})
		return
	}

	var session stripe.CheckoutSession
	if event.Data == nil || json.Unmarshal(event.Data.Raw, &session) != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed checkout session payload", http.StatusBadRequest))
		return
	}

	quoteID := strings.TrimSpace(session.Metadata["quoteId"])
	index, indexErr := strconv.Atoi(session.Metadata["installmentIndex"])
	if quoteID == "" || indexErr != nil || session.PaymentIntent == nil || session.PaymentIntent.ID == "" {
		// Sessions opened outside the installment flow carry no quote
		// metadata. Acknowledge so Stripe does not redeliver.
		writeJSONResponse(w, http.StatusOK, map[string]any{"received": true, "ignored": true})
		return
	}

	if _, err := h.quotes.SettleInstallmentPayment(ctx, services.SettleInstallmentPaymentCommand{
		QuoteID:          quoteID,
		InstallmentIndex: index,
		IntentID:         session.PaymentIntent.ID,
		Provider:         "stripe",
	}); err != nil {
		// A non-2xx response makes Stripe retry the delivery later.
		httpx.WriteError(ctx, w, httpx.NewError("webhook_processing_failed", "unable to settle installment payment", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}
