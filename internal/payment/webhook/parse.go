package webhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/despiezo/marketplace/internal/payment/domain"
)

type stripeEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	Customer      string            `json:"customer"`
	Subscription  string            `json:"subscription"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
	LineItems     *stripeLineItems  `json:"line_items"`
}

type stripeLineItems struct {
	Data []struct {
		Price struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"data"`
}

type stripeSubscription struct {
	ID string `json:"id"`
}

// Parse decodes a verified payload into the canonical event. Event types this
// service does not consume map to ErrEventIgnored.
func Parse(ctx context.Context, payload []byte) (*domain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	switch strings.TrimSpace(event.Type) {
	case domain.EventTypeCheckoutCompleted:
		return parseCheckoutCompleted(event, payload)
	case domain.EventTypeSubscriptionDeleted:
		return parseSubscriptionDeleted(event, payload)
	default:
		return nil, domain.ErrEventIgnored
	}
}

func parseCheckoutCompleted(event stripeEvent, payload []byte) (*domain.Event, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	priceID := ""
	if session.LineItems != nil && len(session.LineItems.Data) > 0 {
		priceID = strings.TrimSpace(session.LineItems.Data[0].Price.ID)
	}

	metadata := session.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	return &domain.Event{
		ID:   event.ID,
		Type: domain.EventTypeCheckoutCompleted,
		Checkout: &domain.CheckoutCompleted{
			SessionID:       session.ID,
			PaymentIntentID: strings.TrimSpace(session.PaymentIntent),
			Mode:            strings.TrimSpace(session.Mode),
			CustomerID:      strings.TrimSpace(session.Customer),
			SubscriptionID:  strings.TrimSpace(session.Subscription),
			PriceID:         priceID,
			AmountTotal:     session.AmountTotal,
			Metadata:        metadata,
		},
		RawPayload: payload,
	}, nil
}

func parseSubscriptionDeleted(event stripeEvent, payload []byte) (*domain.Event, error) {
	var subscription stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &subscription); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(subscription.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.Event{
		ID:             event.ID,
		Type:           domain.EventTypeSubscriptionDeleted,
		SubscriptionID: subscription.ID,
		RawPayload:     payload,
	}, nil
}
