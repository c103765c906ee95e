package broker

import (
	"context"
	"fmt"

	"ecommerce-api/internal/models"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishDiscountCodeIssued publishes DiscountCodeIssued event
func (ep *EventPublisher) PublishDiscountCodeIssued(ctx context.Context, event *models.DiscountCodeIssuedEvent) error {
	key := fmt.Sprintf("discount-%s", event.Code)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishDiscountCodeRedeemed publishes DiscountCodeRedeemed event
func (ep *EventPublisher) PublishDiscountCodeRedeemed(ctx context.Context, event *models.DiscountCodeRedeemedEvent) error {
	key := fmt.Sprintf("discount-%s", event.Code)
	return ep.producer.PublishEvent(ctx, key, event)
}
