package queue

import (
	"context"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

// Producer sends dispatch submissions to a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, message domain.QueueMessage) error
}

// Consumer receives dispatch submissions and executes handlers.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error
}
