// Package delivery sends composed messages through the WhatsApp gateway.
package delivery

import (
	"context"
	"errors"
	"fmt"
)

// ErrSessionNotReady signals that the gateway's WhatsApp session is not
// connected; sends fail fast without reaching the send endpoint.
var ErrSessionNotReady = errors.New("whatsapp session is not ready")

// Error is a delivery failure reported by the gateway.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("evolution api error: status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("evolution api error: %s", e.Detail)
}

// Sender delivers one text message to one number. A call either fully
// succeeds or returns an error; there is no partial outcome.
type Sender interface {
	Send(ctx context.Context, number, text, label string) error
}
