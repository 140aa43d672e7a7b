// Package bus relays accepted broadcasts between server instances so a
// room spanning processes still fans out to every peer. Delivery is
// fire-and-forget: a dropped relay is never retried, and without a bus
// the server stays correct for single-instance deployments.
package bus

import (
	"context"
	"encoding/json"

	"github.com/devcollab/server/internal/domain"
)

// Message is one relayed broadcast. Instance identifies the publisher so
// subscribers can ignore their own publications.
type Message struct {
	Instance string          `json:"instance"`
	Room     domain.RoomID   `json:"room"`
	Frame    json.RawMessage `json:"frame"`
}

type Handler func(Message)

type Bus interface {
	// Publish relays the frame to peer instances. Errors are logged,
	// never returned: the local fan-out has already happened.
	Publish(ctx context.Context, msg Message)

	// Subscribe starts consuming peer publications until ctx is done.
	// Messages published by this instance are filtered out.
	Subscribe(ctx context.Context, h Handler)
}

// Noop is the bus used when no relay is configured. Broadcasts reach
// local connections only.
type Noop struct{}

func (Noop) Publish(context.Context, Message) {}
func (Noop) Subscribe(context.Context, Handler) {}
