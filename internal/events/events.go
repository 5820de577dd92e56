// Package events tells waiting clients that something in their inbox
// changed. Events are hints: a receiver always re-reads the store, so a lost
// event only costs latency until the next poll.
package events

import (
	"context"
	"time"
)

type Kind string

const (
	MessageCreated     Kind = "message.created"
	MessageDelivered   Kind = "message.delivered"
	MessageRead        Kind = "message.read"
	ConversationClosed Kind = "conversation.cleared"
	UserDeleted        Kind = "user.deleted"
)

// Event is addressed to UserID. PeerID is the other side of the
// conversation, when there is one.
type Event struct {
	Kind      Kind      `json:"kind"`
	UserID    int64     `json:"user_id"`
	PeerID    int64     `json:"peer_id,omitempty"`
	MessageID int64     `json:"message_id,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Subscriber interface {
	// Subscribe returns a channel of events addressed to userID. The
	// returned cancel func must be called to release the subscription; the
	// channel is closed afterwards.
	Subscribe(ctx context.Context, userID int64) (<-chan Event, func(), error)
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// subscriberBuffer bounds how far a slow subscriber may lag before events
// to it are dropped.
const subscriberBuffer = 16
