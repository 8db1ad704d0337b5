package realtime

import "encoding/json"

// Control and event frames share one wire shape; Type tags the meaning.
// Client frames: authenticate, subscribe, unsubscribe, ping.
// Server frames: pong, plus channel events carrying channel/event/payload.
type frame struct {
	Type    string          `json:"type"`
	Token   *string         `json:"token,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event,omitempty"`
	Filter  map[string]any  `json:"filter,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	frameAuthenticate = "authenticate"
	frameSubscribe    = "subscribe"
	frameUnsubscribe  = "unsubscribe"
	framePing         = "ping"
	framePong         = "pong"
)

// Message is one inbound channel event as delivered to callbacks.
type Message struct {
	Type    string
	Channel string
	Event   string
	Payload json.RawMessage
}

// Callback receives messages matching a subscription.
type Callback func(Message)

// SubscribeOptions narrows a subscription to one event name and/or a
// server-side payload filter.
type SubscribeOptions struct {
	Event  string
	Filter map[string]any
}

type subscription struct {
	id       string
	channel  string
	event    string
	filter   map[string]any
	callback Callback
}

// State is a snapshot of the connection. Connecting and Connected are
// mutually exclusive; Reconnecting implies not Connected.
type State struct {
	Connected    bool
	Connecting   bool
	Reconnecting bool
}
