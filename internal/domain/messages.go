package domain

import (
	"encoding/json"
	"fmt"
)

// Websocket message type tags.
const (
	MessageSubscribe   = "subscribe"
	MessageUnsubscribe = "unsubscribe"
	MessagePriceUpdate = "price_update"
	MessageVolumeSpike = "volume_spike"
)

// ClientMessage is a decoded client→server websocket frame. Exactly one
// variant is represented, selected by Type.
type ClientMessage struct {
	Type   string   // MessageSubscribe or MessageUnsubscribe
	Tokens []string // addresses the client wants added/removed
}

// rawClientMessage is the wire shape of inbound frames.
type rawClientMessage struct {
	Type   string   `json:"type"`
	Tokens []string `json:"tokens"`
}

// DecodeClientMessage parses an inbound frame and rejects unknown types.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var raw rawClientMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ClientMessage{}, fmt.Errorf("decode client message: %w", err)
	}
	switch raw.Type {
	case MessageSubscribe, MessageUnsubscribe:
		return ClientMessage{Type: raw.Type, Tokens: raw.Tokens}, nil
	default:
		return ClientMessage{}, fmt.Errorf("unknown message type %q", raw.Type)
	}
}

// PriceUpdate is the server→client frame sent when a tracked token's price
// moves past the broadcast threshold.
type PriceUpdate struct {
	Type          string  `json:"type"` // always MessagePriceUpdate
	TokenAddress  string  `json:"token_address"`
	PriceSOL      float64 `json:"price_sol"`
	PriceChange1h float64 `json:"price_1hr_change"`
	Timestamp     int64   `json:"timestamp"`
}

// NewPriceUpdate builds a price update frame from a merged token record.
func NewPriceUpdate(token Token) PriceUpdate {
	return PriceUpdate{
		Type:          MessagePriceUpdate,
		TokenAddress:  token.Address,
		PriceSOL:      token.PriceSOL,
		PriceChange1h: token.PriceChange1h,
		Timestamp:     NowMillis(),
	}
}

// VolumeSpike is the server→client frame sent when a token's 24h volume
// jumps past the spike threshold between refresh cycles.
type VolumeSpike struct {
	Type                string  `json:"type"` // always MessageVolumeSpike
	TokenAddress        string  `json:"token_address"`
	VolumeChangePercent float64 `json:"volume_change_percent"`
	NewVolume           float64 `json:"new_volume"`
	Timestamp           int64   `json:"timestamp"`
}

// NewVolumeSpike builds a volume spike frame. oldVolume must be > 0.
func NewVolumeSpike(address string, oldVolume, newVolume float64) VolumeSpike {
	return VolumeSpike{
		Type:                MessageVolumeSpike,
		TokenAddress:        address,
		VolumeChangePercent: (newVolume - oldVolume) / oldVolume * 100,
		NewVolume:           newVolume,
		Timestamp:           NowMillis(),
	}
}
